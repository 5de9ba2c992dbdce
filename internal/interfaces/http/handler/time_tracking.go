package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apptime "github.com/tally/backend/internal/application/timetracking"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/domain/timetracking"
	"github.com/tally/backend/internal/interfaces/http/dto"
)

// TimeTrackingService is the part of the timer service the API uses.
type TimeTrackingService interface {
	StartTimer(ctx context.Context, req apptime.StartTimerRequest) (*apptime.TimerResponse, error)
	GetTimer(ctx context.Context, timerID uuid.UUID) (*apptime.TimerResponse, error)
	StopTimer(ctx context.Context, timerID uuid.UUID, req apptime.StopTimerRequest) (*apptime.TimeEntryResponse, error)
	CreateManualEntry(ctx context.Context, req apptime.CreateEntryRequest) (*apptime.TimeEntryResponse, error)
	GetEntry(ctx context.Context, entryID uuid.UUID) (*apptime.TimeEntryResponse, error)
	ListEntries(ctx context.Context, q apptime.ListEntriesQuery) (shared.Paginated[apptime.TimeEntryResponse], error)
	SummarizePeriod(ctx context.Context, projectID uuid.UUID, from, to time.Time) (*apptime.SummaryResponse, error)
	PreviewRounding(rawStart, rawEnd time.Time) (timetracking.RoundedEntry, error)
}

// TimeTrackingHandler serves timers, time entries and rounding previews.
type TimeTrackingHandler struct {
	BaseHandler
	service  TimeTrackingService
	calendar timetracking.Calendar
}

// NewTimeTrackingHandler creates a TimeTrackingHandler. Query dates are
// read as civil dates in cal.
func NewTimeTrackingHandler(service TimeTrackingService, cal timetracking.Calendar) *TimeTrackingHandler {
	return &TimeTrackingHandler{service: service, calendar: cal}
}

// StartTimerRequest is the body of POST /timers.
type StartTimerRequest struct {
	ProjectID   string     `json:"project_id" binding:"required,uuid"`
	Description string     `json:"description" binding:"max=500"`
	StartedAt   *time.Time `json:"started_at"`
}

// StopTimerRequest is the optional body of POST /timers/:id/stop.
type StopTimerRequest struct {
	StoppedAt *time.Time `json:"stopped_at"`
}

// CreateEntryRequest is the body of POST /time-entries.
type CreateEntryRequest struct {
	ProjectID   string    `json:"project_id" binding:"required,uuid"`
	Description string    `json:"description" binding:"max=500"`
	RawStart    time.Time `json:"raw_start" binding:"required"`
	RawEnd      time.Time `json:"raw_end" binding:"required"`
	Billable    *bool     `json:"billable"`
}

// RoundingPreviewRequest is the body of POST /rounding/preview.
type RoundingPreviewRequest struct {
	RawStart time.Time `json:"raw_start" binding:"required"`
	RawEnd   time.Time `json:"raw_end" binding:"required"`
}

// RoundingPreviewResponse echoes the raw interval next to its rounding.
type RoundingPreviewResponse struct {
	Timezone string                    `json:"timezone"`
	RawStart time.Time                 `json:"raw_start"`
	RawEnd   time.Time                 `json:"raw_end"`
	Rounded  timetracking.RoundedEntry `json:"rounded"`
}

// ListEntriesRequest holds the query of GET /time-entries.
type ListEntriesRequest struct {
	dto.ListRequest
	ProjectID  string `form:"project_id" binding:"omitempty,uuid"`
	From       string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To         string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Billable   *bool  `form:"billable"`
	Uninvoiced bool   `form:"uninvoiced"`
}

// SummaryRequest holds the query of GET /projects/:id/summary.
type SummaryRequest struct {
	From string `form:"from" binding:"required,datetime=2006-01-02"`
	To   string `form:"to" binding:"required,datetime=2006-01-02"`
}

// StartTimer handles POST /api/v1/timers
func (h *TimeTrackingHandler) StartTimer(c *gin.Context) {
	var req StartTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	timer, err := h.service.StartTimer(c.Request.Context(), apptime.StartTimerRequest{
		ProjectID:   uuid.MustParse(req.ProjectID),
		Description: req.Description,
		StartedAt:   req.StartedAt,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, timer)
}

// GetTimer handles GET /api/v1/timers/:id
func (h *TimeTrackingHandler) GetTimer(c *gin.Context) {
	timerID, ok := h.parseID(c, "id", "timer")
	if !ok {
		return
	}
	timer, err := h.service.GetTimer(c.Request.Context(), timerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, timer)
}

// StopTimer handles POST /api/v1/timers/:id/stop
func (h *TimeTrackingHandler) StopTimer(c *gin.Context) {
	timerID, ok := h.parseID(c, "id", "timer")
	if !ok {
		return
	}

	var req StopTimerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindingError(c, err)
			return
		}
	}

	entry, err := h.service.StopTimer(c.Request.Context(), timerID, apptime.StopTimerRequest{StoppedAt: req.StoppedAt})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, entry)
}

// CreateEntry handles POST /api/v1/time-entries
func (h *TimeTrackingHandler) CreateEntry(c *gin.Context) {
	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	entry, err := h.service.CreateManualEntry(c.Request.Context(), apptime.CreateEntryRequest{
		ProjectID:   uuid.MustParse(req.ProjectID),
		Description: req.Description,
		RawStart:    req.RawStart,
		RawEnd:      req.RawEnd,
		Billable:    req.Billable,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, entry)
}

// GetEntry handles GET /api/v1/time-entries/:id
func (h *TimeTrackingHandler) GetEntry(c *gin.Context) {
	entryID, ok := h.parseID(c, "id", "time entry")
	if !ok {
		return
	}
	entry, err := h.service.GetEntry(c.Request.Context(), entryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// ListEntries handles GET /api/v1/time-entries
func (h *TimeTrackingHandler) ListEntries(c *gin.Context) {
	var req ListEntriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	req.ListRequest = req.ListRequest.WithDefaults()

	q := apptime.ListEntriesQuery{
		Billable:   req.Billable,
		Uninvoiced: req.Uninvoiced,
		Page:       req.Page,
		PageSize:   req.PageSize,
		OrderBy:    req.OrderBy,
		OrderDir:   req.OrderDir,
	}
	if req.ProjectID != "" {
		projectID := uuid.MustParse(req.ProjectID)
		q.ProjectID = &projectID
	}
	var err error
	if q.From, err = parseOptionalDate(h.calendar, req.From); err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_DATE", "from must be YYYY-MM-DD")
		return
	}
	if q.To, err = parseOptionalDate(h.calendar, req.To); err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_DATE", "to must be YYYY-MM-DD")
		return
	}

	page, err := h.service.ListEntries(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ProjectSummary handles GET /api/v1/projects/:id/summary
func (h *TimeTrackingHandler) ProjectSummary(c *gin.Context) {
	projectID, ok := h.parseID(c, "id", "project")
	if !ok {
		return
	}
	var req SummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	from, err := parseDate(h.calendar, req.From)
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_DATE", "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDate(h.calendar, req.To)
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_DATE", "to must be YYYY-MM-DD")
		return
	}

	summary, err := h.service.SummarizePeriod(c.Request.Context(), projectID, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// PreviewRounding handles POST /api/v1/rounding/preview
func (h *TimeTrackingHandler) PreviewRounding(c *gin.Context) {
	var req RoundingPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	rounded, err := h.service.PreviewRounding(req.RawStart, req.RawEnd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RoundingPreviewResponse{
		Timezone: h.calendar.Name(),
		RawStart: req.RawStart,
		RawEnd:   req.RawEnd,
		Rounded:  rounded,
	})
}
