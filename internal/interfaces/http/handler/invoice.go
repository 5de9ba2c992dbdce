package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appinvoicing "github.com/tally/backend/internal/application/invoicing"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/domain/timetracking"
	"github.com/tally/backend/internal/interfaces/http/dto"
)

// InvoiceService is the part of the invoice service the API uses.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, req appinvoicing.CreateInvoiceRequest) (*appinvoicing.InvoiceResponse, error)
	CreateInvoiceFromTimeEntries(ctx context.Context, req appinvoicing.InvoiceFromEntriesRequest) (*appinvoicing.BilledInvoiceResponse, error)
	IssueInvoice(ctx context.Context, invoiceID uuid.UUID, issueDate time.Time) (*appinvoicing.InvoiceResponse, error)
	CancelInvoice(ctx context.Context, invoiceID uuid.UUID) (*appinvoicing.InvoiceResponse, error)
	GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*appinvoicing.InvoiceResponse, error)
	ListInvoices(ctx context.Context, q appinvoicing.ListInvoicesQuery) (shared.Paginated[appinvoicing.InvoiceResponse], error)
}

// InvoiceHandler serves the invoice lifecycle.
type InvoiceHandler struct {
	BaseHandler
	service  InvoiceService
	calendar timetracking.Calendar
}

// NewInvoiceHandler creates an InvoiceHandler reading dates in cal.
func NewInvoiceHandler(service InvoiceService, cal timetracking.Calendar) *InvoiceHandler {
	return &InvoiceHandler{service: service, calendar: cal}
}

// CreateInvoiceRequest is the body of POST /invoices.
type CreateInvoiceRequest struct {
	InvoiceNumber string           `json:"invoice_number" binding:"required,min=1,max=50"`
	ClientName    string           `json:"client_name" binding:"required,min=1,max=200"`
	ProjectID     string           `json:"project_id" binding:"omitempty,uuid"`
	TotalAmount   *decimal.Decimal `json:"total_amount" binding:"required,decimal_gte0,decimal_scale2"`
	Currency      string           `json:"currency" binding:"omitempty,iso4217"`
	DueDate       string           `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Notes         string           `json:"notes" binding:"max=2000"`
}

// InvoiceFromEntriesRequest is the body of POST /invoices/from-time-entries.
type InvoiceFromEntriesRequest struct {
	InvoiceNumber string           `json:"invoice_number" binding:"required,min=1,max=50"`
	ClientName    string           `json:"client_name" binding:"required,min=1,max=200"`
	ProjectID     string           `json:"project_id" binding:"required,uuid"`
	From          string           `json:"from" binding:"required,datetime=2006-01-02"`
	To            string           `json:"to" binding:"required,datetime=2006-01-02"`
	HourlyRate    *decimal.Decimal `json:"hourly_rate" binding:"required,decimal_gt0"`
	Currency      string           `json:"currency" binding:"omitempty,iso4217"`
	DueDate       string           `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Notes         string           `json:"notes" binding:"max=2000"`
}

// IssueInvoiceRequest is the optional body of POST /invoices/:id/issue.
type IssueInvoiceRequest struct {
	IssueDate string `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
}

// ListInvoicesRequest holds the query of GET /invoices.
type ListInvoicesRequest struct {
	dto.ListRequest
	Status        string `form:"status" binding:"omitempty,oneof=DRAFT ISSUED SETTLED CANCELLED draft issued settled cancelled"`
	BillingStatus string `form:"billing_status" binding:"omitempty,oneof=VALID UNDERBILLED OVERBILLED valid underbilled overbilled"`
	ClientName    string `form:"client_name" binding:"max=200"`
	ProjectID     string `form:"project_id" binding:"omitempty,uuid"`
}

// Create handles POST /api/v1/invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	dueDate, err := parseOptionalDate(h.calendar, req.DueDate)
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_DATE", "due_date must be YYYY-MM-DD")
		return
	}

	appReq := appinvoicing.CreateInvoiceRequest{
		InvoiceNumber: req.InvoiceNumber,
		ClientName:    req.ClientName,
		TotalAmount:   *req.TotalAmount,
		Currency:      req.Currency,
		DueDate:       dueDate,
		Notes:         req.Notes,
	}
	if req.ProjectID != "" {
		projectID := uuid.MustParse(req.ProjectID)
		appReq.ProjectID = &projectID
	}

	invoice, err := h.service.CreateInvoice(c.Request.Context(), appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// CreateFromTimeEntries handles POST /api/v1/invoices/from-time-entries
func (h *InvoiceHandler) CreateFromTimeEntries(c *gin.Context) {
	var req InvoiceFromEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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
	dueDate, err := parseOptionalDate(h.calendar, req.DueDate)
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_DATE", "due_date must be YYYY-MM-DD")
		return
	}

	billed, err := h.service.CreateInvoiceFromTimeEntries(c.Request.Context(), appinvoicing.InvoiceFromEntriesRequest{
		InvoiceNumber: req.InvoiceNumber,
		ClientName:    req.ClientName,
		ProjectID:     uuid.MustParse(req.ProjectID),
		From:          from,
		To:            to,
		HourlyRate:    *req.HourlyRate,
		Currency:      req.Currency,
		DueDate:       dueDate,
		Notes:         req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, billed)
}

// GetByID handles GET /api/v1/invoices/:id
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	invoiceID, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}
	invoice, err := h.service.GetInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// List handles GET /api/v1/invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	var req ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	req.ListRequest = req.ListRequest.WithDefaults()

	q := appinvoicing.ListInvoicesQuery{
		Status:        req.Status,
		BillingStatus: req.BillingStatus,
		ClientName:    req.ClientName,
		Page:          req.Page,
		PageSize:      req.PageSize,
		OrderBy:       req.OrderBy,
		OrderDir:      req.OrderDir,
	}
	if req.ProjectID != "" {
		projectID := uuid.MustParse(req.ProjectID)
		q.ProjectID = &projectID
	}

	page, err := h.service.ListInvoices(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Issue handles POST /api/v1/invoices/:id/issue
func (h *InvoiceHandler) Issue(c *gin.Context) {
	invoiceID, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}

	var req IssueInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindingError(c, err)
			return
		}
	}
	var issueDate time.Time
	if req.IssueDate != "" {
		d, err := parseDate(h.calendar, req.IssueDate)
		if err != nil {
			h.Error(c, http.StatusBadRequest, "INVALID_DATE", "issue_date must be YYYY-MM-DD")
			return
		}
		issueDate = d
	}

	invoice, err := h.service.IssueInvoice(c.Request.Context(), invoiceID, issueDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Cancel handles POST /api/v1/invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	invoiceID, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}
	invoice, err := h.service.CancelInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}
