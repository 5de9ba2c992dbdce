package timetracking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tally/backend/internal/domain/timetracking"
)

// StartTimerRequest starts a project timer. StartedAt defaults to now.
type StartTimerRequest struct {
	ProjectID   uuid.UUID
	Description string
	StartedAt   *time.Time
}

// StopTimerRequest stops a running timer. StoppedAt defaults to now.
type StopTimerRequest struct {
	StoppedAt *time.Time
}

// CreateEntryRequest books a manually entered interval. Billable defaults to true.
type CreateEntryRequest struct {
	ProjectID   uuid.UUID
	Description string
	RawStart    time.Time
	RawEnd      time.Time
	Billable    *bool
}

// ListEntriesQuery filters the entry listing.
type ListEntriesQuery struct {
	ProjectID  *uuid.UUID
	From       *time.Time
	To         *time.Time
	Billable   *bool
	Uninvoiced bool
	Page       int
	PageSize   int
	OrderBy    string
	OrderDir   string
}

// TimerResponse is a running timer as returned to callers.
type TimerResponse struct {
	ID             uuid.UUID `json:"id"`
	ProjectID      uuid.UUID `json:"project_id"`
	Description    string    `json:"description"`
	StartedAt      time.Time `json:"started_at"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
}

// TimeEntryResponse is a stored time entry.
type TimeEntryResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProjectID     uuid.UUID       `json:"project_id"`
	TimerID       *uuid.UUID      `json:"timer_id,omitempty"`
	Description   string          `json:"description"`
	RawStart      time.Time       `json:"raw_start"`
	RawEnd        time.Time       `json:"raw_end"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	DurationHours decimal.Decimal `json:"duration_hours"`
	Billable      bool            `json:"billable"`
	InvoiceID     *uuid.UUID      `json:"invoice_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SummaryResponse is a project's billing period summary.
type SummaryResponse struct {
	ProjectID       uuid.UUID       `json:"project_id"`
	Timezone        string          `json:"timezone"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	EntryCount      int             `json:"entry_count"`
	TotalHours      decimal.Decimal `json:"total_hours"`
	BillableHours   decimal.Decimal `json:"billable_hours"`
	UninvoicedHours decimal.Decimal `json:"uninvoiced_hours"`
}

// ToTimerResponse converts a timer, computing elapsed time at now.
func ToTimerResponse(t *timetracking.Timer, now time.Time) TimerResponse {
	return TimerResponse{
		ID:             t.ID,
		ProjectID:      t.ProjectID,
		Description:    t.Description,
		StartedAt:      t.StartedAt,
		ElapsedSeconds: int64(t.Elapsed(now).Seconds()),
	}
}

// ToTimeEntryResponse converts a time entry.
func ToTimeEntryResponse(e *timetracking.TimeEntry) TimeEntryResponse {
	return TimeEntryResponse{
		ID:            e.ID,
		ProjectID:     e.ProjectID,
		TimerID:       e.TimerID,
		Description:   e.Description,
		RawStart:      e.RawStart,
		RawEnd:        e.RawEnd,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		DurationHours: e.DurationHours,
		Billable:      e.Billable,
		InvoiceID:     e.InvoiceID,
		CreatedAt:     e.CreatedAt,
	}
}

// ToTimeEntryResponses converts a slice of entries.
func ToTimeEntryResponses(entries []timetracking.TimeEntry) []TimeEntryResponse {
	out := make([]TimeEntryResponse, len(entries))
	for i := range entries {
		out[i] = ToTimeEntryResponse(&entries[i])
	}
	return out
}
