package timetracking

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tally/backend/internal/domain/shared"
)

// TimeEntry is a persisted, quarter-hour rounded unit of billable work.
// Entries are only ever built from a RoundedEntry, so the stored start, end
// and duration always satisfy the rounding invariants.
type TimeEntry struct {
	shared.BaseAggregateRoot
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
}

// TimeEntryParams are the caller-supplied attributes of a new entry.
type TimeEntryParams struct {
	ProjectID   uuid.UUID
	TimerID     *uuid.UUID
	Description string
	RawStart    time.Time
	RawEnd      time.Time
	Billable    bool
}

// NewTimeEntry creates an entry from raw clicks and their rounded form.
func NewTimeEntry(p TimeEntryParams, rounded RoundedEntry) (*TimeEntry, error) {
	if p.ProjectID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROJECT", "Project ID cannot be empty")
	}
	description := strings.TrimSpace(p.Description)
	if len(description) > MaxDescriptionLength {
		return nil, shared.NewDomainError("INVALID_DESCRIPTION", "Description cannot exceed 500 characters")
	}
	if !rounded.EndTime.After(rounded.StartTime) || rounded.DurationHours.LessThan(MinimumDurationHours) {
		return nil, shared.NewPreconditionError("time entry must be built from a rounded interval")
	}

	return &TimeEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProjectID:         p.ProjectID,
		TimerID:           p.TimerID,
		Description:       description,
		RawStart:          p.RawStart,
		RawEnd:            p.RawEnd,
		StartTime:         rounded.StartTime,
		EndTime:           rounded.EndTime,
		DurationHours:     rounded.DurationHours,
		Billable:          p.Billable,
	}, nil
}

// IsInvoiced returns true once the entry has been billed
func (e *TimeEntry) IsInvoiced() bool {
	return e.InvoiceID != nil
}

// IsInvoiceable returns true for billable entries not yet on an invoice
func (e *TimeEntry) IsInvoiceable() bool {
	return e.Billable && !e.IsInvoiced()
}

// MarkInvoiced links the entry to an invoice. Each entry is billed once.
func (e *TimeEntry) MarkInvoiced(invoiceID uuid.UUID) error {
	if invoiceID == uuid.Nil {
		return shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if !e.Billable {
		return shared.NewDomainError("NOT_BILLABLE", "Time entry is not billable")
	}
	if e.IsInvoiced() {
		return shared.NewDomainError("ALREADY_INVOICED", "Time entry is already on an invoice")
	}
	e.InvoiceID = &invoiceID
	e.IncrementVersion()
	return nil
}

// ReleaseInvoice detaches the entry from a cancelled invoice.
func (e *TimeEntry) ReleaseInvoice(invoiceID uuid.UUID) {
	if e.InvoiceID != nil && *e.InvoiceID == invoiceID {
		e.InvoiceID = nil
		e.IncrementVersion()
	}
}

// AmountFor returns hours multiplied by an hourly rate, rounded to cents.
func (e *TimeEntry) AmountFor(hourlyRate decimal.Decimal) decimal.Decimal {
	return e.DurationHours.Mul(hourlyRate).Round(2)
}

var _ shared.AggregateRoot = (*TimeEntry)(nil)
