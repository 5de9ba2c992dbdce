package timetracking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tally/backend/internal/domain/shared"
)

// TimeEntryFilter defines filtering options for time entry queries
type TimeEntryFilter struct {
	shared.Filter
	ProjectID  *uuid.UUID // Filter by project
	From       *time.Time // Rounded start at or after
	To         *time.Time // Rounded start before
	Billable   *bool      // Filter by billable flag
	Uninvoiced bool       // Only entries not yet on an invoice
}

// TimerRepository defines the interface for running timer persistence
type TimerRepository interface {
	// FindByID finds a timer by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Timer, error)

	// FindRunningByProject finds the running timer of a project
	FindRunningByProject(ctx context.Context, projectID uuid.UUID) (*Timer, error)

	// Save creates or updates a timer
	Save(ctx context.Context, timer *Timer) error

	// Delete removes a timer
	Delete(ctx context.Context, id uuid.UUID) error
}

// TimeEntryRepository defines the interface for time entry persistence
type TimeEntryRepository interface {
	// FindByID finds a time entry by ID
	FindByID(ctx context.Context, id uuid.UUID) (*TimeEntry, error)

	// FindAll finds time entries matching the filter
	FindAll(ctx context.Context, filter TimeEntryFilter) ([]TimeEntry, error)

	// Count counts time entries matching the filter
	Count(ctx context.Context, filter TimeEntryFilter) (int64, error)

	// FindByInvoice finds the entries billed on an invoice
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]TimeEntry, error)

	// Save creates or updates a time entry
	Save(ctx context.Context, entry *TimeEntry) error

	// SaveBatch saves several entries
	SaveBatch(ctx context.Context, entries []*TimeEntry) error

	// MarkInvoiced links still-uninvoiced entries to an invoice, all or none.
	// Returns shared.ErrConcurrencyConflict if any entry was billed meanwhile.
	MarkInvoiced(ctx context.Context, invoiceID uuid.UUID, entries []*TimeEntry) error
}
