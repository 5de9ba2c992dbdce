package timetracking

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tally/backend/internal/domain/shared"
)

// MaxDescriptionLength bounds free-text descriptions on timers and entries.
const MaxDescriptionLength = 500

// Timer is a running stopwatch for a project. At most one timer runs per
// project; stopping it produces a rounded TimeEntry and discards the timer.
type Timer struct {
	shared.BaseEntity
	ProjectID   uuid.UUID `json:"project_id"`
	Description string    `json:"description"`
	StartedAt   time.Time `json:"started_at"`
}

// StartTimer creates a timer for a project started at the given instant.
func StartTimer(projectID uuid.UUID, description string, startedAt time.Time) (*Timer, error) {
	if projectID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROJECT", "Project ID cannot be empty")
	}
	if startedAt.IsZero() {
		return nil, shared.NewDomainError("INVALID_START", "Start time cannot be empty")
	}
	description = strings.TrimSpace(description)
	if len(description) > MaxDescriptionLength {
		return nil, shared.NewDomainError("INVALID_DESCRIPTION", "Description cannot exceed 500 characters")
	}

	return &Timer{
		BaseEntity:  shared.NewBaseEntity(),
		ProjectID:   projectID,
		Description: description,
		StartedAt:   startedAt,
	}, nil
}

// Stop rounds the running interval and builds the resulting time entry.
// A stop instant before StartedAt is a precondition violation.
func (t *Timer) Stop(stoppedAt time.Time, cal Calendar) (*TimeEntry, error) {
	rounded, err := RoundTimerToQuarters(t.StartedAt, stoppedAt, cal)
	if err != nil {
		return nil, err
	}
	timerID := t.ID
	return NewTimeEntry(TimeEntryParams{
		ProjectID:   t.ProjectID,
		TimerID:     &timerID,
		Description: t.Description,
		RawStart:    t.StartedAt,
		RawEnd:      stoppedAt,
		Billable:    true,
	}, rounded)
}

// Elapsed returns the raw running time at the given instant.
func (t *Timer) Elapsed(now time.Time) time.Duration {
	if now.Before(t.StartedAt) {
		return 0
	}
	return now.Sub(t.StartedAt)
}

// ErrTimerAlreadyRunning is returned when a project already has a running timer.
var ErrTimerAlreadyRunning = shared.NewDomainError("TIMER_ALREADY_RUNNING", "A timer is already running for this project")

var _ shared.Entity = (*Timer)(nil)
