package timetracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/domain/timetracking"
	"github.com/tally/backend/internal/infrastructure/logger"
	"github.com/tally/backend/internal/infrastructure/telemetry"
)

// TimerService runs project timers and books rounded time entries.
type TimerService struct {
	scope     TransactionScope
	timerRepo timetracking.TimerRepository
	entryRepo timetracking.TimeEntryRepository
	calendar  timetracking.Calendar
	metrics   *telemetry.BillingMetrics
	now       func() time.Time
}

// TimerServiceOption configures a TimerService.
type TimerServiceOption func(*TimerService)

// WithMetrics records rounded entries on m.
func WithMetrics(m *telemetry.BillingMetrics) TimerServiceOption {
	return func(s *TimerService) { s.metrics = m }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) TimerServiceOption {
	return func(s *TimerService) { s.now = now }
}

// NewTimerService creates a TimerService rounding in cal.
func NewTimerService(
	scope TransactionScope,
	timerRepo timetracking.TimerRepository,
	entryRepo timetracking.TimeEntryRepository,
	cal timetracking.Calendar,
	opts ...TimerServiceOption,
) *TimerService {
	s := &TimerService{
		scope:     scope,
		timerRepo: timerRepo,
		entryRepo: entryRepo,
		calendar:  cal,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calendar returns the calendar entries are rounded in.
func (s *TimerService) Calendar() timetracking.Calendar {
	return s.calendar
}

// StartTimer starts a timer unless the project already has one running.
func (s *TimerService) StartTimer(ctx context.Context, req StartTimerRequest) (*TimerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "timer", "start")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrProjectID, req.ProjectID.String())

	running, err := s.timerRepo.FindRunningByProject(ctx, req.ProjectID)
	switch {
	case err == nil && running != nil:
		telemetry.RecordError(span, timetracking.ErrTimerAlreadyRunning)
		return nil, timetracking.ErrTimerAlreadyRunning
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to look up running timer: %w", err)
	}

	startedAt := s.now()
	if req.StartedAt != nil {
		startedAt = *req.StartedAt
	}
	timer, err := timetracking.StartTimer(req.ProjectID, req.Description, startedAt)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.timerRepo.Save(ctx, timer); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save timer: %w", err)
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrTimerID, timer.ID.String())
	logger.L(ctx).Info("timer started",
		zap.String("timer_id", timer.ID.String()),
		zap.String("project_id", timer.ProjectID.String()),
	)
	resp := ToTimerResponse(timer, s.now())
	return &resp, nil
}

// GetTimer returns a running timer.
func (s *TimerService) GetTimer(ctx context.Context, timerID uuid.UUID) (*TimerResponse, error) {
	timer, err := s.timerRepo.FindByID(ctx, timerID)
	if err != nil {
		return nil, err
	}
	resp := ToTimerResponse(timer, s.now())
	return &resp, nil
}

// StopTimer rounds the timer's interval, stores the resulting entry and
// removes the timer in one transaction.
func (s *TimerService) StopTimer(ctx context.Context, timerID uuid.UUID, req StopTimerRequest) (*TimeEntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "timer", "stop")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrTimerID, timerID.String())

	stoppedAt := s.now()
	if req.StoppedAt != nil {
		stoppedAt = *req.StoppedAt
	}

	var entry *timetracking.TimeEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		timer, err := repos.TimerRepo().FindByID(ctx, timerID)
		if err != nil {
			return err
		}
		entry, err = timer.Stop(stoppedAt, s.calendar)
		if err != nil {
			return err
		}
		if err := repos.EntryRepo().Save(ctx, entry); err != nil {
			return fmt.Errorf("failed to save time entry: %w", err)
		}
		if err := repos.TimerRepo().Delete(ctx, timer.ID); err != nil {
			return fmt.Errorf("failed to delete timer: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntryID, entry.ID.String(),
		telemetry.SpanAttrDurationHours, entry.DurationHours.String(),
	)
	s.metrics.RecordRoundedEntry(ctx, telemetry.EntrySourceTimer, entry.DurationHours)
	logger.L(ctx).Info("timer stopped",
		zap.String("timer_id", timerID.String()),
		zap.String("time_entry_id", entry.ID.String()),
		zap.String("duration_hours", entry.DurationHours.String()),
	)
	resp := ToTimeEntryResponse(entry)
	return &resp, nil
}

// CreateManualEntry books an interval entered after the fact. It is rounded
// exactly like a stopped timer.
func (s *TimerService) CreateManualEntry(ctx context.Context, req CreateEntryRequest) (*TimeEntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "time_entry", "create_manual")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrProjectID, req.ProjectID.String())

	rounded, err := timetracking.RoundTimerToQuarters(req.RawStart, req.RawEnd, s.calendar)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	billable := true
	if req.Billable != nil {
		billable = *req.Billable
	}
	entry, err := timetracking.NewTimeEntry(timetracking.TimeEntryParams{
		ProjectID:   req.ProjectID,
		Description: req.Description,
		RawStart:    req.RawStart,
		RawEnd:      req.RawEnd,
		Billable:    billable,
	}, rounded)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.entryRepo.Save(ctx, entry); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save time entry: %w", err)
	}

	s.metrics.RecordRoundedEntry(ctx, telemetry.EntrySourceManual, entry.DurationHours)
	resp := ToTimeEntryResponse(entry)
	return &resp, nil
}

// PreviewRounding rounds an interval without storing anything.
func (s *TimerService) PreviewRounding(rawStart, rawEnd time.Time) (timetracking.RoundedEntry, error) {
	return timetracking.RoundTimerToQuarters(rawStart, rawEnd, s.calendar)
}

// GetEntry returns a stored entry.
func (s *TimerService) GetEntry(ctx context.Context, entryID uuid.UUID) (*TimeEntryResponse, error) {
	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	resp := ToTimeEntryResponse(entry)
	return &resp, nil
}

// ListEntries returns one page of entries. Date bounds are civil dates in
// the service calendar, both inclusive.
func (s *TimerService) ListEntries(ctx context.Context, q ListEntriesQuery) (shared.Paginated[TimeEntryResponse], error) {
	filter := timetracking.TimeEntryFilter{
		Filter:     shared.DefaultFilter(),
		ProjectID:  q.ProjectID,
		Billable:   q.Billable,
		Uninvoiced: q.Uninvoiced,
	}
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = q.PageSize
	}
	if q.OrderBy != "" {
		filter.OrderBy = q.OrderBy
	}
	if q.OrderDir != "" {
		filter.OrderDir = q.OrderDir
	}
	if q.From != nil {
		from := s.calendar.CivilDate(*q.From)
		filter.From = &from
	}
	if q.To != nil {
		to := s.calendar.CivilDate(*q.To).AddDate(0, 0, 1)
		filter.To = &to
	}

	entries, err := s.entryRepo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[TimeEntryResponse]{}, fmt.Errorf("failed to list time entries: %w", err)
	}
	total, err := s.entryRepo.Count(ctx, filter)
	if err != nil {
		return shared.Paginated[TimeEntryResponse]{}, fmt.Errorf("failed to count time entries: %w", err)
	}
	return shared.NewPaginated(ToTimeEntryResponses(entries), total, filter.Page, filter.PageSize), nil
}

// SummarizePeriod totals a project's hours over the civil dates [from, to].
func (s *TimerService) SummarizePeriod(ctx context.Context, projectID uuid.UUID, from, to time.Time) (*SummaryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "time_entry", "summarize_period")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrProjectID, projectID.String())

	entries, err := LoadPeriodEntries(ctx, s.entryRepo, s.calendar, projectID, from, to, false)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	summary, err := timetracking.SummarizePeriod(entries, from, to, s.calendar)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &SummaryResponse{
		ProjectID:       projectID,
		Timezone:        s.calendar.Name(),
		From:            summary.From.Format(time.DateOnly),
		To:              summary.To.Format(time.DateOnly),
		EntryCount:      summary.EntryCount,
		TotalHours:      summary.TotalHours,
		BillableHours:   summary.BillableHours,
		UninvoicedHours: summary.UninvoicedHours,
	}, nil
}

// LoadPeriodEntries fetches every entry of a project whose rounded start lies
// on a civil date in [from, to]. With invoiceable set only billable entries
// not yet on an invoice are returned.
func LoadPeriodEntries(
	ctx context.Context,
	repo timetracking.TimeEntryRepository,
	cal timetracking.Calendar,
	projectID uuid.UUID,
	from, to time.Time,
	invoiceable bool,
) ([]timetracking.TimeEntry, error) {
	if cal.IsZero() {
		return nil, shared.NewPreconditionError("calendar is not set")
	}
	start := cal.CivilDate(from)
	end := cal.CivilDate(to)
	if end.Before(start) {
		return nil, shared.NewPreconditionError("period end is before period start")
	}
	end = end.AddDate(0, 0, 1)

	filter := timetracking.TimeEntryFilter{
		Filter:    shared.Filter{OrderBy: "start_time", OrderDir: "asc"},
		ProjectID: &projectID,
		From:      &start,
		To:        &end,
	}
	if invoiceable {
		billable := true
		filter.Billable = &billable
		filter.Uninvoiced = true
	}
	entries, err := repo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load time entries: %w", err)
	}
	return entries, nil
}
