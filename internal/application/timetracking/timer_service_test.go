package timetracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/domain/timetracking"
)

var berlin = timetracking.BerlinCalendar()

func at(hhmmss string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", "2024-03-12 "+hhmmss, berlin.Location())
	if err != nil {
		panic(err)
	}
	return t
}

type timerFixture struct {
	timers  *MockTimerRepository
	entries *MockTimeEntryRepository
	service *TimerService
	now     time.Time
}

func newTimerFixture() *timerFixture {
	f := &timerFixture{
		timers:  new(MockTimerRepository),
		entries: new(MockTimeEntryRepository),
		now:     at("12:00:00"),
	}
	f.service = NewTimerService(
		NewNoOpTransactionScope(f.timers, f.entries),
		f.timers, f.entries, berlin,
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func TestTimerService_StartTimer(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.New()

	t.Run("starts when nothing is running", func(t *testing.T) {
		f := newTimerFixture()
		f.timers.On("FindRunningByProject", mock.Anything, projectID).Return(nil, shared.ErrNotFound)
		f.timers.On("Save", mock.Anything, mock.AnythingOfType("*timetracking.Timer")).Return(nil)

		started := at("09:04:30")
		resp, err := f.service.StartTimer(ctx, StartTimerRequest{ProjectID: projectID, Description: " client call ", StartedAt: &started})
		require.NoError(t, err)
		assert.Equal(t, projectID, resp.ProjectID)
		assert.Equal(t, "client call", resp.Description)
		assert.Equal(t, int64((2*time.Hour + 55*time.Minute + 30*time.Second).Seconds()), resp.ElapsedSeconds)
		f.timers.AssertExpectations(t)
	})

	t.Run("defaults start to now", func(t *testing.T) {
		f := newTimerFixture()
		f.timers.On("FindRunningByProject", mock.Anything, projectID).Return(nil, shared.ErrNotFound)
		f.timers.On("Save", mock.Anything, mock.Anything).Return(nil)

		resp, err := f.service.StartTimer(ctx, StartTimerRequest{ProjectID: projectID})
		require.NoError(t, err)
		assert.True(t, resp.StartedAt.Equal(f.now))
	})

	t.Run("rejects a second timer on the project", func(t *testing.T) {
		f := newTimerFixture()
		running, _ := timetracking.StartTimer(projectID, "", at("08:00:00"))
		f.timers.On("FindRunningByProject", mock.Anything, projectID).Return(running, nil)

		_, err := f.service.StartTimer(ctx, StartTimerRequest{ProjectID: projectID})
		assert.ErrorIs(t, err, timetracking.ErrTimerAlreadyRunning)
		f.timers.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("surfaces lookup failures", func(t *testing.T) {
		f := newTimerFixture()
		f.timers.On("FindRunningByProject", mock.Anything, projectID).Return(nil, errors.New("db down"))

		_, err := f.service.StartTimer(ctx, StartTimerRequest{ProjectID: projectID})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})
}

func TestTimerService_StopTimer(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.New()

	t.Run("rounds, stores the entry and deletes the timer", func(t *testing.T) {
		f := newTimerFixture()
		timer, err := timetracking.StartTimer(projectID, "workshop", at("09:04:30"))
		require.NoError(t, err)

		f.timers.On("FindByID", mock.Anything, timer.ID).Return(timer, nil)
		f.entries.On("Save", mock.Anything, mock.MatchedBy(func(e *timetracking.TimeEntry) bool {
			return e.StartTime.Equal(at("09:00:00")) && e.EndTime.Equal(at("10:00:00"))
		})).Return(nil)
		f.timers.On("Delete", mock.Anything, timer.ID).Return(nil)

		stopped := at("09:56:30")
		resp, err := f.service.StopTimer(ctx, timer.ID, StopTimerRequest{StoppedAt: &stopped})
		require.NoError(t, err)
		assert.Equal(t, "1", resp.DurationHours.String())
		assert.Equal(t, &timer.ID, resp.TimerID)
		assert.True(t, resp.Billable)
		f.timers.AssertExpectations(t)
		f.entries.AssertExpectations(t)
	})

	t.Run("stop before start is a precondition error and keeps the timer", func(t *testing.T) {
		f := newTimerFixture()
		timer, _ := timetracking.StartTimer(projectID, "", at("10:00:00"))
		f.timers.On("FindByID", mock.Anything, timer.ID).Return(timer, nil)

		stopped := at("09:00:00")
		_, err := f.service.StopTimer(ctx, timer.ID, StopTimerRequest{StoppedAt: &stopped})
		assert.True(t, shared.IsPrecondition(err))
		f.timers.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("unknown timer", func(t *testing.T) {
		f := newTimerFixture()
		id := uuid.New()
		f.timers.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		_, err := f.service.StopTimer(ctx, id, StopTimerRequest{})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("entry save failure does not delete the timer", func(t *testing.T) {
		f := newTimerFixture()
		timer, _ := timetracking.StartTimer(projectID, "", at("09:00:00"))
		f.timers.On("FindByID", mock.Anything, timer.ID).Return(timer, nil)
		f.entries.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		_, err := f.service.StopTimer(ctx, timer.ID, StopTimerRequest{})
		require.Error(t, err)
		f.timers.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestTimerService_CreateManualEntry(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.New()

	t.Run("rounds like a timer", func(t *testing.T) {
		f := newTimerFixture()
		f.entries.On("Save", mock.Anything, mock.Anything).Return(nil)

		notBillable := false
		resp, err := f.service.CreateManualEntry(ctx, CreateEntryRequest{
			ProjectID: projectID,
			RawStart:  at("18:59:00"),
			RawEnd:    at("19:14:00"),
			Billable:  &notBillable,
		})
		require.NoError(t, err)
		assert.True(t, resp.StartTime.Equal(at("19:00:00")))
		assert.True(t, resp.EndTime.Equal(at("19:15:00")))
		assert.True(t, resp.DurationHours.Equal(decimal.RequireFromString("0.25")))
		assert.False(t, resp.Billable)
		assert.Nil(t, resp.TimerID)
	})

	t.Run("inverted interval", func(t *testing.T) {
		f := newTimerFixture()
		_, err := f.service.CreateManualEntry(ctx, CreateEntryRequest{
			ProjectID: projectID,
			RawStart:  at("12:00:00"),
			RawEnd:    at("11:00:00"),
		})
		assert.True(t, shared.IsPrecondition(err))
		f.entries.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestTimerService_PreviewRounding(t *testing.T) {
	f := newTimerFixture()
	rounded, err := f.service.PreviewRounding(at("09:11:00"), at("09:11:00"))
	require.NoError(t, err)
	assert.True(t, rounded.StartTime.Equal(at("09:15:00")))
	assert.True(t, rounded.EndTime.Equal(at("09:30:00")))
	assert.Equal(t, "0.25", rounded.DurationHours.String())
}

func TestTimerService_ListEntries(t *testing.T) {
	f := newTimerFixture()
	projectID := uuid.New()
	entry := mustEntry(t, projectID, at("09:00:00"), at("10:30:00"), true)

	from := at("15:00:00")
	to := at("08:00:00").AddDate(0, 0, 2)
	wantFrom := time.Date(2024, 3, 12, 0, 0, 0, 0, berlin.Location())
	wantTo := time.Date(2024, 3, 15, 0, 0, 0, 0, berlin.Location())

	matchFilter := mock.MatchedBy(func(fl timetracking.TimeEntryFilter) bool {
		return fl.Page == 2 && fl.PageSize == 5 &&
			fl.From.Equal(wantFrom) && fl.To.Equal(wantTo) &&
			*fl.ProjectID == projectID
	})
	f.entries.On("FindAll", mock.Anything, matchFilter).Return([]timetracking.TimeEntry{*entry}, nil)
	f.entries.On("Count", mock.Anything, matchFilter).Return(int64(6), nil)

	page, err := f.service.ListEntries(context.Background(), ListEntriesQuery{
		ProjectID: &projectID,
		From:      &from,
		To:        &to,
		Page:      2,
		PageSize:  5,
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(6), page.Total)
	assert.Equal(t, 2, page.TotalPages)
}

func TestTimerService_SummarizePeriod(t *testing.T) {
	f := newTimerFixture()
	projectID := uuid.New()
	entries := []timetracking.TimeEntry{
		*mustEntry(t, projectID, at("09:00:00"), at("10:30:00"), true),
		*mustEntry(t, projectID, at("13:00:00"), at("13:20:00"), false),
	}
	f.entries.On("FindAll", mock.Anything, mock.MatchedBy(func(fl timetracking.TimeEntryFilter) bool {
		return fl.PageSize == 0 && fl.Billable == nil && !fl.Uninvoiced
	})).Return(entries, nil)

	day := at("00:00:00")
	summary, err := f.service.SummarizePeriod(context.Background(), projectID, day, day)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", summary.Timezone)
	assert.Equal(t, "2024-03-12", summary.From)
	assert.Equal(t, 2, summary.EntryCount)
	assert.Equal(t, "2", summary.TotalHours.String())
	assert.Equal(t, "1.5", summary.BillableHours.String())

	_, err = f.service.SummarizePeriod(context.Background(), projectID, day, day.AddDate(0, 0, -1))
	assert.True(t, shared.IsPrecondition(err))
}

func mustEntry(t *testing.T, projectID uuid.UUID, start, end time.Time, billable bool) *timetracking.TimeEntry {
	t.Helper()
	rounded, err := timetracking.RoundTimerToQuarters(start, end, berlin)
	require.NoError(t, err)
	e, err := timetracking.NewTimeEntry(timetracking.TimeEntryParams{
		ProjectID: projectID,
		RawStart:  start,
		RawEnd:    end,
		Billable:  billable,
	}, rounded)
	require.NoError(t, err)
	return e
}
