package timetracking

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally/backend/internal/domain/shared"
)

func TestStartTimer(t *testing.T) {
	projectID := uuid.New()
	now := time.Now()

	t.Run("creates timer", func(t *testing.T) {
		timer, err := StartTimer(projectID, "  Backend work ", now)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, timer.ID)
		assert.Equal(t, projectID, timer.ProjectID)
		assert.Equal(t, "Backend work", timer.Description)
		assert.Equal(t, now, timer.StartedAt)
	})

	t.Run("rejects empty project", func(t *testing.T) {
		_, err := StartTimer(uuid.Nil, "", now)
		assert.Error(t, err)
	})

	t.Run("rejects zero start", func(t *testing.T) {
		_, err := StartTimer(projectID, "", time.Time{})
		assert.Error(t, err)
	})

	t.Run("rejects long description", func(t *testing.T) {
		_, err := StartTimer(projectID, strings.Repeat("x", 501), now)
		assert.Error(t, err)
	})
}

func TestTimer_Stop(t *testing.T) {
	cal := BerlinCalendar()
	start := time.Date(2024, time.April, 2, 9, 4, 30, 0, cal.Location())
	timer, err := StartTimer(uuid.New(), "Review", start)
	require.NoError(t, err)

	entry, err := timer.Stop(start.Add(52*time.Minute), cal) // 09:56:30
	require.NoError(t, err)

	assert.Equal(t, timer.ProjectID, entry.ProjectID)
	require.NotNil(t, entry.TimerID)
	assert.Equal(t, timer.ID, *entry.TimerID)
	assert.Equal(t, start, entry.RawStart)
	assert.Equal(t, time.Date(2024, time.April, 2, 9, 0, 0, 0, cal.Location()), entry.StartTime)
	assert.Equal(t, time.Date(2024, time.April, 2, 10, 0, 0, 0, cal.Location()), entry.EndTime)
	assert.Equal(t, "1", entry.DurationHours.String())
	assert.True(t, entry.Billable)
	assert.False(t, entry.IsInvoiced())

	_, err = timer.Stop(start.Add(-time.Second), cal)
	assert.True(t, shared.IsPrecondition(err))
}

func TestTimer_Elapsed(t *testing.T) {
	start := time.Now()
	timer, err := StartTimer(uuid.New(), "", start)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, timer.Elapsed(start.Add(10*time.Minute)))
	assert.Zero(t, timer.Elapsed(start.Add(-time.Minute)))
}

func newTestEntry(t *testing.T, cal Calendar, start time.Time, minutes int, billable bool) *TimeEntry {
	t.Helper()
	rounded, err := RoundTimerToQuarters(start, start.Add(time.Duration(minutes)*time.Minute), cal)
	require.NoError(t, err)
	entry, err := NewTimeEntry(TimeEntryParams{
		ProjectID: uuid.New(),
		RawStart:  start,
		RawEnd:    start.Add(time.Duration(minutes) * time.Minute),
		Billable:  billable,
	}, rounded)
	require.NoError(t, err)
	return entry
}

func TestNewTimeEntry_RejectsUnroundedInterval(t *testing.T) {
	now := time.Now()
	_, err := NewTimeEntry(TimeEntryParams{ProjectID: uuid.New()}, RoundedEntry{
		StartTime:     now,
		EndTime:       now,
		DurationHours: decimal.Zero,
	})
	assert.True(t, shared.IsPrecondition(err))

	_, err = NewTimeEntry(TimeEntryParams{}, RoundedEntry{})
	assert.Error(t, err)
}

func TestTimeEntry_MarkInvoiced(t *testing.T) {
	cal := BerlinCalendar()
	start := time.Date(2024, time.April, 2, 9, 0, 0, 0, cal.Location())

	t.Run("marks billable entry once", func(t *testing.T) {
		entry := newTestEntry(t, cal, start, 60, true)
		invoiceID := uuid.New()

		require.NoError(t, entry.MarkInvoiced(invoiceID))
		assert.True(t, entry.IsInvoiced())
		assert.False(t, entry.IsInvoiceable())
		assert.Equal(t, 2, entry.GetVersion())

		err := entry.MarkInvoiced(uuid.New())
		assert.Error(t, err)

		entry.ReleaseInvoice(uuid.New())
		assert.True(t, entry.IsInvoiced())
		entry.ReleaseInvoice(invoiceID)
		assert.False(t, entry.IsInvoiced())
	})

	t.Run("rejects non billable entry", func(t *testing.T) {
		entry := newTestEntry(t, cal, start, 60, false)
		assert.Error(t, entry.MarkInvoiced(uuid.New()))
	})

	t.Run("rejects nil invoice", func(t *testing.T) {
		entry := newTestEntry(t, cal, start, 60, true)
		assert.Error(t, entry.MarkInvoiced(uuid.Nil))
	})
}

func TestTimeEntry_AmountFor(t *testing.T) {
	cal := BerlinCalendar()
	entry := newTestEntry(t, cal, time.Date(2024, time.April, 2, 9, 0, 0, 0, cal.Location()), 165, true)
	assert.Equal(t, "233.75", entry.AmountFor(decimal.NewFromInt(85)).StringFixed(2))
}

func TestSummarizePeriod(t *testing.T) {
	cal := BerlinCalendar()
	day := func(d, h int) time.Time { return time.Date(2024, time.May, d, h, 0, 0, 0, cal.Location()) }

	inside := newTestEntry(t, cal, day(2, 9), 90, true)
	invoiced := newTestEntry(t, cal, day(3, 9), 60, true)
	require.NoError(t, invoiced.MarkInvoiced(uuid.New()))
	internal := newTestEntry(t, cal, day(31, 23), 30, false)
	outside := newTestEntry(t, cal, day(1, 0).Add(-time.Hour), 60, true) // April 30 23:00

	summary, err := SummarizePeriod(
		[]TimeEntry{*inside, *invoiced, *internal, *outside},
		day(1, 12), day(31, 0), cal,
	)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.EntryCount)
	assert.Equal(t, "3", summary.TotalHours.String())
	assert.Equal(t, "2.5", summary.BillableHours.String())
	assert.Equal(t, "1.5", summary.UninvoicedHours.String())
	assert.Equal(t, time.Date(2024, time.May, 1, 0, 0, 0, 0, cal.Location()), summary.From)

	_, err = SummarizePeriod(nil, day(5, 0), day(4, 0), cal)
	assert.True(t, shared.IsPrecondition(err))

	_, err = SummarizePeriod(nil, day(4, 0), day(5, 0), Calendar{})
	assert.True(t, shared.IsPrecondition(err))

	empty, err := SummarizePeriod(nil, day(4, 0), day(4, 0), cal)
	require.NoError(t, err)
	assert.True(t, empty.TotalHours.IsZero())
}
