package timetracking

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tally/backend/internal/domain/shared"
)

// PeriodSummary aggregates rounded hours over a billing period.
type PeriodSummary struct {
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
	EntryCount      int             `json:"entry_count"`
	TotalHours      decimal.Decimal `json:"total_hours"`
	BillableHours   decimal.Decimal `json:"billable_hours"`
	UninvoicedHours decimal.Decimal `json:"uninvoiced_hours"`
}

// InPeriod reports whether the entry's rounded start falls on a civil date in
// the inclusive range [from, to] of cal.
func InPeriod(e *TimeEntry, from, to time.Time, cal Calendar) bool {
	day := cal.CivilDate(e.StartTime)
	return !day.Before(cal.CivilDate(from)) && !day.After(cal.CivilDate(to))
}

// SummarizePeriod sums the rounded durations of entries whose start date lies
// within [from, to]. Entries outside the period are ignored.
func SummarizePeriod(entries []TimeEntry, from, to time.Time, cal Calendar) (PeriodSummary, error) {
	if err := cal.validate(); err != nil {
		return PeriodSummary{}, err
	}
	from, to = cal.CivilDate(from), cal.CivilDate(to)
	if to.Before(from) {
		return PeriodSummary{}, shared.NewPreconditionError("period end is before period start")
	}

	summary := PeriodSummary{
		From:            from,
		To:              to,
		TotalHours:      decimal.Zero,
		BillableHours:   decimal.Zero,
		UninvoicedHours: decimal.Zero,
	}
	for i := range entries {
		e := &entries[i]
		if !InPeriod(e, from, to, cal) {
			continue
		}
		summary.EntryCount++
		summary.TotalHours = summary.TotalHours.Add(e.DurationHours)
		if e.Billable {
			summary.BillableHours = summary.BillableHours.Add(e.DurationHours)
			if !e.IsInvoiced() {
				summary.UninvoicedHours = summary.UninvoicedHours.Add(e.DurationHours)
			}
		}
	}
	return summary, nil
}
