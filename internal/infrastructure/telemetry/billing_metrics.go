package telemetry

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics constructor receives no meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// EntrySource tells how a time entry was produced.
type EntrySource string

const (
	EntrySourceTimer  EntrySource = "timer"
	EntrySourceManual EntrySource = "manual"
)

// BillingMetrics records rounding and reconciliation outcomes.
// A nil *BillingMetrics is valid and records nothing.
type BillingMetrics struct {
	roundedEntriesTotal   *Counter
	roundedHours          *Histogram
	reconciliationsTotal  *Counter
	paymentsRecordedTotal *Counter
	paymentsRejectedTotal *Counter
	duplicatesTotal       *Counter
}

// NewBillingMetrics creates the billing instruments on meter.
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	bm := &BillingMetrics{}
	var err error

	if bm.roundedEntriesTotal, err = NewCounter(meter,
		"tally_time_entries_rounded_total",
		"Total number of time entries produced by quarter-hour rounding",
		"{entries}",
	); err != nil {
		return nil, err
	}

	if bm.roundedHours, err = NewHistogram(meter, HistogramOpts{
		Name:        "tally_time_entry_duration_hours",
		Description: "Rounded duration of time entries",
		Unit:        "h",
		Boundaries:  DurationHoursBuckets,
	}); err != nil {
		return nil, err
	}

	if bm.reconciliationsTotal, err = NewCounter(meter,
		"tally_invoice_reconciliations_total",
		"Total number of invoice reconciliations by resulting status",
		"{reconciliations}",
	); err != nil {
		return nil, err
	}

	if bm.paymentsRecordedTotal, err = NewCounter(meter,
		"tally_payments_recorded_total",
		"Total number of payments and refunds recorded",
		"{payments}",
	); err != nil {
		return nil, err
	}

	if bm.paymentsRejectedTotal, err = NewCounter(meter,
		"tally_payments_rejected_total",
		"Total number of payments rejected in strict mode",
		"{payments}",
	); err != nil {
		return nil, err
	}

	if bm.duplicatesTotal, err = NewCounter(meter,
		"tally_duplicate_payments_detected_total",
		"Total number of suspected duplicate payments found during reconciliation",
		"{payments}",
	); err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordRoundedEntry records one rounded time entry.
func (bm *BillingMetrics) RecordRoundedEntry(ctx context.Context, source EntrySource, hours decimal.Decimal) {
	if bm == nil {
		return
	}
	bm.roundedEntriesTotal.Inc(ctx, AttrEntrySource.String(string(source)))
	bm.roundedHours.Record(ctx, hours.InexactFloat64(), AttrEntrySource.String(string(source)))
}

// RecordReconciliation records the status an invoice was classified as and
// any suspected duplicates.
func (bm *BillingMetrics) RecordReconciliation(ctx context.Context, status string, duplicates int) {
	if bm == nil {
		return
	}
	bm.reconciliationsTotal.Inc(ctx, AttrBillingStatus.String(status))
	if duplicates > 0 {
		bm.duplicatesTotal.Add(ctx, int64(duplicates))
	}
}

// RecordPayment records a committed payment or refund.
func (bm *BillingMetrics) RecordPayment(ctx context.Context, kind, currency string) {
	if bm == nil {
		return
	}
	bm.paymentsRecordedTotal.Inc(ctx, AttrPaymentKind.String(kind), AttrCurrency.String(currency))
}

// RecordRejectedPayment records a payment refused by strict validation.
func (bm *BillingMetrics) RecordRejectedPayment(ctx context.Context, kind string) {
	if bm == nil {
		return
	}
	bm.paymentsRejectedTotal.Inc(ctx, AttrPaymentKind.String(kind), AttrStrictMode.Bool(true))
}
