package invoicing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/domain/shared/valueobject"
)

var (
	invoiceID = uuid.New()
	march1    = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	march2    = time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
)

func eur(s string) valueobject.Money {
	return valueobject.MustMoney(s, valueobject.EUR)
}

func record(amount string, kind PaymentKind, date time.Time) PaymentRecord {
	return PaymentRecord{
		ID:        uuid.New(),
		InvoiceID: invoiceID,
		Amount:    eur(amount),
		Kind:      kind,
		Date:      date,
	}
}

func payment(amount string, date time.Time) PaymentRecord {
	return record(amount, PaymentKindPayment, date)
}

func refund(amount string, date time.Time) PaymentRecord {
	return record(amount, PaymentKindRefund, date)
}

func TestValidateInvoice_OverbilledWithDuplicates(t *testing.T) {
	state, err := ValidateInvoice(eur("1000.00"), []PaymentRecord{
		payment("600.00", march1),
		payment("600.00", march1),
	}, DefaultValidationConfig())
	require.NoError(t, err)

	assert.Equal(t, "1200.00", state.TotalPaid.StringFixed(2))
	assert.Equal(t, "-200.00", state.Balance.StringFixed(2))
	assert.Equal(t, BillingStatusOverbilled, state.Status)
	assert.True(t, state.Duplicates.HasDuplicates)
	assert.Equal(t, 1, state.Duplicates.DuplicateCount)
	require.Len(t, state.Duplicates.Groups, 1)
	assert.Equal(t, "2024-03-01", state.Duplicates.Groups[0].Date)
	require.Len(t, state.Warnings, 2)
	assert.Contains(t, state.Warnings[0], "overbilled by 200.00 EUR")
	assert.Contains(t, state.Warnings[1], "duplicate")
}

func TestValidateInvoice_WithinToleranceWarns(t *testing.T) {
	state, err := ValidateInvoice(eur("500.00"), []PaymentRecord{
		payment("498.60", march1),
	}, DefaultValidationConfig())
	require.NoError(t, err)

	assert.Equal(t, "1.40", state.Balance.StringFixed(2))
	assert.Equal(t, BillingStatusValid, state.Status)
	require.Len(t, state.Warnings, 1)
	assert.Contains(t, state.Warnings[0], "1.40 EUR")
	assert.False(t, state.Duplicates.HasDuplicates)
}

func TestValidateInvoice_ExactlyPaidHasNoWarnings(t *testing.T) {
	state, err := ValidateInvoice(eur("250.00"), []PaymentRecord{
		payment("200.00", march1),
		payment("50.00", march2),
	}, DefaultValidationConfig())
	require.NoError(t, err)
	assert.Equal(t, BillingStatusValid, state.Status)
	assert.Empty(t, state.Warnings)
	assert.True(t, state.Balance.IsZero())
}

func TestValidateInvoice_Underbilled(t *testing.T) {
	state, err := ValidateInvoice(eur("1000.00"), []PaymentRecord{
		payment("400.00", march1),
	}, DefaultValidationConfig())
	require.NoError(t, err)
	assert.Equal(t, BillingStatusUnderbilled, state.Status)
	require.Len(t, state.Warnings, 1)
	assert.Contains(t, state.Warnings[0], "underbilled by 600.00 EUR")
	assert.Contains(t, state.Warnings[0], "expected 1000.00 EUR, paid 400.00 EUR")
}

func TestValidateInvoice_NoPayments(t *testing.T) {
	state, err := ValidateInvoice(eur("80.00"), nil, DefaultValidationConfig())
	require.NoError(t, err)
	assert.Equal(t, BillingStatusUnderbilled, state.Status)
	assert.True(t, state.TotalPaid.IsZero())
	assert.Equal(t, valueobject.EUR, state.TotalPaid.Currency())

	state, err = ValidateInvoice(eur("0"), nil, DefaultValidationConfig())
	require.NoError(t, err)
	assert.Equal(t, BillingStatusValid, state.Status)
	assert.Empty(t, state.Warnings)
}

func TestValidateInvoice_ThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name string
		paid string
		want BillingStatus
	}{
		{"balance equals threshold", "998.50", BillingStatusValid},
		{"balance one cent above threshold", "998.49", BillingStatusUnderbilled},
		{"balance equals negative threshold", "1001.50", BillingStatusValid},
		{"balance one cent below negative threshold", "1001.51", BillingStatusOverbilled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := ValidateInvoice(eur("1000.00"), []PaymentRecord{payment(tt.paid, march1)}, DefaultValidationConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.want, state.Status)
		})
	}
}

func TestValidateInvoice_SumLaw(t *testing.T) {
	payments := []PaymentRecord{
		payment("100.10", march1),
		payment("200.20", march1),
		refund("50.05", march2),
		payment("0.01", march2),
		refund("0.02", march2),
	}
	state, err := ValidateInvoice(eur("300.00"), payments, DefaultValidationConfig())
	require.NoError(t, err)

	// 300.31 paid - 50.07 refunded
	assert.True(t, state.TotalPaid.Amount().Equal(decimal.RequireFromString("250.24")))
	assert.True(t, state.Balance.Amount().Equal(decimal.RequireFromString("49.76")))
	sum, err := state.TotalPaid.Add(state.Balance)
	require.NoError(t, err)
	assert.True(t, sum.Equals(state.InvoiceTotal))
}

func TestValidateInvoice_RefundsReduceOverpayment(t *testing.T) {
	state, err := ValidateInvoice(eur("1000.00"), []PaymentRecord{
		payment("600.00", march1),
		payment("600.00", march1),
		refund("200.00", march2),
	}, DefaultValidationConfig())
	require.NoError(t, err)
	assert.Equal(t, BillingStatusValid, state.Status)
	assert.False(t, state.Duplicates.HasDuplicates)
	assert.Empty(t, state.Warnings)
}

func TestValidateInvoice_CustomThreshold(t *testing.T) {
	cfg, err := NewValidationConfig(WithThreshold(decimal.Zero))
	require.NoError(t, err)

	state, err := ValidateInvoice(eur("500.00"), []PaymentRecord{payment("499.99", march1)}, cfg)
	require.NoError(t, err)
	assert.Equal(t, BillingStatusUnderbilled, state.Status)

	cfg, err = NewValidationConfig(WithThreshold(decimal.NewFromInt(10)))
	require.NoError(t, err)
	state, err = ValidateInvoice(eur("500.00"), []PaymentRecord{payment("491.00", march1)}, cfg)
	require.NoError(t, err)
	assert.Equal(t, BillingStatusValid, state.Status)
	assert.Contains(t, state.Warnings[0], "tolerance of 10.00 EUR")
}

func TestValidateInvoice_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		total    valueobject.Money
		payments []PaymentRecord
		cfg      ValidationConfig
	}{
		{"negative total", eur("-1.00"), nil, DefaultValidationConfig()},
		{"negative payment", eur("100.00"), []PaymentRecord{payment("-5.00", march1)}, DefaultValidationConfig()},
		{"currency mismatch", eur("100.00"), []PaymentRecord{{
			ID: uuid.New(), Amount: valueobject.MustMoney("5", valueobject.USD), Kind: PaymentKindPayment, Date: march1,
		}}, DefaultValidationConfig()},
		{"unknown kind", eur("100.00"), []PaymentRecord{record("5.00", PaymentKind("CHARGEBACK"), march1)}, DefaultValidationConfig()},
		{"negative threshold", eur("100.00"), nil, ValidationConfig{ThresholdAmount: decimal.NewFromInt(-1)}},
		{"missing currency", valueobject.Money{}, nil, DefaultValidationConfig()},
		{"sub-cent total", eur("500.001"), nil, DefaultValidationConfig()},
		{"sub-cent payment", eur("500.00"), []PaymentRecord{payment("498.495", march1)}, DefaultValidationConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateInvoice(tt.total, tt.payments, tt.cfg)
			require.Error(t, err)
			assert.True(t, shared.IsPrecondition(err))
		})
	}
}

func TestDetectDuplicatePayments(t *testing.T) {
	t.Run("no payments", func(t *testing.T) {
		report := DetectDuplicatePayments(nil)
		assert.False(t, report.HasDuplicates)
		assert.Zero(t, report.DuplicateCount)
	})

	t.Run("same amount different dates", func(t *testing.T) {
		report := DetectDuplicatePayments([]PaymentRecord{payment("10", march1), payment("10", march2)})
		assert.False(t, report.HasDuplicates)
	})

	t.Run("same date different amounts", func(t *testing.T) {
		report := DetectDuplicatePayments([]PaymentRecord{payment("10", march1), payment("11", march1)})
		assert.False(t, report.HasDuplicates)
	})

	t.Run("scale does not matter", func(t *testing.T) {
		report := DetectDuplicatePayments([]PaymentRecord{payment("10", march1), payment("10.00", march1)})
		assert.True(t, report.HasDuplicates)
		assert.Equal(t, "10.00", report.Groups[0].Amount)
	})

	t.Run("time of day is ignored", func(t *testing.T) {
		report := DetectDuplicatePayments([]PaymentRecord{
			payment("10", march1.Add(9*time.Hour)),
			payment("10", march1.Add(17*time.Hour)),
		})
		assert.Equal(t, 1, report.DuplicateCount)
	})

	t.Run("each group contributes count minus one", func(t *testing.T) {
		report := DetectDuplicatePayments([]PaymentRecord{
			payment("10", march2),
			payment("10", march2),
			payment("10", march2),
			payment("25", march1),
			payment("25", march1),
			payment("99", march1),
		})
		assert.True(t, report.HasDuplicates)
		assert.Equal(t, 3, report.DuplicateCount)
		require.Len(t, report.Groups, 2)
		assert.Equal(t, "2024-03-01", report.Groups[0].Date)
		assert.Equal(t, 2, report.Groups[0].Count)
		assert.Equal(t, 3, report.Groups[1].Count)
		assert.Len(t, report.Groups[1].PaymentIDs, 3)
	})
}

func TestValidateProposedPayment(t *testing.T) {
	existing := []PaymentRecord{payment("600.00", march1)}

	t.Run("advisory mode never blocks", func(t *testing.T) {
		verdict, err := ValidateProposedPayment(eur("1000.00"), existing, eur("600.00"), DefaultValidationConfig())
		require.NoError(t, err)
		assert.True(t, verdict.IsValid)
		assert.Equal(t, BillingStatusOverbilled, verdict.ProjectedStatus)
		assert.Equal(t, "-200.00", verdict.ProjectedBalance.StringFixed(2))
		assert.Equal(t, BillingStatusUnderbilled, verdict.Current.Status)
		require.NotEmpty(t, verdict.Warnings)
		assert.Contains(t, verdict.Warnings[0], "overbilled")
	})

	t.Run("strict mode rejects projected overbilling", func(t *testing.T) {
		cfg, err := NewValidationConfig(WithStrictMode(true))
		require.NoError(t, err)

		verdict, err := ValidateProposedPayment(eur("1000.00"), existing, eur("600.00"), cfg)
		require.NoError(t, err)
		assert.False(t, verdict.IsValid)
		assert.Len(t, verdict.Warnings, 2)
	})

	t.Run("strict mode accepts settling payment", func(t *testing.T) {
		cfg, err := NewValidationConfig(WithStrictMode(true))
		require.NoError(t, err)

		verdict, err := ValidateProposedPayment(eur("1000.00"), existing, eur("401.50"), cfg)
		require.NoError(t, err)
		assert.True(t, verdict.IsValid)
		assert.Equal(t, BillingStatusValid, verdict.ProjectedStatus)
	})

	t.Run("strict mode accepts underpayment", func(t *testing.T) {
		cfg, err := NewValidationConfig(WithStrictMode(true))
		require.NoError(t, err)

		verdict, err := ValidateProposedPayment(eur("1000.00"), existing, eur("100.00"), cfg)
		require.NoError(t, err)
		assert.True(t, verdict.IsValid)
		assert.Equal(t, BillingStatusUnderbilled, verdict.ProjectedStatus)
	})

	t.Run("sub-cent proposed amount is refused", func(t *testing.T) {
		_, err := ValidateProposedPayment(eur("1000.00"), existing, eur("399.995"), DefaultValidationConfig())
		require.Error(t, err)
		assert.True(t, shared.IsPrecondition(err))
	})

	t.Run("projection does not recheck duplicates", func(t *testing.T) {
		verdict, err := ValidateProposedPayment(eur("1000.00"), existing, eur("600.00"), DefaultValidationConfig())
		require.NoError(t, err)
		for _, w := range verdict.Warnings {
			assert.NotContains(t, w, "duplicate")
		}
	})

	t.Run("refund projection lowers amount paid", func(t *testing.T) {
		cfg, err := NewValidationConfig(WithStrictMode(true))
		require.NoError(t, err)

		verdict, err := ValidateProposedRecord(eur("1000.00"), existing, eur("100.00"), PaymentKindRefund, cfg)
		require.NoError(t, err)
		assert.True(t, verdict.IsValid)
		assert.Equal(t, "500.00", verdict.ProjectedBalance.StringFixed(2))
	})

	t.Run("preconditions", func(t *testing.T) {
		_, err := ValidateProposedPayment(eur("1000.00"), existing, eur("-1"), DefaultValidationConfig())
		assert.True(t, shared.IsPrecondition(err))

		_, err = ValidateProposedPayment(eur("1000.00"), existing, valueobject.MustMoney("1", valueobject.GBP), DefaultValidationConfig())
		assert.True(t, shared.IsPrecondition(err))

		_, err = ValidateProposedPayment(eur("-1000.00"), existing, eur("1"), DefaultValidationConfig())
		assert.True(t, shared.IsPrecondition(err))

		_, err = ValidateProposedRecord(eur("1000.00"), existing, eur("1"), PaymentKind("X"), DefaultValidationConfig())
		assert.True(t, shared.IsPrecondition(err))
	})
}

func TestValidationConfig(t *testing.T) {
	cfg := DefaultValidationConfig()
	assert.True(t, cfg.ThresholdAmount.Equal(decimal.RequireFromString("1.50")))
	assert.False(t, cfg.StrictMode)

	_, err := NewValidationConfig(WithThreshold(decimal.NewFromInt(-2)))
	assert.True(t, shared.IsPrecondition(err))

	// Building one config never changes another.
	strict, err := NewValidationConfig(WithStrictMode(true), WithThreshold(decimal.NewFromInt(5)))
	require.NoError(t, err)
	assert.True(t, strict.StrictMode)
	assert.False(t, DefaultValidationConfig().StrictMode)
	assert.True(t, DefaultValidationConfig().ThresholdAmount.Equal(decimal.RequireFromString("1.5")))
}
