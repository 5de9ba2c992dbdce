package invoicing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/domain/shared/valueobject"
)

// BillingStatus classifies an invoice balance against the tolerance
type BillingStatus string

const (
	BillingStatusValid       BillingStatus = "VALID"       // Balance within tolerance
	BillingStatusUnderbilled BillingStatus = "UNDERBILLED" // Client still owes more than the tolerance
	BillingStatusOverbilled  BillingStatus = "OVERBILLED"  // Client paid more than the tolerance
)

// IsValid checks if the status is a valid BillingStatus
func (s BillingStatus) IsValid() bool {
	switch s {
	case BillingStatusValid, BillingStatusUnderbilled, BillingStatusOverbilled:
		return true
	}
	return false
}

// String returns the string representation of BillingStatus
func (s BillingStatus) String() string {
	return string(s)
}

// DuplicateGroup is a set of records sharing amount and date
type DuplicateGroup struct {
	Amount     string   `json:"amount"`
	Date       string   `json:"date"`
	Count      int      `json:"count"`
	PaymentIDs []string `json:"payment_ids"`
}

// DuplicateReport summarises suspected duplicate payments
type DuplicateReport struct {
	HasDuplicates  bool             `json:"has_duplicates"`
	DuplicateCount int              `json:"duplicate_count"`
	Groups         []DuplicateGroup `json:"groups,omitempty"`
}

// InvoiceBillingState is the verdict of ValidateInvoice
type InvoiceBillingState struct {
	InvoiceTotal valueobject.Money `json:"invoice_total"`
	TotalPaid    valueobject.Money `json:"total_paid"`
	Balance      valueobject.Money `json:"balance"`
	Status       BillingStatus     `json:"status"`
	Warnings     []string          `json:"warnings"`
	Duplicates   DuplicateReport   `json:"duplicates"`
}

// ProposedPaymentVerdict is the verdict of ValidateProposedPayment
type ProposedPaymentVerdict struct {
	IsValid          bool                `json:"is_valid"`
	Warnings         []string            `json:"warnings"`
	ProjectedBalance valueobject.Money   `json:"projected_balance"`
	ProjectedStatus  BillingStatus       `json:"projected_status"`
	Current          InvoiceBillingState `json:"current"`
}

// ValidateInvoice folds payments and refunds into the amount paid, computes
// the balance and classifies it against cfg.ThresholdAmount. Duplicate
// detection runs only when the invoice is overbilled.
func ValidateInvoice(total valueobject.Money, payments []PaymentRecord, cfg ValidationConfig) (InvoiceBillingState, error) {
	if err := checkInvoiceInputs(total, payments, cfg); err != nil {
		return InvoiceBillingState{}, err
	}

	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.SignedAmount())
	}
	totalPaid, _ := valueobject.NewMoney(paid, total.Currency())
	balance, _ := total.Subtract(totalPaid)

	status, warning := classify(total, totalPaid, balance, cfg)
	state := InvoiceBillingState{
		InvoiceTotal: total,
		TotalPaid:    totalPaid,
		Balance:      balance,
		Status:       status,
		Warnings:     []string{},
	}
	if warning != "" {
		state.Warnings = append(state.Warnings, warning)
	}

	if status == BillingStatusOverbilled {
		state.Duplicates = DetectDuplicatePayments(payments)
		if state.Duplicates.HasDuplicates {
			state.Warnings = append(state.Warnings, fmt.Sprintf(
				"Possible duplicate payments: %d record(s) repeat the amount and date of another",
				state.Duplicates.DuplicateCount))
		}
	}
	return state, nil
}

// DetectDuplicatePayments groups records by (amount, date). Each group of n
// records contributes n-1 to the duplicate count. Identical amount and date
// is treated as suspicious whatever the reference says.
func DetectDuplicatePayments(payments []PaymentRecord) DuplicateReport {
	type key struct{ amount, date string }
	groups := make(map[key]*DuplicateGroup)
	order := make([]key, 0, len(payments))

	for _, p := range payments {
		k := key{amount: p.Amount.Amount().StringFixed(valueobject.MoneyPlaces), date: p.DateKey()}
		g, ok := groups[k]
		if !ok {
			g = &DuplicateGroup{Amount: k.amount, Date: k.date}
			groups[k] = g
			order = append(order, k)
		}
		g.Count++
		g.PaymentIDs = append(g.PaymentIDs, p.ID.String())
	}

	report := DuplicateReport{}
	for _, k := range order {
		g := groups[k]
		if g.Count < 2 {
			continue
		}
		report.DuplicateCount += g.Count - 1
		report.Groups = append(report.Groups, *g)
	}
	sort.SliceStable(report.Groups, func(i, j int) bool {
		if report.Groups[i].Date != report.Groups[j].Date {
			return report.Groups[i].Date < report.Groups[j].Date
		}
		return report.Groups[i].Amount < report.Groups[j].Amount
	})
	report.HasDuplicates = report.DuplicateCount > 0
	return report
}

// ValidateProposedPayment projects an incoming payment onto the committed
// state. The projection is re-classified without a duplicate re-check.
// The verdict is advisory unless cfg.StrictMode is set, in which case a
// projected overbilling makes it invalid.
func ValidateProposedPayment(
	total valueobject.Money,
	existing []PaymentRecord,
	proposed valueobject.Money,
	cfg ValidationConfig,
) (ProposedPaymentVerdict, error) {
	return ValidateProposedRecord(total, existing, proposed, PaymentKindPayment, cfg)
}

// ValidateProposedRecord is ValidateProposedPayment for either kind of record.
// A proposed refund lowers the projected amount paid.
func ValidateProposedRecord(
	total valueobject.Money,
	existing []PaymentRecord,
	proposed valueobject.Money,
	kind PaymentKind,
	cfg ValidationConfig,
) (ProposedPaymentVerdict, error) {
	if !kind.IsValid() {
		return ProposedPaymentVerdict{}, shared.NewPreconditionError(fmt.Sprintf("unknown payment kind %q", kind))
	}
	if proposed.IsNegative() {
		return ProposedPaymentVerdict{}, shared.NewPreconditionError(fmt.Sprintf("proposed amount %s is negative", proposed))
	}
	if !proposed.HasScale(valueobject.MoneyPlaces) {
		return ProposedPaymentVerdict{}, shared.NewPreconditionError(fmt.Sprintf(
			"proposed amount %s has more than %d decimal places", proposed.Amount(), valueobject.MoneyPlaces))
	}
	if !proposed.SameCurrency(total) {
		return ProposedPaymentVerdict{}, shared.NewPreconditionError(fmt.Sprintf(
			"proposed amount is in %s but the invoice is in %s", proposed.Currency(), total.Currency()))
	}

	current, err := ValidateInvoice(total, existing, cfg)
	if err != nil {
		return ProposedPaymentVerdict{}, err
	}

	delta := proposed
	if kind == PaymentKindRefund {
		delta = proposed.Negate()
	}
	projectedPaid, _ := current.TotalPaid.Add(delta)
	projectedBalance, _ := total.Subtract(projectedPaid)
	projectedStatus, warning := classify(total, projectedPaid, projectedBalance, cfg)

	verdict := ProposedPaymentVerdict{
		IsValid:          true,
		Warnings:         []string{},
		ProjectedBalance: projectedBalance,
		ProjectedStatus:  projectedStatus,
		Current:          current,
	}
	if warning != "" {
		verdict.Warnings = append(verdict.Warnings, warning)
	}
	if cfg.StrictMode && projectedStatus == BillingStatusOverbilled {
		verdict.IsValid = false
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf(
			"Rejected in strict mode: recording %s would overbill the invoice", proposed))
	}
	return verdict, nil
}

func classify(total, paid, balance valueobject.Money, cfg ValidationConfig) (BillingStatus, string) {
	threshold := cfg.ThresholdAmount
	switch {
	case balance.Amount().GreaterThan(threshold):
		return BillingStatusUnderbilled, fmt.Sprintf(
			"Invoice is underbilled by %s: expected %s, paid %s", balance, total, paid)
	case balance.Amount().LessThan(threshold.Neg()):
		return BillingStatusOverbilled, fmt.Sprintf(
			"Invoice is overbilled by %s: expected %s, paid %s", balance.Abs(), total, paid)
	case !balance.IsZero():
		return BillingStatusValid, fmt.Sprintf(
			"Balance of %s is within the tolerance of %s %s",
			balance, threshold.StringFixed(valueobject.MoneyPlaces), balance.Currency())
	default:
		return BillingStatusValid, ""
	}
}

func checkInvoiceInputs(total valueobject.Money, payments []PaymentRecord, cfg ValidationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if total.Currency() == "" {
		return shared.NewPreconditionError("invoice total has no currency")
	}
	if total.IsNegative() {
		return shared.NewPreconditionError(fmt.Sprintf("invoice total %s is negative", total))
	}
	if !total.HasScale(valueobject.MoneyPlaces) {
		return shared.NewPreconditionError(fmt.Sprintf(
			"invoice total %s has more than %d decimal places", total.Amount(), valueobject.MoneyPlaces))
	}
	for _, p := range payments {
		if err := p.validate(total.Currency()); err != nil {
			return err
		}
	}
	return nil
}
