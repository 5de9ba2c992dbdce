package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/domain/shared/valueobject"
)

// PaymentKind distinguishes money received from money returned
type PaymentKind string

const (
	PaymentKindPayment PaymentKind = "PAYMENT" // Money received from the client
	PaymentKindRefund  PaymentKind = "REFUND"  // Money returned to the client
)

// IsValid checks if the kind is a valid PaymentKind
func (k PaymentKind) IsValid() bool {
	return k == PaymentKindPayment || k == PaymentKindRefund
}

// String returns the string representation of PaymentKind
func (k PaymentKind) String() string {
	return string(k)
}

// ParsePaymentKind parses a kind case-insensitively
func ParsePaymentKind(s string) (PaymentKind, error) {
	k := PaymentKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", shared.NewPreconditionError(fmt.Sprintf("unknown payment kind %q", s))
	}
	return k, nil
}

// PaymentRecord is a single payment or refund booked against an invoice.
// Amount is always non-negative; Kind carries the direction.
type PaymentRecord struct {
	ID        uuid.UUID         `json:"id"`
	InvoiceID uuid.UUID         `json:"invoice_id"`
	Amount    valueobject.Money `json:"amount"`
	Kind      PaymentKind       `json:"kind"`
	Date      time.Time         `json:"date"`
	Reference string            `json:"reference,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewPaymentRecord creates a payment record after checking its preconditions
func NewPaymentRecord(
	invoiceID uuid.UUID,
	amount valueobject.Money,
	kind PaymentKind,
	date time.Time,
	reference string,
) (*PaymentRecord, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if date.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Payment date cannot be empty")
	}
	if len(reference) > 100 {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Reference cannot exceed 100 characters")
	}
	p := &PaymentRecord{
		ID:        uuid.New(),
		InvoiceID: invoiceID,
		Amount:    amount,
		Kind:      kind,
		Date:      date,
		Reference: strings.TrimSpace(reference),
		CreatedAt: time.Now(),
	}
	if err := p.validate(amount.Currency()); err != nil {
		return nil, err
	}
	return p, nil
}

// SignedAmount returns +amount for payments and -amount for refunds
func (p PaymentRecord) SignedAmount() decimal.Decimal {
	if p.Kind == PaymentKindRefund {
		return p.Amount.Amount().Neg()
	}
	return p.Amount.Amount()
}

// DateKey returns the calendar date of the payment as YYYY-MM-DD
func (p PaymentRecord) DateKey() string {
	return p.Date.Format(time.DateOnly)
}

func (p PaymentRecord) validate(currency valueobject.Currency) error {
	if !p.Kind.IsValid() {
		return shared.NewPreconditionError(fmt.Sprintf("payment %s has unknown kind %q", p.ID, p.Kind))
	}
	if p.Amount.IsNegative() {
		return shared.NewPreconditionError(fmt.Sprintf("payment %s has negative amount %s", p.ID, p.Amount))
	}
	if !p.Amount.HasScale(valueobject.MoneyPlaces) {
		return shared.NewPreconditionError(fmt.Sprintf(
			"payment %s amount %s has more than %d decimal places", p.ID, p.Amount.Amount(), valueobject.MoneyPlaces))
	}
	if p.Amount.Currency() != currency {
		return shared.NewPreconditionError(fmt.Sprintf(
			"payment %s is in %s but the invoice is in %s", p.ID, p.Amount.Currency(), currency))
	}
	return nil
}

// ErrPaymentRejected is returned when strict mode refuses a record that would
// overbill the invoice.
var ErrPaymentRejected = shared.NewDomainError("PAYMENT_REJECTED", "Payment rejected: it would overbill the invoice")

// ErrRefundExceedsPaid is returned when a refund is larger than the amount paid so far.
var ErrRefundExceedsPaid = shared.NewDomainError("REFUND_EXCEEDS_PAID", "Refund exceeds the amount paid on the invoice")

// ErrInvoiceNotPayable is returned when money is booked against an invoice
// that is not issued.
var ErrInvoiceNotPayable = shared.NewDomainError("INVOICE_NOT_PAYABLE", "Payments can only be recorded on issued invoices")
