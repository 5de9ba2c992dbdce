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

// InvoiceStatus is the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"     // Editable, not sent
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"    // Sent, awaiting payment
	InvoiceStatusSettled   InvoiceStatus = "SETTLED"   // Paid within tolerance
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED" // Voided
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusSettled, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// Invoice is the aggregate root for billing a client.
// PaidAmount, Balance, BillingStatus and Warnings mirror the last
// reconciliation and are only written through ApplyBillingState.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber string               `json:"invoice_number"`
	ClientName    string               `json:"client_name"`
	ProjectID     *uuid.UUID           `json:"project_id,omitempty"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Currency      valueobject.Currency `json:"currency"`
	Status        InvoiceStatus        `json:"status"`
	BillingStatus BillingStatus        `json:"billing_status"`
	PaidAmount    decimal.Decimal      `json:"paid_amount"`
	Balance       decimal.Decimal      `json:"balance"`
	Warnings      []string             `json:"warnings"`
	Notes         string               `json:"notes"`
	IssueDate     *time.Time           `json:"issue_date,omitempty"`
	DueDate       *time.Time           `json:"due_date,omitempty"`
	CancelledAt   *time.Time           `json:"cancelled_at,omitempty"`
}

// NewInvoice creates a draft invoice
func NewInvoice(invoiceNumber, clientName string, total valueobject.Money, dueDate *time.Time) (*Invoice, error) {
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	clientName = strings.TrimSpace(clientName)
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if clientName == "" {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client name cannot be empty")
	}
	if len(clientName) > 200 {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client name cannot exceed 200 characters")
	}
	if total.Currency() == "" {
		return nil, shared.NewPreconditionError("invoice total has no currency")
	}
	if total.IsNegative() {
		return nil, shared.NewPreconditionError(fmt.Sprintf("invoice total %s is negative", total))
	}
	if !total.HasScale(valueobject.MoneyPlaces) {
		return nil, shared.NewPreconditionError(fmt.Sprintf(
			"invoice total %s has more than %d decimal places", total.Amount(), valueobject.MoneyPlaces))
	}

	amount := total.Amount()
	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     invoiceNumber,
		ClientName:        clientName,
		TotalAmount:       amount,
		Currency:          total.Currency(),
		Status:            InvoiceStatusDraft,
		BillingStatus:     initialBillingStatus(amount),
		PaidAmount:        decimal.Zero,
		Balance:           amount,
		Warnings:          []string{},
		DueDate:           dueDate,
	}, nil
}

func initialBillingStatus(total decimal.Decimal) BillingStatus {
	if total.IsZero() {
		return BillingStatusValid
	}
	return BillingStatusUnderbilled
}

// Total returns the invoice total as Money
func (i *Invoice) Total() valueobject.Money {
	m, _ := valueobject.NewMoney(i.TotalAmount, i.Currency)
	return m
}

// Issue moves a draft invoice to ISSUED
func (i *Invoice) Issue(issueDate time.Time) error {
	if i.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot issue invoice in %s status", i.Status))
	}
	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	if i.DueDate != nil && i.DueDate.Before(issueDate) {
		return shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot be before the issue date")
	}
	i.Status = InvoiceStatusIssued
	i.IssueDate = &issueDate
	i.IncrementVersion()
	return nil
}

// Cancel voids an invoice that has no money booked against it
func (i *Invoice) Cancel() error {
	if i.Status != InvoiceStatusDraft && i.Status != InvoiceStatusIssued {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel invoice in %s status", i.Status))
	}
	if !i.PaidAmount.IsZero() {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel an invoice with recorded payments")
	}
	now := time.Now()
	i.Status = InvoiceStatusCancelled
	i.CancelledAt = &now
	i.IncrementVersion()
	return nil
}

// CanAcceptPayments returns true once issued and until cancelled
func (i *Invoice) CanAcceptPayments() bool {
	return i.Status == InvoiceStatusIssued || i.Status == InvoiceStatusSettled
}

// ApplyBillingState records a reconciliation verdict on the invoice. A valid
// balance with something paid settles the invoice; anything else reopens it.
func (i *Invoice) ApplyBillingState(state InvoiceBillingState) error {
	if state.InvoiceTotal.Currency() != i.Currency || !state.InvoiceTotal.Amount().Equal(i.TotalAmount) {
		return shared.NewPreconditionError("billing state does not belong to this invoice total")
	}
	i.PaidAmount = state.TotalPaid.Amount()
	i.Balance = state.Balance.Amount()
	i.BillingStatus = state.Status
	i.Warnings = append([]string{}, state.Warnings...)

	if i.CanAcceptPayments() {
		if state.Status == BillingStatusValid && state.TotalPaid.IsPositive() {
			i.Status = InvoiceStatusSettled
		} else {
			i.Status = InvoiceStatusIssued
		}
	}
	i.IncrementVersion()
	return nil
}

// IsOverdue reports whether an issued invoice is past its due date
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.Status == InvoiceStatusIssued && i.DueDate != nil && now.After(*i.DueDate)
}

var _ shared.AggregateRoot = (*Invoice)(nil)
