package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tally/backend/internal/domain/invoicing"
)

// CreateInvoiceRequest creates a draft invoice with a fixed total.
// An empty Currency means the service default.
type CreateInvoiceRequest struct {
	InvoiceNumber string
	ClientName    string
	ProjectID     *uuid.UUID
	TotalAmount   decimal.Decimal
	Currency      string
	DueDate       *time.Time
	Notes         string
}

// InvoiceFromEntriesRequest bills a project's uninvoiced billable hours over
// the civil dates [From, To] at HourlyRate.
type InvoiceFromEntriesRequest struct {
	InvoiceNumber string
	ClientName    string
	ProjectID     uuid.UUID
	From          time.Time
	To            time.Time
	HourlyRate    decimal.Decimal
	Currency      string
	DueDate       *time.Time
	Notes         string
}

// ListInvoicesQuery filters the invoice listing.
type ListInvoicesQuery struct {
	Status        string
	BillingStatus string
	ClientName    string
	ProjectID     *uuid.UUID
	Page          int
	PageSize      int
	OrderBy       string
	OrderDir      string
}

// PaymentRequest books or previews money against an invoice. The amount is in
// the invoice currency; Date defaults to today in the billing calendar.
type PaymentRequest struct {
	Amount    decimal.Decimal
	Date      *time.Time
	Reference string
}

// InvoiceResponse is an invoice as returned to callers.
type InvoiceResponse struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	ClientName    string          `json:"client_name"`
	ProjectID     *uuid.UUID      `json:"project_id,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	BillingStatus string          `json:"billing_status"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Balance       decimal.Decimal `json:"balance"`
	Warnings      []string        `json:"warnings"`
	Notes         string          `json:"notes,omitempty"`
	IssueDate     *time.Time      `json:"issue_date,omitempty"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	Overdue       bool            `json:"overdue"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BilledInvoiceResponse is an invoice built from time entries.
type BilledInvoiceResponse struct {
	Invoice     InvoiceResponse `json:"invoice"`
	EntryIDs    []uuid.UUID     `json:"entry_ids"`
	BilledHours decimal.Decimal `json:"billed_hours"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
}

// PaymentResponse is a stored payment or refund.
type PaymentResponse struct {
	ID        uuid.UUID       `json:"id"`
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Date      string          `json:"date"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RecordPaymentResult is the outcome of booking a payment or refund.
type RecordPaymentResult struct {
	Payment PaymentResponse                  `json:"payment"`
	Verdict invoicing.ProposedPaymentVerdict `json:"verdict"`
	State   invoicing.InvoiceBillingState    `json:"state"`
	Invoice InvoiceResponse                  `json:"invoice"`
}

// ToInvoiceResponse converts an invoice; now decides the overdue flag.
func ToInvoiceResponse(inv *invoicing.Invoice, now time.Time) InvoiceResponse {
	warnings := inv.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return InvoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientName:    inv.ClientName,
		ProjectID:     inv.ProjectID,
		TotalAmount:   inv.TotalAmount,
		Currency:      string(inv.Currency),
		Status:        inv.Status.String(),
		BillingStatus: inv.BillingStatus.String(),
		PaidAmount:    inv.PaidAmount,
		Balance:       inv.Balance,
		Warnings:      warnings,
		Notes:         inv.Notes,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		CancelledAt:   inv.CancelledAt,
		Overdue:       inv.IsOverdue(now),
		Version:       inv.Version,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

// ToPaymentResponse converts a payment record.
func ToPaymentResponse(p *invoicing.PaymentRecord) PaymentResponse {
	return PaymentResponse{
		ID:        p.ID,
		InvoiceID: p.InvoiceID,
		Kind:      p.Kind.String(),
		Amount:    p.Amount.Amount(),
		Currency:  string(p.Amount.Currency()),
		Date:      p.DateKey(),
		Reference: p.Reference,
		CreatedAt: p.CreatedAt,
	}
}
