package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tally/backend/internal/domain/shared"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	Status        *InvoiceStatus // Filter by lifecycle status
	BillingStatus *BillingStatus // Filter by reconciliation status
	ClientName    string         // Case-insensitive substring match
	ProjectID     *uuid.UUID     // Filter by project
	IssuedFrom    *time.Time     // Issue date range start
	IssuedTo      *time.Time     // Issue date range end
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByNumber finds an invoice by its number
	FindByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)

	// FindAll finds invoices matching the filter
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)

	// Count counts invoices matching the filter
	Count(ctx context.Context, filter InvoiceFilter) (int64, error)

	// ExistsByNumber checks whether an invoice number is taken
	ExistsByNumber(ctx context.Context, invoiceNumber string) (bool, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}

// PaymentRepository defines the interface for payment record persistence
type PaymentRepository interface {
	// FindByInvoice returns every payment and refund of an invoice ordered by date
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]PaymentRecord, error)

	// Save persists a payment record
	Save(ctx context.Context, payment *PaymentRecord) error
}
