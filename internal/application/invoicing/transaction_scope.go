package invoicing

import (
	"context"

	"github.com/tally/backend/internal/domain/invoicing"
	"github.com/tally/backend/internal/domain/timetracking"
)

// TransactionScope runs a unit of work against the billing repositories.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories share one database transaction.
//
// Invoices own their payment records; time entries are a separate aggregate
// but are written in the same transaction when they are billed or released.
type TransactionalRepositories interface {
	InvoiceRepo() invoicing.InvoiceRepository
	PaymentRepo() invoicing.PaymentRepository
	EntryRepo() timetracking.TimeEntryRepository
}

// NoOpTransactionScope runs fn against the plain repositories.
type NoOpTransactionScope struct {
	invoiceRepo invoicing.InvoiceRepository
	paymentRepo invoicing.PaymentRepository
	entryRepo   timetracking.TimeEntryRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope.
func NewNoOpTransactionScope(
	invoiceRepo invoicing.InvoiceRepository,
	paymentRepo invoicing.PaymentRepository,
	entryRepo timetracking.TimeEntryRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		entryRepo:   entryRepo,
	}
}

// Execute calls fn directly.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) InvoiceRepo() invoicing.InvoiceRepository    { return s.invoiceRepo }
func (s *NoOpTransactionScope) PaymentRepo() invoicing.PaymentRepository    { return s.paymentRepo }
func (s *NoOpTransactionScope) EntryRepo() timetracking.TimeEntryRepository { return s.entryRepo }

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
