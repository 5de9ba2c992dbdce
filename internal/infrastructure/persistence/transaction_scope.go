package persistence

import (
	"context"

	"gorm.io/gorm"

	appinvoicing "github.com/tally/backend/internal/application/invoicing"
	apptime "github.com/tally/backend/internal/application/timetracking"
	"github.com/tally/backend/internal/domain/invoicing"
	"github.com/tally/backend/internal/domain/timetracking"
)

// GormTimeTrackingScope implements the time tracking TransactionScope using
// GORM transactions.
type GormTimeTrackingScope struct {
	db *gorm.DB
}

// NewGormTimeTrackingScope creates a new GormTimeTrackingScope.
func NewGormTimeTrackingScope(db *gorm.DB) *GormTimeTrackingScope {
	return &GormTimeTrackingScope{db: db}
}

// Execute runs fn within a database transaction. The transaction is rolled
// back when fn returns an error and committed otherwise.
func (s *GormTimeTrackingScope) Execute(ctx context.Context, fn func(repos apptime.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// GormBillingScope implements the invoicing TransactionScope using GORM
// transactions.
type GormBillingScope struct {
	db *gorm.DB
}

// NewGormBillingScope creates a new GormBillingScope.
func NewGormBillingScope(db *gorm.DB) *GormBillingScope {
	return &GormBillingScope{db: db}
}

// Execute runs fn within a database transaction.
func (s *GormBillingScope) Execute(ctx context.Context, fn func(repos appinvoicing.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) TimerRepo() timetracking.TimerRepository {
	return NewGormTimerRepository(r.tx)
}

func (r *gormTransactionalRepositories) EntryRepo() timetracking.TimeEntryRepository {
	return NewGormTimeEntryRepository(r.tx)
}

func (r *gormTransactionalRepositories) InvoiceRepo() invoicing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentRepo() invoicing.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

var (
	_ apptime.TransactionScope               = (*GormTimeTrackingScope)(nil)
	_ apptime.TransactionalRepositories      = (*gormTransactionalRepositories)(nil)
	_ appinvoicing.TransactionScope          = (*GormBillingScope)(nil)
	_ appinvoicing.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
