package invoicing

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/tally/backend/internal/domain/invoicing"
	"github.com/tally/backend/internal/domain/timetracking"
)

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByNumber(ctx context.Context, number string) (*invoicing.Invoice, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Count(ctx context.Context, filter invoicing.InvoiceFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, inv *invoicing.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, inv *invoicing.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]invoicing.PaymentRecord, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.PaymentRecord), args.Error(1)
}

func (m *MockPaymentRepository) Save(ctx context.Context, p *invoicing.PaymentRecord) error {
	return m.Called(ctx, p).Error(0)
}

type MockTimeEntryRepository struct {
	mock.Mock
}

func (m *MockTimeEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*timetracking.TimeEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*timetracking.TimeEntry), args.Error(1)
}

func (m *MockTimeEntryRepository) FindAll(ctx context.Context, filter timetracking.TimeEntryFilter) ([]timetracking.TimeEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]timetracking.TimeEntry), args.Error(1)
}

func (m *MockTimeEntryRepository) Count(ctx context.Context, filter timetracking.TimeEntryFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTimeEntryRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]timetracking.TimeEntry, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]timetracking.TimeEntry), args.Error(1)
}

func (m *MockTimeEntryRepository) Save(ctx context.Context, entry *timetracking.TimeEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockTimeEntryRepository) SaveBatch(ctx context.Context, entries []*timetracking.TimeEntry) error {
	return m.Called(ctx, entries).Error(0)
}

func (m *MockTimeEntryRepository) MarkInvoiced(ctx context.Context, invoiceID uuid.UUID, entries []*timetracking.TimeEntry) error {
	return m.Called(ctx, invoiceID, entries).Error(0)
}

type MockInvoiceLocker struct {
	mock.Mock
	released int
}

func (m *MockInvoiceLocker) Acquire(ctx context.Context, invoiceID uuid.UUID) (ReleaseFunc, error) {
	args := m.Called(ctx, invoiceID)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		m.released++
		return nil
	}, nil
}
