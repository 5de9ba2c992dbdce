package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	appinvoicing "github.com/tally/backend/internal/application/invoicing"
	apptime "github.com/tally/backend/internal/application/timetracking"
	"github.com/tally/backend/internal/domain/invoicing"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/domain/timetracking"
)

type MockTimeTrackingService struct {
	mock.Mock
}

func (m *MockTimeTrackingService) StartTimer(ctx context.Context, req apptime.StartTimerRequest) (*apptime.TimerResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptime.TimerResponse), args.Error(1)
}

func (m *MockTimeTrackingService) GetTimer(ctx context.Context, timerID uuid.UUID) (*apptime.TimerResponse, error) {
	args := m.Called(ctx, timerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptime.TimerResponse), args.Error(1)
}

func (m *MockTimeTrackingService) StopTimer(ctx context.Context, timerID uuid.UUID, req apptime.StopTimerRequest) (*apptime.TimeEntryResponse, error) {
	args := m.Called(ctx, timerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptime.TimeEntryResponse), args.Error(1)
}

func (m *MockTimeTrackingService) CreateManualEntry(ctx context.Context, req apptime.CreateEntryRequest) (*apptime.TimeEntryResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptime.TimeEntryResponse), args.Error(1)
}

func (m *MockTimeTrackingService) GetEntry(ctx context.Context, entryID uuid.UUID) (*apptime.TimeEntryResponse, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptime.TimeEntryResponse), args.Error(1)
}

func (m *MockTimeTrackingService) ListEntries(ctx context.Context, q apptime.ListEntriesQuery) (shared.Paginated[apptime.TimeEntryResponse], error) {
	args := m.Called(ctx, q)
	return args.Get(0).(shared.Paginated[apptime.TimeEntryResponse]), args.Error(1)
}

func (m *MockTimeTrackingService) SummarizePeriod(ctx context.Context, projectID uuid.UUID, from, to time.Time) (*apptime.SummaryResponse, error) {
	args := m.Called(ctx, projectID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptime.SummaryResponse), args.Error(1)
}

func (m *MockTimeTrackingService) PreviewRounding(rawStart, rawEnd time.Time) (timetracking.RoundedEntry, error) {
	args := m.Called(rawStart, rawEnd)
	return args.Get(0).(timetracking.RoundedEntry), args.Error(1)
}

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) CreateInvoice(ctx context.Context, req appinvoicing.CreateInvoiceRequest) (*appinvoicing.InvoiceResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.InvoiceResponse), args.Error(1)
}

func (m *MockInvoiceService) CreateInvoiceFromTimeEntries(ctx context.Context, req appinvoicing.InvoiceFromEntriesRequest) (*appinvoicing.BilledInvoiceResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.BilledInvoiceResponse), args.Error(1)
}

func (m *MockInvoiceService) IssueInvoice(ctx context.Context, invoiceID uuid.UUID, issueDate time.Time) (*appinvoicing.InvoiceResponse, error) {
	args := m.Called(ctx, invoiceID, issueDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.InvoiceResponse), args.Error(1)
}

func (m *MockInvoiceService) CancelInvoice(ctx context.Context, invoiceID uuid.UUID) (*appinvoicing.InvoiceResponse, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.InvoiceResponse), args.Error(1)
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*appinvoicing.InvoiceResponse, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.InvoiceResponse), args.Error(1)
}

func (m *MockInvoiceService) ListInvoices(ctx context.Context, q appinvoicing.ListInvoicesQuery) (shared.Paginated[appinvoicing.InvoiceResponse], error) {
	args := m.Called(ctx, q)
	return args.Get(0).(shared.Paginated[appinvoicing.InvoiceResponse]), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) GetBillingState(ctx context.Context, invoiceID uuid.UUID) (*invoicing.InvoiceBillingState, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.InvoiceBillingState), args.Error(1)
}

func (m *MockPaymentService) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]appinvoicing.PaymentResponse, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]appinvoicing.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) PreviewPayment(ctx context.Context, invoiceID uuid.UUID, kind invoicing.PaymentKind, req appinvoicing.PaymentRequest) (*invoicing.ProposedPaymentVerdict, error) {
	args := m.Called(ctx, invoiceID, kind, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.ProposedPaymentVerdict), args.Error(1)
}

func (m *MockPaymentService) RecordPayment(ctx context.Context, invoiceID uuid.UUID, req appinvoicing.PaymentRequest) (*appinvoicing.RecordPaymentResult, error) {
	args := m.Called(ctx, invoiceID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.RecordPaymentResult), args.Error(1)
}

func (m *MockPaymentService) RecordRefund(ctx context.Context, invoiceID uuid.UUID, req appinvoicing.PaymentRequest) (*appinvoicing.RecordPaymentResult, error) {
	args := m.Called(ctx, invoiceID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.RecordPaymentResult), args.Error(1)
}
