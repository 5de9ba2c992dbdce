package timetracking

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/tally/backend/internal/domain/timetracking"
)

type MockTimerRepository struct {
	mock.Mock
}

func (m *MockTimerRepository) FindByID(ctx context.Context, id uuid.UUID) (*timetracking.Timer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*timetracking.Timer), args.Error(1)
}

func (m *MockTimerRepository) FindRunningByProject(ctx context.Context, projectID uuid.UUID) (*timetracking.Timer, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*timetracking.Timer), args.Error(1)
}

func (m *MockTimerRepository) Save(ctx context.Context, timer *timetracking.Timer) error {
	return m.Called(ctx, timer).Error(0)
}

func (m *MockTimerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
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
