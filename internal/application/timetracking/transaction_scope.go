package timetracking

import (
	"context"

	"github.com/tally/backend/internal/domain/timetracking"
)

// TransactionScope runs a unit of work against the timer and entry
// repositories. A failing fn rolls back everything it wrote.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories share the transaction of the enclosing scope.
type TransactionalRepositories interface {
	TimerRepo() timetracking.TimerRepository
	EntryRepo() timetracking.TimeEntryRepository
}

// NoOpTransactionScope hands out the plain repositories without a
// transaction. Used by tests and single-statement callers.
type NoOpTransactionScope struct {
	timerRepo timetracking.TimerRepository
	entryRepo timetracking.TimeEntryRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope.
func NewNoOpTransactionScope(timerRepo timetracking.TimerRepository, entryRepo timetracking.TimeEntryRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{timerRepo: timerRepo, entryRepo: entryRepo}
}

// Execute calls fn directly.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) TimerRepo() timetracking.TimerRepository     { return s.timerRepo }
func (s *NoOpTransactionScope) EntryRepo() timetracking.TimeEntryRepository { return s.entryRepo }

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
