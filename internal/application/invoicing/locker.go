package invoicing

import (
	"context"

	"github.com/google/uuid"
)

// ReleaseFunc gives a lock back. Releasing twice is harmless.
type ReleaseFunc func(ctx context.Context) error

// InvoiceLocker serialises writers per invoice, so reading the committed
// payments, judging the new one and writing it happen without interleaving.
// Acquire returns shared.ErrLockNotAcquired when another writer holds the
// lock past the caller's wait budget.
type InvoiceLocker interface {
	Acquire(ctx context.Context, invoiceID uuid.UUID) (ReleaseFunc, error)
}
