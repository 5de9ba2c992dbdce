// Package lock provides the per-invoice write locks used by the payment
// service: an in-process implementation and a Redis one for deployments with
// more than one instance.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	appinvoicing "github.com/tally/backend/internal/application/invoicing"
	"github.com/tally/backend/internal/domain/shared"
)

// Options tune how long a lock lives and how long callers wait for one.
type Options struct {
	// TTL bounds how long a holder keeps the lock if it never releases.
	TTL time.Duration
	// Wait is the budget Acquire spends before giving up. Defaults to TTL.
	Wait time.Duration
	// RetryInterval is the polling period of the Redis locker.
	RetryInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 10 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = o.TTL
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 25 * time.Millisecond
	}
	return o
}

type heldLock struct {
	token     uint64
	expiresAt time.Time
	released  chan struct{}
}

// MemoryLocker serialises writers per invoice inside one process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*heldLock
	next  uint64
	opts  Options
	now   func() time.Time
}

// NewMemoryLocker creates a MemoryLocker.
func NewMemoryLocker(opts Options) *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[uuid.UUID]*heldLock),
		opts:  opts.withDefaults(),
		now:   time.Now,
	}
}

// Acquire blocks until the invoice lock is free, its holder's TTL lapses,
// or the wait budget runs out.
func (l *MemoryLocker) Acquire(ctx context.Context, invoiceID uuid.UUID) (appinvoicing.ReleaseFunc, error) {
	deadline := l.now().Add(l.opts.Wait)

	for {
		l.mu.Lock()
		now := l.now()
		held, busy := l.locks[invoiceID]
		if busy && !now.Before(held.expiresAt) {
			close(held.released)
			busy = false
		}
		if !busy {
			l.next++
			token := l.next
			l.locks[invoiceID] = &heldLock{
				token:     token,
				expiresAt: now.Add(l.opts.TTL),
				released:  make(chan struct{}),
			}
			l.mu.Unlock()
			return l.releaser(invoiceID, token), nil
		}
		wake := held.released
		wait := min(deadline.Sub(now), held.expiresAt.Sub(now))
		l.mu.Unlock()

		if wait <= 0 {
			return nil, shared.ErrLockNotAcquired
		}

		timer := time.NewTimer(wait)
		select {
		case <-wake:
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %v", shared.ErrLockNotAcquired, ctx.Err())
		}
		timer.Stop()
	}
}

func (l *MemoryLocker) releaser(invoiceID uuid.UUID, token uint64) appinvoicing.ReleaseFunc {
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()

		held, ok := l.locks[invoiceID]
		if !ok || held.token != token {
			return nil
		}
		delete(l.locks, invoiceID)
		close(held.released)
		return nil
	}
}

// Held returns the number of invoices currently locked, expired holders included.
func (l *MemoryLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

var _ appinvoicing.InvoiceLocker = (*MemoryLocker)(nil)
