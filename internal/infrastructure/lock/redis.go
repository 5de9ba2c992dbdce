package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appinvoicing "github.com/tally/backend/internal/application/invoicing"
	"github.com/tally/backend/internal/domain/shared"
)

const defaultKeyPrefix = "tally:lock:invoice:"

// releaseScript deletes the key only while it still holds our token, so a
// holder whose TTL lapsed cannot drop a lock someone else now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serialises writers per invoice across processes with
// SET NX PX and a token-checked release.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
	opts      Options
}

// NewRedisLocker creates a RedisLocker on an existing client.
func NewRedisLocker(client *redis.Client, keyPrefix string, opts Options) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisLocker{
		client:    client,
		keyPrefix: keyPrefix,
		opts:      opts.withDefaults(),
	}
}

// Acquire polls SET NX until it wins, the wait budget runs out or ctx ends.
func (l *RedisLocker) Acquire(ctx context.Context, invoiceID uuid.UUID) (appinvoicing.ReleaseFunc, error) {
	key := l.keyPrefix + invoiceID.String()
	token := uuid.NewString()
	deadline := time.Now().Add(l.opts.Wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", shared.ErrLockNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire invoice lock: %w", err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, shared.ErrLockNotAcquired
		}

		timer := time.NewTimer(min(l.opts.RetryInterval, remaining))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %v", shared.ErrLockNotAcquired, ctx.Err())
		}
	}
}

func (l *RedisLocker) releaser(key, token string) appinvoicing.ReleaseFunc {
	return func(ctx context.Context) error {
		err := releaseScript.Run(ctx, l.client, []string{key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to release invoice lock: %w", err)
		}
		return nil
	}
}

// Ping checks the Redis connection. It backs the lock component of /health.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

var _ appinvoicing.InvoiceLocker = (*RedisLocker)(nil)
