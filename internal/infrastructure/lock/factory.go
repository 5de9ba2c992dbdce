package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appinvoicing "github.com/tally/backend/internal/application/invoicing"
	"github.com/tally/backend/internal/infrastructure/config"
)

// New builds the invoice locker selected by billing.lock_backend. The returned
// close function releases backend resources and is never nil.
func New(ctx context.Context, billing config.BillingConfig, redisCfg config.RedisConfig, logger *zap.Logger) (appinvoicing.InvoiceLocker, func() error, error) {
	opts := Options{TTL: billing.LockTTL}

	switch billing.LockBackend {
	case config.LockBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr(),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		logger.Info("Invoice locks backed by Redis",
			zap.String("addr", redisCfg.Addr()),
			zap.Duration("ttl", billing.LockTTL),
		)
		locker := NewRedisLocker(client, "", opts)
		return locker, locker.Close, nil

	case config.LockBackendMemory, "":
		logger.Info("Invoice locks held in memory",
			zap.Duration("ttl", billing.LockTTL),
		)
		return NewMemoryLocker(opts), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", billing.LockBackend)
	}
}
