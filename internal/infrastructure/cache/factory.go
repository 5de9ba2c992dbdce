package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tally/backend/internal/infrastructure/config"
)

// New builds the idempotency store for billing.lock_backend: a store that
// is shared across instances whenever the invoice locks are.
func New(ctx context.Context, billing config.BillingConfig, redisCfg config.RedisConfig, logger *zap.Logger) (IdempotencyStore, error) {
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
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		logger.Info("Idempotency keys stored in Redis",
			zap.String("addr", redisCfg.Addr()),
			zap.Duration("ttl", billing.IdempotencyTTL),
		)
		return NewRedisIdempotencyStore(client, ""), nil

	case config.LockBackendMemory, "":
		logger.Info("Idempotency keys held in memory",
			zap.Duration("ttl", billing.IdempotencyTTL),
		)
		return NewInMemoryIdempotencyStore(0), nil

	default:
		return nil, fmt.Errorf("unknown lock backend %q", billing.LockBackend)
	}
}
