package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/pcshop/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LockFactory creates job locks based on configuration
type LockFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	client                *redis.Client
}

// LockFactoryOption is a functional option for configuring the factory
type LockFactoryOption func(*LockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockFactoryOption {
	return func(f *LockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory lock when Redis is unavailable.
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) LockFactoryOption {
	return func(f *LockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockFactory creates a new factory
func NewLockFactory(cfg config.RedisConfig, opts ...LockFactoryOption) *LockFactory {
	f := &LockFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateLock returns a Redis lock when Redis is enabled and reachable and an
// in-memory lock otherwise (if fallback is allowed)
func (f *LockFactory) CreateLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory job lock", zap.String("key", key))
		return NewInMemoryLock(ttl), nil
	}

	if f.client == nil {
		client, err := NewRedisClient(ctx, f.redisConfig)
		if err != nil {
			if !f.allowInMemoryFallback {
				return nil, fmt.Errorf("Redis required for job lock but unavailable: %w", err)
			}
			f.logger.Warn("Redis unavailable, falling back to in-memory job lock. "+
				"Scheduled jobs may run on every instance.",
				zap.String("key", key),
				zap.Error(err),
			)
			return NewInMemoryLock(ttl), nil
		}
		f.client = client
	}

	f.logger.Info("Using Redis job lock", zap.String("key", key), zap.Duration("ttl", ttl))
	return NewRedisLockWithClient(f.client, key, ttl)
}

// Close releases the Redis connection if one was opened
func (f *LockFactory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}
