package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hookline/hookline/pkg/config"
	"github.com/hookline/hookline/pkg/logger"
)

const redisPingTimeout = 10 * time.Second

// Redis owns the client connection shared by the queue and any other Redis
// consumer in the process.
type Redis struct {
	client redis.UniversalClient
	config *config.RedisConfig
	once   sync.Once
}

// NewRedis connects and verifies the server responds before returning.
func NewRedis(ctx context.Context, cfg *config.RedisConfig) (*Redis, error) {
	log := logger.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password.Value(),
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis server (timeout=%s): %w", redisPingTimeout, err)
	}
	log.With(
		"host", cfg.Host,
		"port", cfg.Port,
		"db", cfg.DB,
	).Info("redis connection established")
	return &Redis{client: client, config: cfg}, nil
}

// Client returns the underlying client.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// HealthCheck verifies the server still answers.
func (r *Redis) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}

// Close shuts the connection down exactly once.
func (r *Redis) Close(ctx context.Context) error {
	var err error
	r.once.Do(func() {
		err = r.client.Close()
		if err != nil {
			logger.FromContext(ctx).Error("redis connection close failed", "error", err)
		} else {
			logger.FromContext(ctx).Debug("redis connection closed")
		}
	})
	return err
}
