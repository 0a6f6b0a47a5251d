package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hookline/hookline/pkg/config"
	"github.com/hookline/hookline/pkg/logger"
)

const (
	defaultMaxConns           = 10
	defaultConnectTimeout     = 5 * time.Second
	defaultPingTimeout        = 3 * time.Second
	defaultHealthCheckTimeout = 1 * time.Second
)

// Store is the PostgreSQL driver backed by pgxpool.Pool. It does not leak
// pgx types through its public API; repositories receive the pool through
// the narrow DB interface.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore initializes the pool from the config and verifies connectivity
// before returning.
func NewStore(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres: config is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	poolCfg.MaxConns = defaultMaxConns
	poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	pingTimeout := defaultPingTimeout
	if cfg.PingTimeout > 0 {
		pingTimeout = cfg.PingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	logger.FromContext(ctx).With(
		"store_driver", "postgres",
		"host", cfg.Host,
		"database", cfg.DBName,
	).Info("postgres store initialized")
	return &Store{pool: pool}, nil
}

// Pool exposes the internal pool for driver-local usage.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// HealthCheck verifies the connection is alive.
func (s *Store) HealthCheck(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, defaultHealthCheckTimeout)
	defer cancel()
	if err := s.pool.Ping(hctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	logger.FromContext(ctx).Debug("postgres store closed")
	return nil
}
