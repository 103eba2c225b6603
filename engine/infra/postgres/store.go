package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dallosh/analysis/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultMaxConns           = 20
	defaultHealthCheckPeriod  = 30 * time.Second
	defaultConnectTimeout     = 5 * time.Second
	defaultPingTimeout        = 3 * time.Second
	defaultHealthCheckTimeout = 1 * time.Second
)

// Store is the PostgreSQL driver backed by pgxpool.Pool.
type Store struct {
	pool    *pgxpool.Pool
	metrics metric.Registration
}

// NewStore opens the pool and pings it. When meter is non-nil pool gauges are
// registered on it.
func NewStore(ctx context.Context, cfg *Config, meter metric.Meter) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres: config is required")
	}
	poolCfg, err := buildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}
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
	store := &Store{pool: pool}
	if meter != nil {
		reg, err := registerPoolMetrics(meter, pool)
		if err != nil {
			logger.FromContext(ctx).Warn("Postgres metrics not initialized; continuing without metrics", "error", err)
		}
		store.metrics = reg
	}
	logger.FromContext(ctx).With(
		"store_driver", "postgres",
		"host", cfg.Host,
		"port", cfg.Port,
		"db_name", cfg.DBName,
		"max_conns", poolCfg.MaxConns,
	).Info("Store initialized")
	return store, nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.metrics != nil {
		if err := s.metrics.Unregister(); err != nil {
			logger.FromContext(ctx).Warn("Failed to unregister postgres metrics", "error", err)
		}
	}
	s.pool.Close()
	logger.FromContext(ctx).Info("Postgres store closed")
	return nil
}

// Pool exposes the pool to repositories in this package and to wiring code.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) HealthCheck(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, defaultHealthCheckTimeout)
	defer cancel()
	if err := s.pool.Ping(hctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

func buildPoolConfig(cfg *Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	maxConns, minConns := deriveConnectionBounds(cfg)
	poolCfg.MaxConns = maxConns
	poolCfg.MinConns = minConns
	poolCfg.HealthCheckPeriod = defaultHealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	return poolCfg, nil
}

// deriveConnectionBounds computes max/min connections respecting int32 limits.
func deriveConnectionBounds(cfg *Config) (int32, int32) {
	maxConns := int32(defaultMaxConns)
	if cfg.MaxOpenConns > 0 {
		maxConns = clampInt32(cfg.MaxOpenConns, math.MaxInt32)
	}
	minConns := int32(0)
	if cfg.MaxIdleConns > 0 {
		minConns = clampInt32(cfg.MaxIdleConns, maxConns)
	}
	return maxConns, minConns
}

func clampInt32(value int, limit int32) int32 {
	if value <= 0 || limit <= 0 {
		return 0
	}
	if value >= int(limit) {
		return limit
	}
	return int32(value)
}
