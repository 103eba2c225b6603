package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
)

func registerPoolMetrics(meter metric.Meter, pool *pgxpool.Pool) (metric.Registration, error) {
	open, err := meter.Int64ObservableGauge(
		"dallosh_postgres_connections_open",
		metric.WithDescription("Number of open Postgres connections"),
	)
	if err != nil {
		return nil, fmt.Errorf("create open connections gauge: %w", err)
	}
	inUse, err := meter.Int64ObservableGauge(
		"dallosh_postgres_connections_in_use",
		metric.WithDescription("Number of Postgres connections currently in use"),
	)
	if err != nil {
		return nil, fmt.Errorf("create in-use connections gauge: %w", err)
	}
	idle, err := meter.Int64ObservableGauge(
		"dallosh_postgres_connections_idle",
		metric.WithDescription("Number of idle Postgres connections"),
	)
	if err != nil {
		return nil, fmt.Errorf("create idle connections gauge: %w", err)
	}
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := pool.Stat()
		o.ObserveInt64(open, int64(stats.TotalConns()))
		o.ObserveInt64(inUse, int64(stats.AcquiredConns()))
		o.ObserveInt64(idle, int64(stats.IdleConns()))
		return nil
	}, open, inUse, idle)
}
