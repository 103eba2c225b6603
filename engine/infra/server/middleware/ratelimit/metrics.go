package ratelimit

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	blockedRequests metric.Int64Counter
	metricsOnce     sync.Once
)

// InitMetrics registers the blocked request counter on meter.
func InitMetrics(meter metric.Meter) error {
	if meter == nil {
		return nil
	}
	var err error
	metricsOnce.Do(func() {
		blockedRequests, err = meter.Int64Counter(
			"http_rate_limit_blocked_total",
			metric.WithDescription("Requests rejected by the rate limiter"),
			metric.WithUnit("1"),
		)
	})
	return err
}

// IncrementBlockedRequests counts one rejected request for route.
func IncrementBlockedRequests(ctx context.Context, route string, keyType string) {
	if blockedRequests == nil {
		return
	}
	blockedRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("key_type", keyType),
		),
	)
}
