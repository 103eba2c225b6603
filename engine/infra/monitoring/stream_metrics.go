package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var streamDurationBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1800}

// StreamingMetrics exposes instruments for live subscriber telemetry.
// A nil *StreamingMetrics is valid and records nothing.
type StreamingMetrics struct {
	subscribers metric.Int64UpDownCounter
	delivered   metric.Int64Counter
	dropped     metric.Int64Counter
	duration    metric.Float64Histogram
}

func NewStreamingMetrics(meter metric.Meter) (*StreamingMetrics, error) {
	if meter == nil {
		return nil, nil
	}
	subscribers, err := meter.Int64UpDownCounter(
		"dallosh_stream_subscribers",
		metric.WithDescription("Registered live subscribers by scope"),
	)
	if err != nil {
		return nil, fmt.Errorf("create subscribers counter: %w", err)
	}
	delivered, err := meter.Int64Counter(
		"dallosh_stream_frames_delivered_total",
		metric.WithDescription("Frames handed to subscriber sinks"),
	)
	if err != nil {
		return nil, fmt.Errorf("create delivered counter: %w", err)
	}
	dropped, err := meter.Int64Counter(
		"dallosh_stream_sinks_dropped_total",
		metric.WithDescription("Sinks removed after a failed delivery"),
	)
	if err != nil {
		return nil, fmt.Errorf("create dropped counter: %w", err)
	}
	duration, err := meter.Float64Histogram(
		"dallosh_stream_connection_duration_seconds",
		metric.WithDescription("Duration of SSE connections in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(streamDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create stream duration histogram: %w", err)
	}
	return &StreamingMetrics{subscribers: subscribers, delivered: delivered, dropped: dropped, duration: duration}, nil
}

func scope(wildcard bool) metric.MeasurementOption {
	s := "file"
	if wildcard {
		s = "all"
	}
	return metric.WithAttributes(attribute.String("scope", s))
}

func (m *StreamingMetrics) SubscriberAdded(ctx context.Context, wildcard bool) {
	if m == nil {
		return
	}
	m.subscribers.Add(ctx, 1, scope(wildcard))
}

func (m *StreamingMetrics) SubscriberRemoved(ctx context.Context, wildcard bool) {
	if m == nil {
		return
	}
	m.subscribers.Add(ctx, -1, scope(wildcard))
}

func (m *StreamingMetrics) FrameDelivered(ctx context.Context) {
	if m == nil {
		return
	}
	m.delivered.Add(ctx, 1)
}

func (m *StreamingMetrics) SinkDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.dropped.Add(ctx, 1)
}

func (m *StreamingMetrics) StreamClosed(ctx context.Context, wildcard bool, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Record(ctx, d.Seconds(), scope(wildcard))
}
