package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels for command and event counters.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeIgnored = "ignored"
	OutcomeInvalid = "invalid"
)

// TaskMetrics covers the broker-facing side of the task lifecycle.
// A nil *TaskMetrics is valid and records nothing.
type TaskMetrics struct {
	commands  metric.Int64Counter
	events    metric.Int64Counter
	connected metric.Int64UpDownCounter
}

func NewTaskMetrics(meter metric.Meter) (*TaskMetrics, error) {
	if meter == nil {
		return nil, nil
	}
	commands, err := meter.Int64Counter(
		"dallosh_task_commands_published_total",
		metric.WithDescription("Commands published to workers by routing key and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create commands counter: %w", err)
	}
	events, err := meter.Int64Counter(
		"dallosh_task_events_ingested_total",
		metric.WithDescription("Worker events consumed by event name and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events counter: %w", err)
	}
	connected, err := meter.Int64UpDownCounter(
		"dallosh_broker_connected",
		metric.WithDescription("1 while the broker connection is open"),
	)
	if err != nil {
		return nil, fmt.Errorf("create broker connection gauge: %w", err)
	}
	return &TaskMetrics{commands: commands, events: events, connected: connected}, nil
}

func (m *TaskMetrics) CommandPublished(ctx context.Context, routingKey string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("routing_key", routingKey),
		attribute.String("outcome", outcome),
	))
}

func (m *TaskMetrics) EventIngested(ctx context.Context, event string, outcome string) {
	if m == nil {
		return
	}
	m.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("outcome", outcome),
	))
}

func (m *TaskMetrics) BrokerConnected(ctx context.Context, up bool) {
	if m == nil {
		return
	}
	delta := int64(-1)
	if up {
		delta = 1
	}
	m.connected.Add(ctx, delta)
}
