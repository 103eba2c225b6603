package router

import (
	"context"
	"sync"
	"time"

	"github.com/dallosh/analysis/engine/infra/monitoring"
	"github.com/dallosh/analysis/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	streamTracerName     = "dallosh.stream"
	streamConnectedEvent = "stream.connected"
	streamReplayEvent    = "stream.replay"
)

const (
	StreamReasonInitializing    = "initializing"
	StreamReasonContextCanceled = "context_canceled"
	StreamReasonSinkClosed      = "sink_closed"
	StreamReasonWriteFailed     = "write_failed"
	StreamReasonReplayFailed    = "replay_failed"
)

// StreamCloseInfo describes why a stream ended.
type StreamCloseInfo struct {
	Reason      string
	Error       error
	LastEventID int64
	Frames      int64
}

// StreamTelemetry traces and logs a single SSE connection.
type StreamTelemetry struct {
	ctx       context.Context
	fileID    string
	wildcard  bool
	metrics   *monitoring.StreamingMetrics
	start     time.Time
	span      trace.Span
	closeOnce sync.Once
}

// NewStreamTelemetry opens a server span for the stream of fileID.
func NewStreamTelemetry(
	ctx context.Context,
	fileID string,
	wildcard bool,
	metrics *monitoring.StreamingMetrics,
) *StreamTelemetry {
	spanCtx, span := otel.Tracer(streamTracerName).Start(
		ctx,
		"stream.tasks",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("stream.file_id", fileID),
			attribute.Bool("stream.wildcard", wildcard),
		),
	)
	return &StreamTelemetry{
		ctx:      spanCtx,
		fileID:   fileID,
		wildcard: wildcard,
		metrics:  metrics,
		start:    time.Now(),
		span:     span,
	}
}

func (t *StreamTelemetry) Context() context.Context {
	return t.ctx
}

func (t *StreamTelemetry) Connected(lastEventID int64) {
	logger.FromContext(t.ctx).Info(
		"Task stream connected",
		"file_id", t.fileID,
		"wildcard", t.wildcard,
		"last_event_id", lastEventID,
	)
	t.span.AddEvent(streamConnectedEvent, trace.WithAttributes(attribute.Int64("stream.last_event_id", lastEventID)))
}

func (t *StreamTelemetry) Replayed(count int) {
	t.span.AddEvent(streamReplayEvent, trace.WithAttributes(attribute.Int("stream.replayed", count)))
}

// Close records the end of the stream once.
func (t *StreamTelemetry) Close(info *StreamCloseInfo) {
	t.closeOnce.Do(func() {
		if info == nil {
			info = &StreamCloseInfo{Reason: "unknown"}
		}
		duration := time.Since(t.start)
		t.metrics.StreamClosed(context.WithoutCancel(t.ctx), t.wildcard, duration)
		fields := []any{
			"file_id", t.fileID,
			"wildcard", t.wildcard,
			"duration", duration,
			"frames", info.Frames,
			"last_event_id", info.LastEventID,
			"reason", info.Reason,
		}
		log := logger.FromContext(t.ctx)
		t.span.SetAttributes(
			attribute.String("stream.close_reason", info.Reason),
			attribute.Int64("stream.frames", info.Frames),
		)
		if info.Error != nil {
			log.Warn("Task stream terminated", append(fields, "error", info.Error)...)
			t.span.RecordError(info.Error)
			t.span.SetStatus(codes.Error, info.Reason)
		} else {
			log.Info("Task stream disconnected", fields...)
			t.span.SetStatus(codes.Ok, "")
		}
		t.span.End()
	})
}
