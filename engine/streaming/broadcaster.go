package streaming

import (
	"context"
	"sync"

	"github.com/dallosh/analysis/engine/infra/monitoring"
	"github.com/dallosh/analysis/pkg/logger"
)

// Wildcard registers a sink for events of every file.
const Wildcard = "*"

// Broadcaster keeps the file_id to sink registry and fans frames out to it.
// Delivery happens outside the lock on a snapshot of the registry.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[string]map[Sink]struct{}
	metrics *monitoring.StreamingMetrics
}

func NewBroadcaster(metrics *monitoring.StreamingMetrics) *Broadcaster {
	return &Broadcaster{
		subs:    make(map[string]map[Sink]struct{}),
		metrics: metrics,
	}
}

func (b *Broadcaster) Subscribe(ctx context.Context, fileID string, sink Sink) {
	b.mu.Lock()
	set, ok := b.subs[fileID]
	if !ok {
		set = make(map[Sink]struct{})
		b.subs[fileID] = set
	}
	_, existed := set[sink]
	set[sink] = struct{}{}
	b.mu.Unlock()
	if !existed {
		b.metrics.SubscriberAdded(ctx, fileID == Wildcard)
	}
}

// Unsubscribe removes sink without closing it. It reports whether the sink
// was registered.
func (b *Broadcaster) Unsubscribe(ctx context.Context, fileID string, sink Sink) bool {
	if !b.remove(fileID, sink) {
		return false
	}
	b.metrics.SubscriberRemoved(ctx, fileID == Wildcard)
	return true
}

func (b *Broadcaster) remove(fileID string, sink Sink) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[fileID]
	if !ok {
		return false
	}
	if _, ok := set[sink]; !ok {
		return false
	}
	delete(set, sink)
	if len(set) == 0 {
		delete(b.subs, fileID)
	}
	return true
}

type target struct {
	key  string
	sink Sink
}

// Deliver sends f to every sink of f.FileID and every wildcard sink. A sink
// that fails is removed and closed; the others still receive the frame.
// It returns the number of successful deliveries.
func (b *Broadcaster) Deliver(ctx context.Context, f Frame) int {
	targets := b.snapshot(f.FileID)
	delivered := 0
	for _, tg := range targets {
		if err := tg.sink.Send(f); err != nil {
			logger.FromContext(ctx).Warn("Dropping stream subscriber",
				"file_id", tg.key, "frame_id", f.ID, "error", err)
			if b.Unsubscribe(ctx, tg.key, tg.sink) {
				b.metrics.SinkDropped(ctx)
			}
			tg.sink.Close()
			continue
		}
		delivered++
		b.metrics.FrameDelivered(ctx)
	}
	return delivered
}

func (b *Broadcaster) snapshot(fileID string) []target {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]target, 0, len(b.subs[fileID])+len(b.subs[Wildcard]))
	for s := range b.subs[fileID] {
		out = append(out, target{key: fileID, sink: s})
	}
	if fileID != Wildcard {
		for s := range b.subs[Wildcard] {
			out = append(out, target{key: Wildcard, sink: s})
		}
	}
	return out
}

// Count returns the number of sinks registered under fileID.
func (b *Broadcaster) Count(fileID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[fileID])
}

// Close unregisters and closes every sink.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]map[Sink]struct{})
	b.mu.Unlock()
	for _, set := range subs {
		for s := range set {
			s.Close()
		}
	}
}
