package streaming

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dallosh/analysis/engine/task"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMaxFiles = 1024

// backlog is a bounded ring of the latest frames of one file.
type backlog struct {
	next   int64
	frames []Frame
	start  int
	size   int
}

func newBacklog(capacity int64) *backlog {
	return &backlog{frames: make([]Frame, capacity)}
}

func (l *backlog) push(f Frame) {
	capN := len(l.frames)
	idx := (l.start + l.size) % capN
	l.frames[idx] = f
	if l.size < capN {
		l.size++
		return
	}
	l.start = (l.start + 1) % capN
}

func (l *backlog) after(afterID int64, limit int) []Frame {
	out := make([]Frame, 0, min(limit, l.size))
	for i := 0; i < l.size && len(out) < limit; i++ {
		f := l.frames[(l.start+i)%len(l.frames)]
		if f.ID > afterID {
			out = append(out, f)
		}
	}
	return out
}

// MemoryPublisher keeps backlogs in process memory and delivers straight to
// the local broadcaster. It serves single instance deployments; backlogs of
// idle files expire after ttl.
type MemoryPublisher struct {
	mu          sync.Mutex
	broadcaster *Broadcaster
	logs        *expirable.LRU[string, *backlog]
	maxEntries  int64
	now         func() time.Time
}

type MemoryOptions struct {
	MaxEntries int64
	MaxFiles   int
	TTL        time.Duration
}

func NewMemoryPublisher(b *Broadcaster, opts *MemoryOptions) (*MemoryPublisher, error) {
	if b == nil {
		return nil, errors.New("streaming: broadcaster is required")
	}
	cfg := MemoryOptions{MaxEntries: defaultMaxEntries, MaxFiles: defaultMaxFiles, TTL: defaultTTL}
	if opts != nil {
		if opts.MaxEntries > 0 {
			cfg.MaxEntries = opts.MaxEntries
		}
		if opts.MaxFiles > 0 {
			cfg.MaxFiles = opts.MaxFiles
		}
		if opts.TTL > 0 {
			cfg.TTL = opts.TTL
		}
	}
	return &MemoryPublisher{
		broadcaster: b,
		logs:        expirable.NewLRU[string, *backlog](cfg.MaxFiles, nil, cfg.TTL),
		maxEntries:  cfg.MaxEntries,
		now:         time.Now,
	}, nil
}

func (p *MemoryPublisher) Publish(ctx context.Context, ev *task.Event) (Frame, error) {
	if ev == nil || ev.FileID == "" {
		return Frame{}, errors.New("streaming: file id is required")
	}
	// Sequencing and delivery share the lock so frames of a file reach
	// subscribers in id order.
	p.mu.Lock()
	defer p.mu.Unlock()
	log, ok := p.logs.Get(ev.FileID)
	if !ok {
		log = newBacklog(p.maxEntries)
	}
	log.next++
	frame := NewEventFrame(log.next, ev, p.now())
	log.push(frame)
	p.logs.Add(ev.FileID, log)
	p.broadcaster.Deliver(ctx, frame)
	return frame, nil
}

func (p *MemoryPublisher) Replay(_ context.Context, fileID string, afterID int64, limit int) ([]Frame, error) {
	if limit <= 0 || int64(limit) > p.maxEntries {
		limit = int(p.maxEntries)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	log, ok := p.logs.Peek(fileID)
	if !ok {
		return nil, nil
	}
	return log.after(afterID, limit), nil
}
