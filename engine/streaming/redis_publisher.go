package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dallosh/analysis/engine/task"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher stores frames in Redis for replay and publishes them on a
// shared channel that every instance relays to its local broadcaster.
type RedisPublisher struct {
	client     redis.UniversalClient
	channel    string
	logPrefix  string
	seqPrefix  string
	maxEntries int64
	ttl        time.Duration
	now        func() time.Time
}

// RedisOptions controls Redis publisher behavior.
type RedisOptions struct {
	Channel    string
	LogPrefix  string
	SeqPrefix  string
	MaxEntries int64
	TTL        time.Duration
}

const (
	DefaultChannel    = "stream:tasks:events"
	defaultLogPrefix  = "stream:tasks:log:"
	defaultSeqPrefix  = "stream:tasks:seq:"
	defaultMaxEntries = 500
	defaultTTL        = 24 * time.Hour
)

// NewRedisPublisher constructs a Redis-backed frame publisher.
func NewRedisPublisher(client redis.UniversalClient, opts *RedisOptions) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("streaming: redis client is required")
	}
	cfg := applyRedisDefaults(opts)
	if cfg.maxEntries <= 0 {
		return nil, fmt.Errorf("streaming: max entries must be > 0 (got %d)", cfg.maxEntries)
	}
	return &RedisPublisher{
		client:     client,
		channel:    cfg.channel,
		logPrefix:  cfg.logPrefix,
		seqPrefix:  cfg.seqPrefix,
		maxEntries: cfg.maxEntries,
		ttl:        cfg.ttl,
		now:        time.Now,
	}, nil
}

// Publish appends the frame to the file backlog and broadcasts it.
func (p *RedisPublisher) Publish(ctx context.Context, ev *task.Event) (Frame, error) {
	if ev == nil || ev.FileID == "" {
		return Frame{}, errors.New("streaming: file id is required")
	}
	id, err := p.nextID(ctx, ev.FileID)
	if err != nil {
		return Frame{}, err
	}
	frame := NewEventFrame(id, ev, p.now())
	payload, err := json.Marshal(frame)
	if err != nil {
		return Frame{}, fmt.Errorf("streaming: marshal frame: %w", err)
	}
	if err := p.persist(ctx, ev.FileID, payload); err != nil {
		return Frame{}, err
	}
	return frame, nil
}

// Replay returns stored frames with id greater than afterID in ascending order.
func (p *RedisPublisher) Replay(ctx context.Context, fileID string, afterID int64, limit int) ([]Frame, error) {
	if limit <= 0 || int64(limit) > p.maxEntries {
		limit = int(p.maxEntries)
	}
	values, err := p.client.LRange(ctx, p.logKey(fileID), 0, p.maxEntries-1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("streaming: fetch backlog: %w", err)
	}
	result := make([]Frame, 0, min(len(values), limit))
	for i := len(values) - 1; i >= 0; i-- {
		var frame Frame
		if err := json.Unmarshal([]byte(values[i]), &frame); err != nil {
			continue
		}
		if frame.ID <= afterID {
			continue
		}
		result = append(result, frame)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Channel returns the pub/sub channel relayed by every instance.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

func (p *RedisPublisher) persist(ctx context.Context, fileID string, payload []byte) error {
	logKey := p.logKey(fileID)
	pipe := p.client.TxPipeline()
	pipe.LPush(ctx, logKey, payload)
	pipe.LTrim(ctx, logKey, 0, p.maxEntries-1)
	if p.ttl > 0 {
		pipe.Expire(ctx, logKey, p.ttl)
		pipe.Expire(ctx, p.seqKey(fileID), p.ttl)
	}
	pipe.Publish(ctx, p.channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("streaming: persist frame: %w", err)
	}
	return nil
}

func (p *RedisPublisher) nextID(ctx context.Context, fileID string) (int64, error) {
	id, err := p.client.Incr(ctx, p.seqKey(fileID)).Result()
	if err != nil {
		return 0, fmt.Errorf("streaming: increment seq: %w", err)
	}
	return id, nil
}

func (p *RedisPublisher) logKey(fileID string) string {
	return p.logPrefix + fileID
}

func (p *RedisPublisher) seqKey(fileID string) string {
	return p.seqPrefix + fileID
}

type redisConfig struct {
	channel    string
	logPrefix  string
	seqPrefix  string
	maxEntries int64
	ttl        time.Duration
}

func applyRedisDefaults(opts *RedisOptions) redisConfig {
	if opts == nil {
		return redisConfig{
			channel:    DefaultChannel,
			logPrefix:  defaultLogPrefix,
			seqPrefix:  defaultSeqPrefix,
			maxEntries: defaultMaxEntries,
			ttl:        defaultTTL,
		}
	}
	cfg := redisConfig{
		channel:    chooseOrDefault(opts.Channel, DefaultChannel),
		logPrefix:  chooseOrDefault(opts.LogPrefix, defaultLogPrefix),
		seqPrefix:  chooseOrDefault(opts.SeqPrefix, defaultSeqPrefix),
		maxEntries: opts.MaxEntries,
		ttl:        opts.TTL,
	}
	if cfg.maxEntries <= 0 {
		cfg.maxEntries = defaultMaxEntries
	}
	if cfg.ttl == 0 {
		cfg.ttl = defaultTTL
	}
	return cfg
}

func chooseOrDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
