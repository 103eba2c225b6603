package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/engine/infra/broker"
	"github.com/dallosh/analysis/engine/infra/monitoring"
	"github.com/dallosh/analysis/engine/streaming"
	"github.com/dallosh/analysis/engine/task"
	"github.com/dallosh/analysis/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
)

// Consumer is the part of the broker client the ingestor needs.
type Consumer interface {
	Connect(ctx context.Context) error
	BindConsumer(ctx context.Context, opts broker.ConsumeOptions, handler broker.Handler) error
}

type Config struct {
	Queue       string
	Prefetch    int
	ConsumerTag string
	// RetryBase and RetryMax bound the backoff between consumer restarts.
	RetryBase time.Duration
	RetryMax  time.Duration
}

// Ingestor consumes worker events, applies them to the task store and hands
// them to the live stream. Deliveries are processed one at a time.
type Ingestor struct {
	cfg       Config
	consumer  Consumer
	repo      task.Repository
	publisher streaming.Publisher
	metrics   *monitoring.TaskMetrics
}

type Option func(*Ingestor)

func WithMetrics(m *monitoring.TaskMetrics) Option {
	return func(i *Ingestor) { i.metrics = m }
}

func New(cfg Config, consumer Consumer, repo task.Repository, publisher streaming.Publisher, opts ...Option) *Ingestor {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 30 * time.Second
	}
	i := &Ingestor{cfg: cfg, consumer: consumer, repo: repo, publisher: publisher}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ConsumeOptions binds every worker event key and never a command key.
func (i *Ingestor) ConsumeOptions() broker.ConsumeOptions {
	return broker.ConsumeOptions{
		Queue:    i.cfg.Queue,
		Bindings: task.EventRoutes(),
		Prefetch: i.cfg.Prefetch,
		Consumer: i.cfg.ConsumerTag,
	}
}

// Run keeps one consumer bound until ctx ends, reconnecting with capped
// exponential backoff whenever the broker goes away.
func (i *Ingestor) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).With("component", "event_ingestor", "queue", i.cfg.Queue)
	backoff := retry.WithCappedDuration(i.cfg.RetryMax, retry.NewExponential(i.cfg.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := i.consumer.Connect(ctx); err != nil {
			log.Warn("Broker not reachable, retrying", "error", err)
			return retry.RetryableError(err)
		}
		err := i.consumer.BindConsumer(ctx, i.ConsumeOptions(), i.Handle)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Warn("Event consumer stopped, rebinding", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if ctx.Err() != nil {
		log.Info("Event ingestor stopped")
		return nil
	}
	return err
}

// Handle processes one delivery and settles it. It never panics on bad input.
func (i *Ingestor) Handle(ctx context.Context, d amqp.Delivery) {
	log := logger.FromContext(ctx).With("routing_key", d.RoutingKey, "delivery_tag", d.DeliveryTag)
	ev, err := task.DecodeEvent(d.Body)
	if err != nil {
		log.Warn("Dropping malformed event", "error", err)
		i.metrics.EventIngested(ctx, d.RoutingKey, monitoring.OutcomeInvalid)
		settle(log, d.Nack(false, false))
		return
	}
	log = log.With("file_id", ev.FileID, "event", ev.Event)
	outcome, err := i.apply(logger.ContextWithLogger(ctx, log), ev)
	i.metrics.EventIngested(ctx, ev.Event.String(), outcome)
	if err != nil {
		requeue := !d.Redelivered
		log.Error("Failed to apply event", "error", err, "requeue", requeue)
		settle(log, d.Nack(false, requeue))
		return
	}
	settle(log, d.Ack(false))
}

func (i *Ingestor) apply(ctx context.Context, ev *task.Event) (string, error) {
	log := logger.FromContext(ctx)
	t, err := i.repo.GetByFileID(ctx, ev.FileID)
	if errors.Is(err, task.ErrTaskNotFound) {
		log.Warn("Event for unknown task")
		return monitoring.OutcomeIgnored, nil
	}
	if err != nil {
		return monitoring.OutcomeError, err
	}
	decision := task.Decide(t, ev)
	switch decision.Action {
	case task.ActionIgnore:
		log.Warn("Ignoring late event", "status", t.Status, "stage", t.Stage, "reason", decision.Reason)
		return monitoring.OutcomeIgnored, nil
	case task.ActionApply:
		if _, err := i.repo.Update(ctx, t.UID, decision.Patch, core.SystemUser); err != nil {
			return monitoring.OutcomeError, err
		}
	}
	if _, err := i.publisher.Publish(ctx, ev); err != nil {
		log.Error("Failed to publish live event", "error", err)
	}
	log.Debug("Event ingested", "action", decision.Action)
	return monitoring.OutcomeSuccess, nil
}

func settle(log logger.Logger, err error) {
	if err != nil {
		log.Error("Failed to settle delivery", "error", err)
	}
}
