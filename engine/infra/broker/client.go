package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dallosh/analysis/engine/infra/monitoring"
	"github.com/dallosh/analysis/pkg/logger"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
)

var (
	ErrUnavailable    = errors.New("broker unavailable")
	ErrConnectionLost = errors.New("broker connection lost")
)

const (
	ExchangeKind       = "topic"
	ContentTypeJSON    = "application/json"
	maxConnectBackoff  = 30 * time.Second
	defaultConsumerTag = "dallosh-backend"
)

type Config struct {
	URL            string
	Exchange       string
	Heartbeat      time.Duration
	ConnectRetries uint64
	ConnectBackoff time.Duration
}

// Client owns one broker connection and one channel. Publishing is serialized
// because amqp channels are not safe for concurrent use.
type Client struct {
	cfg     Config
	dial    Dialer
	metrics *monitoring.TaskMetrics
	now     func() time.Time

	lifecycle sync.Mutex
	mu        sync.Mutex
	conn      Connection
	ch        Channel
}

type Option func(*Client)

func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

func WithMetrics(m *monitoring.TaskMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.ConnectBackoff <= 0 {
		cfg.ConnectBackoff = 500 * time.Millisecond
	}
	c := &Client{cfg: cfg, dial: DialAMQP, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the broker and declares the durable topic exchange. It is a
// no-op while a connection is open.
func (c *Client) Connect(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.Ready() {
		return nil
	}
	c.reset()
	log := logger.FromContext(ctx).With("component", "broker", "exchange", c.cfg.Exchange)
	backoff := retry.WithCappedDuration(maxConnectBackoff, retry.NewExponential(c.cfg.ConnectBackoff))
	backoff = retry.WithMaxRetries(c.cfg.ConnectRetries, backoff)
	var conn Connection
	var ch Channel
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		var err error
		conn, ch, err = c.open()
		if err != nil {
			log.Warn("Broker connection attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	c.mu.Lock()
	c.conn, c.ch = conn, ch
	c.mu.Unlock()
	c.metrics.BrokerConnected(ctx, true)
	go c.watch(ctx, conn, closed)
	log.Info("Connected to broker")
	return nil
}

func (c *Client) open() (Connection, Channel, error) {
	conn, err := c.dial(c.cfg.URL, amqp.Config{Heartbeat: c.cfg.Heartbeat, Locale: "en_US"})
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", c.cfg.Exchange, err)
	}
	return conn, ch, nil
}

// watch forgets a connection the broker closed so publishes fail fast until
// the next Connect.
func (c *Client) watch(ctx context.Context, conn Connection, closed <-chan *amqp.Error) {
	amqpErr, ok := <-closed
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn, c.ch = nil, nil
	}
	c.mu.Unlock()
	if !current {
		return
	}
	c.metrics.BrokerConnected(context.WithoutCancel(ctx), false)
	if ok && amqpErr != nil {
		logger.FromContext(ctx).Warn("Broker connection closed", "error", amqpErr)
	}
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn, c.ch = nil, nil
}

// Ready reports whether a connection and channel are open.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyLocked()
}

func (c *Client) readyLocked() bool {
	return c.conn != nil && c.ch != nil && !c.conn.IsClosed()
}

// Disconnect closes the channel and then the connection. It never fails when
// nothing is open.
func (c *Client) Disconnect(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.mu.Lock()
	conn, ch := c.conn, c.ch
	c.conn, c.ch = nil, nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	var errs []error
	if ch != nil {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}
	c.metrics.BrokerConnected(ctx, false)
	logger.FromContext(ctx).Info("Disconnected from broker", "exchange", c.cfg.Exchange)
	return errors.Join(errs...)
}

// Publish sends payload as a persistent JSON message on routingKey. It does
// not retry and does not connect on demand.
func (c *Client) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", routingKey, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.readyLocked() {
		c.metrics.CommandPublished(ctx, routingKey, ErrUnavailable)
		return fmt.Errorf("%w: not connected", ErrUnavailable)
	}
	err = c.ch.PublishWithContext(ctx, c.cfg.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  ContentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    c.now().UTC(),
		Body:         body,
	})
	c.metrics.CommandPublished(ctx, routingKey, err)
	if err != nil {
		return fmt.Errorf("%w: publish %s: %w", ErrUnavailable, routingKey, err)
	}
	logger.FromContext(ctx).Debug("Published command", "routing_key", routingKey, "bytes", len(body))
	return nil
}

type ConsumeOptions struct {
	Queue    string
	Bindings []string
	Prefetch int
	Consumer string
}

// Handler processes one delivery and is responsible for acking it.
type Handler func(ctx context.Context, d amqp.Delivery)

// BindConsumer declares a durable queue bound to the exchange with the given
// routing keys and feeds deliveries to handler one at a time, which keeps the
// broker's per-queue order. It returns nil when ctx ends and
// ErrConnectionLost when the broker stops delivering.
func (c *Client) BindConsumer(ctx context.Context, opts ConsumeOptions, handler Handler) error {
	deliveries, err := c.consume(ctx, opts)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrConnectionLost
			}
			handler(ctx, d)
		}
	}
}

func (c *Client) consume(ctx context.Context, opts ConsumeOptions) (<-chan amqp.Delivery, error) {
	if opts.Consumer == "" {
		opts.Consumer = defaultConsumerTag
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.readyLocked() {
		return nil, fmt.Errorf("%w: not connected", ErrUnavailable)
	}
	if _, err := c.ch.QueueDeclare(opts.Queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", opts.Queue, err)
	}
	for _, key := range opts.Bindings {
		if err := c.ch.QueueBind(opts.Queue, key, c.cfg.Exchange, false, nil); err != nil {
			return nil, fmt.Errorf("bind %s to %s: %w", opts.Queue, key, err)
		}
	}
	if opts.Prefetch > 0 {
		if err := c.ch.Qos(opts.Prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set prefetch: %w", err)
		}
	}
	deliveries, err := c.ch.ConsumeWithContext(ctx, opts.Queue, opts.Consumer, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", opts.Queue, err)
	}
	logger.FromContext(ctx).Info("Consumer bound", "queue", opts.Queue, "bindings", len(opts.Bindings))
	return deliveries, nil
}
