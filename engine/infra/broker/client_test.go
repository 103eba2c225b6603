package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	published  []published
	exchanges  []string
	bindings   []string
	queues     []string
	prefetch   int
	deliveries chan amqp.Delivery
	closed     bool
	publishErr error
	declareErr error
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.declareErr != nil {
		return f.declareErr
	}
	if kind != ExchangeKind || !durable {
		return errors.New("exchange must be a durable topic")
	}
	f.exchanges = append(f.exchanges, name)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues = append(f.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(_, key, _ string, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings = append(f.bindings, key)
	return nil
}

func (f *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	f.prefetch = prefetchCount
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) ConsumeWithContext(
	_ context.Context,
	_, _ string,
	_, _, _, _ bool,
	_ amqp.Table,
) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return amqp.ErrClosed
	}
	f.closed = true
	return nil
}

type fakeConnection struct {
	mu       sync.Mutex
	ch       *fakeChannel
	closed   bool
	notifies []chan *amqp.Error
}

func (f *fakeConnection) Channel() (Channel, error) {
	return f.ch, nil
}

func (f *fakeConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifies = append(f.notifies, receiver)
	return receiver
}

func (f *fakeConnection) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConnection) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return amqp.ErrClosed
	}
	f.closed = true
	for _, n := range f.notifies {
		close(n)
	}
	f.notifies = nil
	return nil
}

// drop simulates the broker closing the connection.
func (f *fakeConnection) drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for _, n := range f.notifies {
		n <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "shutdown"}
		close(n)
	}
	f.notifies = nil
}

type dialRecorder struct {
	mu    sync.Mutex
	calls int
	fail  int
	conn  *fakeConnection
}

func (d *dialRecorder) dial(_ string, _ amqp.Config) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.calls <= d.fail {
		return nil, errors.New("connection refused")
	}
	return d.conn, nil
}

func newTestClient(d *dialRecorder) *Client {
	return NewClient(Config{
		URL:            "amqp://test",
		Exchange:       "tasks",
		ConnectRetries: 3,
		ConnectBackoff: time.Millisecond,
	}, WithDialer(d.dial))
}

func newDialer() *dialRecorder {
	return &dialRecorder{conn: &fakeConnection{ch: &fakeChannel{}}}
}

func TestClient_Connect(t *testing.T) {
	t.Run("Should declare the durable topic exchange", func(t *testing.T) {
		d := newDialer()
		c := newTestClient(d)
		require.NoError(t, c.Connect(t.Context()))
		assert.True(t, c.Ready())
		assert.Equal(t, []string{"tasks"}, d.conn.ch.exchanges)
	})

	t.Run("Should be a no-op when already connected", func(t *testing.T) {
		d := newDialer()
		c := newTestClient(d)
		require.NoError(t, c.Connect(t.Context()))
		require.NoError(t, c.Connect(t.Context()))
		assert.Equal(t, 1, d.calls)
	})

	t.Run("Should retry failed dials with backoff", func(t *testing.T) {
		d := newDialer()
		d.fail = 2
		c := newTestClient(d)
		require.NoError(t, c.Connect(t.Context()))
		assert.Equal(t, 3, d.calls)
	})

	t.Run("Should report unavailable after exhausting retries", func(t *testing.T) {
		d := newDialer()
		d.fail = 100
		c := newTestClient(d)
		err := c.Connect(t.Context())
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, 4, d.calls)
		assert.False(t, c.Ready())
	})

	t.Run("Should redial after the broker drops the connection", func(t *testing.T) {
		d := newDialer()
		c := newTestClient(d)
		require.NoError(t, c.Connect(t.Context()))

		d.conn.drop()
		require.Eventually(t, func() bool { return !c.Ready() }, time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, c.Publish(t.Context(), "proceed_task", map[string]string{}), ErrUnavailable)

		d.conn = &fakeConnection{ch: &fakeChannel{}}
		require.NoError(t, c.Connect(t.Context()))
		assert.True(t, c.Ready())
		assert.Equal(t, 2, d.calls)
	})
}

func TestClient_Disconnect(t *testing.T) {
	t.Run("Should not fail when never connected", func(t *testing.T) {
		c := newTestClient(newDialer())
		assert.NoError(t, c.Disconnect(t.Context()))
		assert.NoError(t, c.Disconnect(t.Context()))
	})

	t.Run("Should close channel then connection once", func(t *testing.T) {
		d := newDialer()
		c := newTestClient(d)
		require.NoError(t, c.Connect(t.Context()))

		require.NoError(t, c.Disconnect(t.Context()))
		assert.True(t, d.conn.ch.closed)
		assert.True(t, d.conn.IsClosed())
		assert.False(t, c.Ready())
		assert.NoError(t, c.Disconnect(t.Context()))
	})
}

func TestClient_Publish(t *testing.T) {
	t.Run("Should fail with unavailable before connect", func(t *testing.T) {
		d := newDialer()
		c := newTestClient(d)
		err := c.Publish(t.Context(), "proceed_task", map[string]string{"file_id": "f1"})
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Zero(t, d.calls, "publish must not dial on demand")
	})

	t.Run("Should publish persistent JSON on the exchange", func(t *testing.T) {
		d := newDialer()
		c := newTestClient(d)
		require.NoError(t, c.Connect(t.Context()))

		payload := map[string]string{"file_id": "f1", "file_path": "/data/f1.csv"}
		require.NoError(t, c.Publish(t.Context(), "proceed_task", payload))

		require.Len(t, d.conn.ch.published, 1)
		p := d.conn.ch.published[0]
		assert.Equal(t, "tasks", p.exchange)
		assert.Equal(t, "proceed_task", p.key)
		assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
		assert.Equal(t, ContentTypeJSON, p.msg.ContentType)
		assert.NotEmpty(t, p.msg.MessageId)
		var got map[string]string
		require.NoError(t, json.Unmarshal(p.msg.Body, &got))
		assert.Equal(t, payload, got)
	})

	t.Run("Should surface channel errors as unavailable", func(t *testing.T) {
		d := newDialer()
		c := newTestClient(d)
		require.NoError(t, c.Connect(t.Context()))
		d.conn.ch.publishErr = errors.New("channel closed")

		err := c.Publish(t.Context(), "retry_step", map[string]string{})
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Contains(t, err.Error(), "retry_step")
	})

	t.Run("Should serialize concurrent publishers", func(t *testing.T) {
		d := newDialer()
		c := newTestClient(d)
		require.NoError(t, c.Connect(t.Context()))

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, c.Publish(t.Context(), "handle_process", map[string]string{"event": "pause"}))
			}()
		}
		wg.Wait()
		assert.Len(t, d.conn.ch.published, 50)
	})
}

func TestClient_BindConsumer(t *testing.T) {
	t.Run("Should bind routing keys and hand deliveries to the handler in order", func(t *testing.T) {
		d := newDialer()
		d.conn.ch.deliveries = make(chan amqp.Delivery, 3)
		c := newTestClient(d)
		require.NoError(t, c.Connect(t.Context()))

		for _, key := range []string{"in_queue", "reading_dataset", "done"} {
			d.conn.ch.deliveries <- amqp.Delivery{RoutingKey: key}
		}
		close(d.conn.ch.deliveries)

		var got []string
		err := c.BindConsumer(t.Context(), ConsumeOptions{
			Queue:    "tasks.events.backend",
			Bindings: []string{"in_queue", "done"},
			Prefetch: 8,
		}, func(_ context.Context, dl amqp.Delivery) {
			got = append(got, dl.RoutingKey)
		})

		assert.ErrorIs(t, err, ErrConnectionLost)
		assert.Equal(t, []string{"in_queue", "reading_dataset", "done"}, got)
		assert.Equal(t, []string{"in_queue", "done"}, d.conn.ch.bindings)
		assert.Equal(t, []string{"tasks.events.backend"}, d.conn.ch.queues)
		assert.Equal(t, 8, d.conn.ch.prefetch)
	})

	t.Run("Should stop cleanly when the context ends", func(t *testing.T) {
		d := newDialer()
		d.conn.ch.deliveries = make(chan amqp.Delivery)
		c := newTestClient(d)
		require.NoError(t, c.Connect(t.Context()))

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		err := c.BindConsumer(ctx, ConsumeOptions{Queue: "q"}, func(context.Context, amqp.Delivery) {})
		assert.NoError(t, err)
	})

	t.Run("Should refuse to consume while disconnected", func(t *testing.T) {
		c := newTestClient(newDialer())
		err := c.BindConsumer(t.Context(), ConsumeOptions{Queue: "q"}, func(context.Context, amqp.Delivery) {})
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}
