package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"orcamento/internal/events"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Client publishes change events to a fanout exchange and relays events
// published by other instances into a local sink. Events carry the
// publishing client's instance id so its own come back and are dropped.
type Client struct {
	url          string
	exchangeName string
	queuePrefix  string
	instanceID   string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queuePrefix string) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queuePrefix:  queuePrefix,
		instanceID:   uuid.NewString(),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		c.exchangeName, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

// Publish implements events.Publisher.
func (c *Client) Publish(ctx context.Context, e events.ChangeEvent) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s change: %w", e.Table, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Origin = c.instanceID
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	if err := c.connect(); err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		"",             // routing key, ignored by fanout
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Transient,
			MessageId:    e.ID,
			Timestamp:    e.Timestamp,
			Type:         e.Table,
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.reset()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.DebugContext(ctx, "Published change event",
		"table", e.Table,
		"op", e.Op,
		"row_id", e.RowID,
		"exchange", c.exchangeName)
	return nil
}

// Relay consumes the exchange through an exclusive, auto-deleted queue and
// forwards events from other instances to sink until ctx is done,
// reconnecting with exponential backoff when the broker goes away. The
// backoff starts over once a subscription is established.
func (c *Client) Relay(ctx context.Context, sink events.Publisher) error {
	var b backoff
	for {
		err := c.consume(ctx, sink, b.reset)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping change relay", "reason", ctx.Err())
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}

		attempt, wait := b.next()
		slog.WarnContext(ctx, "Change relay disconnected, retrying",
			"error", err,
			"attempt", attempt,
			"backoff", wait)
		c.reset()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// backoff counts consecutive failed subscriptions.
type backoff struct {
	attempt int
}

// next returns the 1-based attempt number and how long to wait before it.
func (b *backoff) next() (int, time.Duration) {
	wait := exponentialBackoff(b.attempt)
	b.attempt++
	return b.attempt, wait
}

func (b *backoff) reset() {
	b.attempt = 0
}

func (c *Client) consume(ctx context.Context, sink events.Publisher, subscribed func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.connect(); err != nil {
		return err
	}

	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	q, err := ch.QueueDeclare(
		c.queuePrefix+"."+uuid.NewString(), // name
		false,                              // durable
		true,                               // delete when unused
		true,                               // exclusive
		false,                              // no-wait
		nil,                                // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Relaying change events", "queue", q.Name, "exchange", c.exchangeName)
	if subscribed != nil {
		subscribed()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed: %w", amqp091.ErrClosed)
			}

			c.deliver(ctx, sink, delivery.MessageId, delivery.Body)
		}
	}
}

// deliver decodes one message and forwards it to sink unless this client
// published it.
func (c *Client) deliver(ctx context.Context, sink events.Publisher, messageID string, body []byte) bool {
	e, err := events.ChangeEventFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode change event",
			"message_id", messageID,
			"error", err)
		return false
	}
	if e.Origin == c.instanceID {
		return false
	}
	if err := sink.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to relay change event",
			"table", e.Table,
			"error", err)
		return false
	}
	return true
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.StoreInt32(&c.state, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << uint(attempt)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
