package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/singleflight"

	"ledger/internal/ledger"
	"ledger/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures        = 5
	openTimeout        = 30 * time.Second
	publishTimeout     = 5 * time.Second
	maxBackoff         = 30 * time.Second
	maxConnectAttempts = 3
	outboxSize         = 256
)

// ErrCircuitOpen is returned while publishing is suspended after repeated failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// channel is the subset of *amqp091.Channel the client uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *log.Logger
	dial         dialFunc

	mu      sync.Mutex
	conn    io.Closer
	channel channel

	// reconnect collapses concurrent redials into one.
	reconnect singleflight.Group

	outbox    chan *ChangeMessage
	stop      chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
	drained   sync.WaitGroup

	failureCount int64
	state        int32
	lastFailure  time.Time
}

// dialFunc opens a connection and a channel with the exchange and queue
// declared.
type dialFunc func(url, exchangeName, queueName string) (io.Closer, channel, error)

func newClient(url, exchangeName, queueName string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentAMQP),
		dial:         dialBroker,
		outbox:       make(chan *ChangeMessage, outboxSize),
		stop:         make(chan struct{}),
	}
}

// NewClient connects to the broker, retrying with backoff, and declares the
// exchange and queue.
func NewClient(ctx context.Context, url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	c := newClient(url, exchangeName, queueName, logger)

	var err error
	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		if attempt > 0 {
			wait := exponentialBackoff(attempt - 1)
			c.logger.WarnContext(ctx, "Retrying AMQP connection",
				"attempt", attempt+1, "backoff", wait, log.FieldError, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		if err = c.connect(); err == nil {
			return c, nil
		}
	}
	return nil, err
}

// connect dials and installs a fresh connection, closing the one it
// replaces.
func (c *Client) connect() error {
	conn, ch, err := c.dial(c.url, c.exchangeName, c.queueName)
	if err != nil {
		return err
	}

	c.mu.Lock()
	oldConn, oldCh := c.conn, c.channel
	c.conn, c.channel = conn, ch
	c.mu.Unlock()

	if oldCh != nil {
		oldCh.Close()
	}
	if oldConn != nil {
		oldConn.Close()
	}
	return nil
}

func dialBroker(url, exchangeName, queueName string) (io.Closer, channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch, exchangeName, queueName); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return conn, ch, nil
}

func declare(ch *amqp091.Channel, exchangeName, queueName string) error {
	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// Routing key is the queue name on a direct exchange.
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishChange publishes a change message as a persistent JSON delivery.
func (c *Client) PublishChange(ctx context.Context, msg *ChangeMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", msg.Op, ErrCircuitOpen)
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.currentChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    msg.Timestamp,
		Body:         body,
	})
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.dropChannel()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger.DebugContext(ctx, "Published ledger change",
		log.FieldOperation, msg.Op,
		log.FieldTxID, msg.ID,
		log.FieldVersion, msg.Version,
		"exchange", c.exchangeName)
	return nil
}

// Subscriber returns a store subscriber that queues every mutation for
// publishing. The store never waits on the broker: a full queue drops the
// event with a warning. Publish failures are logged, never returned.
func (c *Client) Subscriber(ctx context.Context) ledger.Subscriber {
	c.startOnce.Do(func() {
		c.drained.Add(1)
		go c.drain(ctx)
	})
	return func(snap ledger.Snapshot) {
		if snap.Change.Op == ledger.OpLoad {
			return
		}
		msg := NewChangeMessage(snap, time.Now())
		select {
		case c.outbox <- msg:
		case <-c.stop:
		default:
			c.logger.WarnContext(ctx, "Publish queue full, change event dropped",
				log.FieldOperation, log.OpPublish,
				log.FieldVersion, snap.Version)
		}
	}
}

// drain publishes queued changes until ctx is done or the client closes,
// then flushes whatever is still queued.
func (c *Client) drain(ctx context.Context) {
	defer c.drained.Done()
	pubCtx := context.WithoutCancel(ctx)
	for {
		select {
		case msg := <-c.outbox:
			c.publishQueued(pubCtx, msg)
		case <-ctx.Done():
			c.flush(pubCtx)
			return
		case <-c.stop:
			c.flush(pubCtx)
			return
		}
	}
}

func (c *Client) flush(ctx context.Context) {
	for {
		select {
		case msg := <-c.outbox:
			c.publishQueued(ctx, msg)
		default:
			return
		}
	}
}

func (c *Client) publishQueued(ctx context.Context, msg *ChangeMessage) {
	if err := c.PublishChange(ctx, msg); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish ledger change",
			log.FieldOperation, log.OpPublish,
			log.FieldVersion, msg.Version,
			log.FieldError, err)
	}
}

// ConsumeChanges delivers change messages to handler until ctx is done.
// Undecodable messages are dropped; handler errors requeue the delivery.
func (c *Client) ConsumeChanges(ctx context.Context, handler func(*ChangeMessage) error) error {
	ch, err := c.currentChannel()
	if err != nil {
		return err
	}
	msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Consuming ledger changes", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := ChangeMessageFromJSON(delivery.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "Failed to unmarshal message", log.FieldError, err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(msg); err != nil {
				c.logger.ErrorContext(ctx, "Failed to handle message",
					log.FieldError, err, log.FieldVersion, msg.Version)
				delivery.Nack(false, true)
				continue
			}
			delivery.Ack(false)
		}
	}
}

func (c *Client) currentChannel() (channel, error) {
	if ch := c.loadChannel(); ch != nil {
		return ch, nil
	}
	if c.url == "" {
		return nil, fmt.Errorf("amqp client not connected")
	}
	_, err, _ := c.reconnect.Do("connect", func() (any, error) {
		if c.loadChannel() != nil {
			return nil, nil
		}
		return nil, c.connect()
	})
	if err != nil {
		return nil, err
	}
	if ch := c.loadChannel(); ch != nil {
		return ch, nil
	}
	return nil, fmt.Errorf("amqp client not connected")
}

func (c *Client) loadChannel() channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *Client) dropChannel() {
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
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
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

	// A failed trial call in half-open reopens immediately.
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
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
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Close stops the publisher after flushing queued changes and closes the
// connection.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	c.drained.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
