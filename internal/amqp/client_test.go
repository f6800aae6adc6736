package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

type fakeChannel struct {
	mu         sync.Mutex
	published  []amqp091.Publishing
	keys       []string
	publishErr error
	block      chan struct{} // when set, publishing waits for it to close
	deliveries chan amqp091.Delivery
	closed     bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp091.Table) (<-chan amqp091.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) messages() []amqp091.Publishing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]amqp091.Publishing(nil), f.published...)
}

type fakeConn struct{ closed atomic.Bool }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

type fakeAck struct {
	acked, nacked, requeued int
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked++; return nil }
func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}
func (a *fakeAck) Reject(uint64, bool) error { return nil }

func newTestClient(ch *fakeChannel) *Client {
	c := newClient("", "ledger", "ledger_changes", nil)
	c.channel = ch
	return c
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"closed sentinel", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"EOF error", errors.New("unexpected EOF"), true},
		{"broken pipe error", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"other error", errors.New("some other error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := newTestClient(&fakeChannel{})

	t.Run("initial state is closed", func(t *testing.T) {
		if client.isCircuitOpen() {
			t.Error("Circuit breaker should be closed initially")
		}
	})

	t.Run("record success resets state", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 3)
		atomic.StoreInt32(&client.state, StateOpen)

		client.recordSuccess()

		if client.isCircuitOpen() {
			t.Error("Circuit breaker should be closed after success")
		}
		if atomic.LoadInt64(&client.failureCount) != 0 {
			t.Error("Failure count should be reset to 0 after success")
		}
	})

	t.Run("multiple failures open circuit", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 0)
		atomic.StoreInt32(&client.state, StateClosed)

		for i := 0; i < maxFailures; i++ {
			client.recordFailure()
		}

		if !client.isCircuitOpen() {
			t.Error("Circuit breaker should be open after max failures")
		}
	})

	t.Run("circuit transitions to half-open after timeout", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)

		if client.isCircuitOpen() {
			t.Error("Circuit should transition to half-open after timeout")
		}
		if atomic.LoadInt32(&client.state) != StateHalfOpen {
			t.Error("State should be StateHalfOpen after timeout")
		}
	})

	t.Run("failed trial reopens", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 0)
		atomic.StoreInt32(&client.state, StateHalfOpen)

		client.recordFailure()

		if atomic.LoadInt32(&client.state) != StateOpen {
			t.Error("State should be StateOpen after a failed half-open trial")
		}
	})
}

func TestClient_PublishChange(t *testing.T) {
	ch := &fakeChannel{}
	client := newTestClient(ch)
	ts := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	msg := &ChangeMessage{Op: ledger.OpAdd, ID: 7, Version: 3, TransactionCount: 2, Timestamp: ts}
	if err := client.PublishChange(context.Background(), msg); err != nil {
		t.Fatalf("PublishChange() error = %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(ch.published))
	}
	p := ch.published[0]
	if p.ContentType != "application/json" || p.DeliveryMode != amqp091.Persistent {
		t.Errorf("unexpected publishing properties %+v", p)
	}
	if ch.keys[0] != "ledger_changes" {
		t.Errorf("routing key = %q, want queue name", ch.keys[0])
	}
	want := `{"op":"add","id":7,"version":3,"transaction_count":2,"timestamp":"2024-01-05T10:00:00Z"}`
	if string(p.Body) != want {
		t.Errorf("body = %s, want %s", p.Body, want)
	}
}

func TestClient_PublishChange_Failures(t *testing.T) {
	t.Run("publish fails when circuit is open", func(t *testing.T) {
		client := newTestClient(&fakeChannel{})
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishChange(context.Background(), &ChangeMessage{Op: ledger.OpAdd})
		if !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("error = %v, want ErrCircuitOpen", err)
		}
	})

	t.Run("publish respects context cancellation", func(t *testing.T) {
		client := newTestClient(&fakeChannel{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.PublishChange(ctx, &ChangeMessage{Op: ledger.OpAdd}); err != context.Canceled {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("connection error drops the channel", func(t *testing.T) {
		ch := &fakeChannel{publishErr: amqp091.ErrClosed}
		client := newTestClient(ch)

		if err := client.PublishChange(context.Background(), &ChangeMessage{Op: ledger.OpAdd}); err == nil {
			t.Fatal("expected error")
		}
		if !ch.closed || client.channel != nil {
			t.Error("channel should be closed and cleared after a connection error")
		}
		if atomic.LoadInt64(&client.failureCount) != 1 {
			t.Error("failure should be recorded")
		}
		// Without a URL there is nothing to redial.
		if err := client.PublishChange(context.Background(), &ChangeMessage{Op: ledger.OpAdd}); err == nil {
			t.Error("expected error while disconnected")
		}
	})
}

func TestClient_Subscriber(t *testing.T) {
	ch := &fakeChannel{}
	client := newTestClient(ch)
	store := ledger.New(&memSlot{})
	store.Subscribe(client.Subscriber(context.Background()))

	ctx := context.Background()
	store.Load(ctx)
	tx, err := store.Add(ctx, ledger.Candidate{Name: "Salary", Amount: "50000", Type: "income", Category: "salary", Date: "2024-01-05"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	store.Delete(ctx, tx.ID)

	// Close flushes the queue.
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	published := ch.messages()
	if len(published) != 2 {
		t.Fatalf("published %d messages, want 2 (load is not announced)", len(published))
	}
	last, err := ChangeMessageFromJSON(published[1].Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last.Op != ledger.OpDelete || last.ID != tx.ID || last.TransactionCount != 0 {
		t.Errorf("unexpected message %+v", last)
	}
}

func TestClient_SubscriberSwallowsErrors(t *testing.T) {
	client := newTestClient(&fakeChannel{publishErr: errors.New("nope")})
	defer client.Close()
	store := ledger.New(&memSlot{})
	store.Subscribe(client.Subscriber(context.Background()))

	if _, err := store.Add(context.Background(), ledger.Candidate{Name: "Rent", Amount: "100", Type: "expense", Category: "bills"}); err != nil {
		t.Fatalf("publish failure leaked into the store: %v", err)
	}
	if len(store.List()) != 1 {
		t.Fatalf("mutation lost")
	}
}

func TestClient_SubscriberDoesNotWaitForBroker(t *testing.T) {
	ch := &fakeChannel{block: make(chan struct{})}
	client := newTestClient(ch)
	store := ledger.New(&memSlot{})
	store.Subscribe(client.Subscriber(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < outboxSize+10; i++ {
			store.Add(context.Background(), ledger.Candidate{Name: "Tea", Amount: "20", Type: "expense", Category: "food"})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("store mutations waited on a stalled broker")
	}
	if got := len(store.List()); got != outboxSize+10 {
		t.Fatalf("expected %d transactions, got %d", outboxSize+10, got)
	}

	close(ch.block)
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := len(ch.messages()); n == 0 || n > outboxSize+1 {
		t.Fatalf("published %d messages, want between 1 and %d", n, outboxSize+1)
	}
}

func TestClient_ConcurrentReconnectDialsOnce(t *testing.T) {
	client := newClient("amqp://broker", "ledger", "ledger_changes", nil)
	stale := &fakeConn{}
	client.conn = stale

	var dials atomic.Int32
	release := make(chan struct{})
	client.dial = func(string, string, string) (io.Closer, channel, error) {
		dials.Add(1)
		<-release
		return &fakeConn{}, &fakeChannel{}, nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.currentChannel()
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("currentChannel: %v", err)
		}
	}
	if n := dials.Load(); n != 1 {
		t.Fatalf("dialed %d times, want 1", n)
	}
	if !stale.closed.Load() {
		t.Fatal("replaced connection was not closed")
	}
}

func TestClient_ReconnectFailure(t *testing.T) {
	client := newClient("amqp://broker", "ledger", "ledger_changes", nil)
	client.dial = func(string, string, string) (io.Closer, channel, error) {
		return nil, nil, errors.New("connection refused")
	}
	if _, err := client.currentChannel(); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestClient_ConsumeChanges(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp091.Delivery, 3)}
	client := newTestClient(ch)
	ack := &fakeAck{}

	ch.deliveries <- amqp091.Delivery{Acknowledger: ack, Body: []byte(`{"op":"add","id":1,"version":1}`)}
	ch.deliveries <- amqp091.Delivery{Acknowledger: ack, Body: []byte(`not json`)}
	ch.deliveries <- amqp091.Delivery{Acknowledger: ack, Body: []byte(`{"op":"delete","id":1,"version":2}`)}
	close(ch.deliveries)

	var ops []string
	err := client.ConsumeChanges(context.Background(), func(m *ChangeMessage) error {
		ops = append(ops, m.Op)
		if m.Op == ledger.OpDelete {
			return errors.New("handler failed")
		}
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("expected channel closed error, got %v", err)
	}
	if strings.Join(ops, ",") != "add,delete" {
		t.Errorf("handled ops = %v", ops)
	}
	if ack.acked != 1 || ack.nacked != 2 || ack.requeued != 1 {
		t.Errorf("acks = %+v", ack)
	}
}

func TestNewChangeMessage(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	snap := ledger.Snapshot{
		Version:      4,
		Change:       ledger.Change{Op: ledger.OpAdd, ID: 9},
		Transactions: make([]core.Transaction, 3),
	}

	msg := NewChangeMessage(snap, at)
	if msg.Op != ledger.OpAdd || msg.ID != 9 || msg.Version != 4 || msg.TransactionCount != 3 {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Timestamp.Location() != time.UTC || !msg.Timestamp.Equal(at) {
		t.Errorf("timestamp = %v, want %v in UTC", msg.Timestamp, at)
	}
}

func TestChangeMessage_InvalidJSON(t *testing.T) {
	if _, err := ChangeMessageFromJSON([]byte(`{"id": "not_a_number"}`)); err == nil {
		t.Error("ChangeMessageFromJSON() should fail with invalid JSON")
	}
}

type memSlot struct{ data []byte }

func (m *memSlot) Read(context.Context) ([]byte, error) { return m.data, nil }
func (m *memSlot) Write(_ context.Context, b []byte) error {
	m.data = append([]byte(nil), b...)
	return nil
}
