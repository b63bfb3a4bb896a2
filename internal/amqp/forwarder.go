package amqp

import (
	"context"
	"log/slog"
	"sync"

	"treasury/internal/metrics"
	"treasury/internal/storage"
)

// Sender is the publishing half of Client.
type Sender interface {
	PublishBudgetChange(ctx context.Context, msg *BudgetChangeMessage) error
}

// Forwarder relays store change events to the broker. Store subscribers run
// on the writer's goroutine, so events are queued and published by Run.
type Forwarder struct {
	sender  Sender
	metrics *metrics.Metrics
	queue   chan *BudgetChangeMessage

	mu     sync.Mutex
	closed bool
}

func NewForwarder(sender Sender, m *metrics.Metrics, buffer int) *Forwarder {
	if buffer <= 0 {
		buffer = 256
	}
	return &Forwarder{
		sender:  sender,
		metrics: m,
		queue:   make(chan *BudgetChangeMessage, buffer),
	}
}

// Attach subscribes the forwarder to collection on store.
func (f *Forwarder) Attach(store storage.Store, collection string) (unsubscribe func()) {
	return store.Subscribe(collection, f.Enqueue)
}

// Enqueue queues ev without blocking. Events arriving while the queue is
// full are dropped; the worker's periodic resync repairs the ledger.
func (f *Forwarder) Enqueue(ev storage.ChangeEvent) {
	msg := MessageFromEvent(ev)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- msg:
	default:
		f.metrics.Published(string(msg.Kind), "dropped")
		slog.Warn("Change event queue full, dropping event", "id", msg.ID, "kind", msg.Kind)
	}
}

// Run publishes queued messages until ctx ends, then drains what is left
// with a fresh context.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			f.closed = true
			f.mu.Unlock()
			f.drain()
			return
		case msg := <-f.queue:
			f.publish(ctx, msg)
		}
	}
}

func (f *Forwarder) drain() {
	for {
		select {
		case msg := <-f.queue:
			f.publish(context.Background(), msg)
		default:
			return
		}
	}
}

func (f *Forwarder) publish(ctx context.Context, msg *BudgetChangeMessage) {
	err := f.sender.PublishBudgetChange(ctx, msg)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		slog.ErrorContext(ctx, "Failed to publish budget change", "error", err, "id", msg.ID, "kind", msg.Kind)
	}
	f.metrics.Published(string(msg.Kind), outcome)
}
