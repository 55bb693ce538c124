// Package notify delivers exchange notifications.
//
// Delivery is fire-and-forget: a failed or dropped notification never
// affects the outcome of the command that produced it.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mmynk/groupexchange/internal/models"
)

// Sink delivers one notification.
type Sink interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// LogSink writes notifications to the structured log. It is the default
// sink until a delivery channel (email, push) is configured.
type LogSink struct {
	Logger *slog.Logger
}

// Deliver logs n.
func (s LogSink) Deliver(ctx context.Context, n models.Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Notification",
		"kind", n.Kind,
		"exchange_id", n.ExchangeID,
		"tenant_id", n.TenantID,
		"recipients", n.Recipients,
		"message", n.Message,
	)
	return nil
}

// Discard drops every notification.
type Discard struct{}

// Notify implements the engine's notifier contract.
func (Discard) Notify(context.Context, models.Notification) {}

// Dispatcher queues notifications and delivers them on a background worker.
type Dispatcher struct {
	sink    Sink
	queue   chan models.Notification
	onSent  func(kind string)
	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
}

// NewDispatcher starts a worker delivering to sink. Notifications beyond
// buffer pending ones are dropped with a warning. onSent may be nil.
func NewDispatcher(sink Sink, buffer int, onSent func(kind string)) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{
		sink:   sink,
		queue:  make(chan models.Notification, buffer),
		onSent: onSent,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Notify enqueues n without blocking.
func (d *Dispatcher) Notify(_ context.Context, n models.Notification) {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		slog.Warn("Notification dropped: dispatcher closed", "kind", n.Kind, "exchange_id", n.ExchangeID)
		return
	}

	select {
	case d.queue <- n:
	default:
		slog.Warn("Notification dropped: queue full", "kind", n.Kind, "exchange_id", n.ExchangeID)
	}
}

// Close stops accepting notifications and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.closeMu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		if err := d.sink.Deliver(context.Background(), n); err != nil {
			slog.Warn("Notification delivery failed", "kind", n.Kind, "exchange_id", n.ExchangeID, "error", err)
			continue
		}
		if d.onSent != nil {
			d.onSent(n.Kind)
		}
	}
}
