package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"appointment-booking-api/internal/model"
	"appointment-booking-api/internal/scheduling"
)

var _ scheduling.Notifier = (*Dispatcher)(nil)

const (
	queueSize      = 256
	publishTimeout = 5 * time.Second
)

// Dispatcher turns scheduling notifications into published events on a
// background goroutine. When the queue is full events are dropped and
// logged; booking never waits on the broker.
type Dispatcher struct {
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

func NewDispatcher(pub Publisher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		pub:    pub,
		logger: logger.With("component", "events"),
		now:    time.Now,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) AppointmentCreated(a model.Appointment) { d.enqueue(Created, a) }

func (d *Dispatcher) AppointmentCancelled(a model.Appointment) { d.enqueue(Cancelled, a) }

func (d *Dispatcher) enqueue(kind string, a model.Appointment) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- Event{Type: kind, Appointment: a, OccurredAt: d.now().UTC()}:
	default:
		d.logger.Warn("event queue full, dropping event", "type", kind, "appointment_id", a.ID)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := d.pub.Publish(ctx, ev); err != nil {
			d.logger.Warn("publish event", "type", ev.Type, "appointment_id", ev.Appointment.ID, "error", err)
		}
		cancel()
	}
}

// Close drains queued events, waiting at most until ctx is done, then
// closes the publisher.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		d.logger.Warn("event queue not drained", "error", ctx.Err())
	}
	return d.pub.Close()
}
