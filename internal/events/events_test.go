package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment-booking-api/internal/model"
	"appointment-booking-api/internal/scheduling"
)

type recorder struct {
	mu     sync.Mutex
	keys   []string
	events []Event
	err    error
	closed bool
}

func (r *recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.keys = append(r.keys, ev.Type)
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestDispatcherPublishesServiceChanges(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, quiet())
	svc := scheduling.New(scheduling.WithNotifier(d))

	a, err := svc.CreateAppointment(model.Date{Year: 2025, Month: 3, Day: 10}, model.MustTime("10:00"), "alice@example.com")
	require.NoError(t, err)
	require.True(t, svc.CancelAppointment(a.ID))

	require.NoError(t, d.Close(context.Background()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.closed)
	require.Equal(t, []string{Created, Cancelled}, rec.keys)

	ev := rec.events[0]
	assert.Equal(t, Created, ev.Type)
	assert.Equal(t, a, ev.Appointment)
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestDispatcherIgnoresEventsAfterClose(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, quiet())
	require.NoError(t, d.Close(context.Background()))

	d.AppointmentCreated(model.Appointment{ID: 1})
	// second close must not panic on the closed queue
	require.NoError(t, d.Close(context.Background()))
	assert.Empty(t, rec.keys)
}

func TestDispatcherSurvivesPublishErrors(t *testing.T) {
	rec := &recorder{err: errors.New("broker down")}
	d := NewDispatcher(rec, quiet())
	d.AppointmentCreated(model.Appointment{ID: 1})
	d.AppointmentCancelled(model.Appointment{ID: 1})
	require.NoError(t, d.Close(context.Background()))
	assert.Empty(t, rec.keys)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	rec := &recorder{err: errors.New("broker down")}
	p := NewBreakerPublisher(rec, BreakerConfig{FailureThreshold: 2, Timeout: time.Hour}, quiet())
	ctx := context.Background()

	assert.EqualError(t, p.Publish(ctx, Event{Type: Created}), "broker down")
	assert.EqualError(t, p.Publish(ctx, Event{Type: Created}), "broker down")
	assert.Equal(t, gobreaker.StateOpen, p.State())

	rec.err = nil
	assert.ErrorIs(t, p.Publish(ctx, Event{Type: Created}), gobreaker.ErrOpenState)
	assert.Empty(t, rec.keys)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, p.Publish(context.Background(), Event{
		Type:        Created,
		Appointment: model.Appointment{ID: 1, Date: model.Date{Year: 2025, Month: 3, Day: 10}, Time: model.MustTime("09:00"), Owner: "bob@example.com"},
	}))
	out := buf.String()
	assert.Contains(t, out, "type=appointment.created")
	assert.Contains(t, out, "appointment_id=1")
	assert.Contains(t, out, "date=2025-03-10")
	assert.NoError(t, p.Close())
}
