// Package events publishes appointment changes to a message broker.
package events

import (
	"context"
	"log/slog"
	"time"

	"appointment-booking-api/internal/model"
)

const (
	Created   = "appointment.created"
	Cancelled = "appointment.cancelled"
)

// Event is one appointment change. Its JSON form is the message body and
// Type is the routing key.
type Event struct {
	Type        string            `json:"type"`
	Appointment model.Appointment `json:"appointment"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	a := ev.Appointment
	p.logger.InfoContext(ctx, "event",
		"type", ev.Type,
		"appointment_id", a.ID,
		"owner", a.Owner,
		"date", a.Date.String(),
		"time", a.Time.String(),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
