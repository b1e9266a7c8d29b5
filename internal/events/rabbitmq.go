package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "booking.events"
	appID        = "appointment-booking-api"
)

var ErrPublisherClosed = errors.New("publisher closed")

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher sends appointment events to the durable topic exchange
// booking.events. Consumers bind on the event type, e.g.
// "appointment.*", and can filter on the appointment headers without
// decoding the body.
type RabbitMQPublisher struct {
	mu     sync.Mutex
	ch     channel
	conn   io.Closer
	closed bool
	logger *slog.Logger
}

func NewRabbitMQPublisher(url string, logger *slog.Logger) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	p, err := newRabbitMQPublisher(ch, conn, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func newRabbitMQPublisher(ch channel, conn io.Closer, logger *slog.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", ExchangeName, err)
	}
	logger = logger.With("exchange", ExchangeName)
	logger.Info("event publisher connected")
	return &RabbitMQPublisher{ch: ch, conn: conn, logger: logger}, nil
}

// message builds the AMQP message for ev. The message id is stable per
// event type and appointment so consumers can deduplicate redeliveries.
func message(ev Event) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	a := ev.Appointment
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%s:%d", ev.Type, a.ID),
		Type:         ev.Type,
		AppId:        appID,
		Timestamp:    ev.OccurredAt,
		Headers: amqp.Table{
			"appointment_id": a.ID,
			"owner":          a.Owner,
			"date":           a.Date.String(),
			"time":           a.Time.String(),
		},
		Body: body,
	}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, ev Event) error {
	msg, err := message(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	if err := p.ch.PublishWithContext(ctx, ExchangeName, ev.Type, false, false, msg); err != nil {
		return fmt.Errorf("publish %s for appointment %d: %w", ev.Type, ev.Appointment.ID, err)
	}
	p.logger.DebugContext(ctx, "event published", "type", ev.Type, "appointment_id", ev.Appointment.ID)
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.ch.Close(); err != nil {
		p.logger.Warn("close channel", "error", err)
	}
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
