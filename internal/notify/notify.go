// README: Domain event publisher over a RabbitMQ topic exchange; fire-and-forget.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ridepool/internal/types"
)

const (
	EventRideCreated      = "ride.created"
	EventRideCancelled    = "ride.cancelled"
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
	EventPaymentConfirmed = "payment.confirmed"
	EventMatchInvite      = "match.invite"
)

// Event is the wire payload delivered to the notification service. The core
// never blocks on, nor fails because of, event delivery.
type Event struct {
	Type       string         `json:"type"`
	RideID     types.ID       `json:"ride_id,omitempty"`
	BookingID  types.ID       `json:"booking_id,omitempty"`
	UserID     types.ID       `json:"user_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

const exchange = "ridepool.events"

type AMQPPublisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  *slog.Logger
}

func NewAMQPPublisher(url string, log *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, ch: ch, log: log}, nil
}

func (p *AMQPPublisher) Close() {
	_ = p.ch.Close()
	_ = p.conn.Close()
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		p.log.Error("marshal event", "type", e.Type, "err", err)
		return
	}
	err = p.ch.PublishWithContext(ctx, exchange, e.Type, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		// Notification delivery must never abort the primary operation.
		p.log.Error("publish event", "type", e.Type, "err", err)
	}
}

// Noop discards events; used in tests and when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}
