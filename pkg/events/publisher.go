// Package events publishes booking and payment lifecycle events so downstream
// consumers (notifications, analytics) can react without polling the API.
package events

import (
	"context"

	"pitchside/pkg/kafka"
	"pitchside/pkg/logger"
)

// Event types carried in the event-type header and payload.
const (
	BookingCreated   = "booking.created"
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
	BookingCompleted = "booking.completed"
	PaymentSucceeded = "payment.succeeded"
	PaymentFailed    = "payment.failed"
	PaymentRefunded  = "payment.refunded"
)

// Envelope is the JSON payload of every published event.
type Envelope struct {
	EventType string                 `json:"event_type"`
	BookingID string                 `json:"booking_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Publisher emits lifecycle events. Implementations must not block the
// request path on broker outages longer than the passed context allows.
type Publisher interface {
	Publish(ctx context.Context, eventType, bookingID string, data map[string]interface{})
	Close() error
}

type kafkaPublisher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

// NewKafkaPublisher returns a Publisher backed by a Kafka topic. Events are
// keyed by booking ID so each booking's history stays ordered.
func NewKafkaPublisher(brokers []string, topic, source string, log *logger.Logger) (Publisher, error) {
	producer, err := kafka.NewProducer(brokers, topic)
	if err != nil {
		return nil, err
	}
	return &kafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
	}, nil
}

// Publish emits the event. Failures are logged and swallowed: events are
// best-effort and must never fail the booking or payment operation that
// triggered them.
func (p *kafkaPublisher) Publish(ctx context.Context, eventType, bookingID string, data map[string]interface{}) {
	msg := kafka.NewMessage().
		WithKey(bookingID).
		WithEventType(eventType).
		WithSource(p.source).
		WithValue(Envelope{
			EventType: eventType,
			BookingID: bookingID,
			Data:      data,
		}).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("failed to publish event",
			"event_type", eventType,
			"booking_id", bookingID,
			"error", err)
	}
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher discards events. Used when no brokers are configured and in
// tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, eventType, bookingID string, data map[string]interface{}) {
}

func (NoopPublisher) Close() error { return nil }
