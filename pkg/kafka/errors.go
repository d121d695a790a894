package kafka

import "errors"

var (
	// ErrProducerClosed is returned when publishing on a closed producer.
	ErrProducerClosed = errors.New("kafka: producer is closed")

	// ErrEmptyKey is returned when a message has no partition key.
	ErrEmptyKey = errors.New("kafka: message key cannot be empty")

	// ErrEmptyValue is returned when a message has no payload.
	ErrEmptyValue = errors.New("kafka: message value cannot be empty")
)
