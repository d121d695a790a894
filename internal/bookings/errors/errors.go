package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStatusConflict is returned when a conditional status update matched
	// no document: the booking moved to another status concurrently.
	ErrStatusConflict = errors.New("booking status changed concurrently")

	// ErrLockHeld is returned when another request holds the slot's advisory
	// lock.
	ErrLockHeld = errors.New("slot lock is held by another request")
)
