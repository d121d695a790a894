package errors

import "errors"

var (
	ErrNotFound = errors.New("time slot not found")

	ErrInvalidID = errors.New("invalid time slot ID format")

	// ErrSlotUnavailable is returned when a conditional claim matched no
	// document: the slot is missing, not available, or at capacity.
	ErrSlotUnavailable = errors.New("time slot is not available")

	// ErrDuplicateSlot is returned when an insert hits the unique
	// (coach_id, date, start_time) index.
	ErrDuplicateSlot = errors.New("time slot already exists for this coach, date and start time")
)
