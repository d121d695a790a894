package model

import (
	"fmt"
	"time"
)

// TimeSlot is a bookable window owned by one coach. StartTime and EndTime are
// wall-clock HH:mm strings on Date's day, stored as strings so lexicographic
// comparison matches chronological order.
type TimeSlot struct {
	ID                 string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	CoachID            string    `json:"coach_id" bson:"coach_id" validate:"required,mongodb"`
	Date               time.Time `json:"date" bson:"date" validate:"required"`
	StartTime          string    `json:"start_time" bson:"start_time" validate:"required,hhmm_time"`
	EndTime            string    `json:"end_time" bson:"end_time" validate:"required,hhmm_time"`
	DurationMinutes    int       `json:"duration_minutes" bson:"duration_minutes" validate:"required,min=15,max=180"`
	Status             string    `json:"status" bson:"status" validate:"required,oneof=available booked cancelled"`
	Capacity           int       `json:"capacity" bson:"capacity" validate:"required,min=1,max=50"`
	BookedCount        int       `json:"booked_count" bson:"booked_count" validate:"min=0"`
	BookingCutoffHours int       `json:"booking_cutoff_hours" bson:"booking_cutoff_hours" validate:"min=0,max=168"`
	BookingID          *string   `json:"booking_id,omitempty" bson:"booking_id,omitempty" validate:"omitempty,mongodb"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// TimeSlotUpdate is the allow-listed mutable field set for PUT /schedule/slot.
// Status is deliberately absent: a booked slot is only ever freed through
// booking cancellation.
type TimeSlotUpdate struct {
	StartTime          string `json:"start_time,omitempty" validate:"omitempty,hhmm_time"`
	EndTime            string `json:"end_time,omitempty" validate:"omitempty,hhmm_time"`
	Capacity           *int   `json:"capacity,omitempty" validate:"omitempty,min=1,max=50"`
	BookingCutoffHours *int   `json:"booking_cutoff_hours,omitempty" validate:"omitempty,min=0,max=168"`
}

// AvailableSlot is a time slot annotated with the coach's rate for display.
type AvailableSlot struct {
	TimeSlot
	HourlyRate float64 `json:"hourly_rate"`
}

// RecurringTemplate describes one weekly recurring window. DayOfWeek follows
// time.Weekday (0 = Sunday).
type RecurringTemplate struct {
	DayOfWeek          int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime          string `json:"start_time" validate:"required,hhmm_time"`
	EndTime            string `json:"end_time" validate:"required,hhmm_time"`
	Capacity           int    `json:"capacity" validate:"required,min=1,max=50"`
	BookingCutoffHours int    `json:"booking_cutoff_hours" validate:"min=0,max=168"`
}

// ParseHHMM parses an HH:mm wall-clock string. The zero-padded five-character
// shape is required so stored times stay lexicographically comparable.
func ParseHHMM(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("invalid HH:mm time %q", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid HH:mm time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// StartAt resolves the slot's concrete start instant in UTC.
func (s *TimeSlot) StartAt() (time.Time, error) {
	hour, minute, err := ParseHHMM(s.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	d := s.Date.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC), nil
}

// MinutesBetween returns the minutes from start to end, both HH:mm strings.
func MinutesBetween(start, end string) (int, error) {
	sh, sm, err := ParseHHMM(start)
	if err != nil {
		return 0, err
	}
	eh, em, err := ParseHHMM(end)
	if err != nil {
		return 0, err
	}
	return (eh*60 + em) - (sh*60 + sm), nil
}

// Overlaps reports whether two HH:mm windows on the same date intersect.
func Overlaps(start1, end1, start2, end2 string) bool {
	return start1 < end2 && end1 > start2
}
