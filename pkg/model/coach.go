package model

import "time"

// Coach is maintained by the profile/approval service; this service only
// reads it to price bookings and gate availability.
type Coach struct {
	ID                 string    `json:"id,omitempty" bson:"_id,omitempty"`
	Name               string    `json:"name" bson:"name"`
	HourlyRate         float64   `json:"hourly_rate" bson:"hourly_rate"`
	BookingCutoffHours int       `json:"booking_cutoff_hours" bson:"booking_cutoff_hours"`
	Approved           bool      `json:"approved" bson:"approved"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
}

// CutoffHours returns the coach's booking cutoff, falling back to the given
// default when the profile has none configured.
func (c *Coach) CutoffHours(defaultHours int) int {
	if c.BookingCutoffHours > 0 {
		return c.BookingCutoffHours
	}
	return defaultHours
}
