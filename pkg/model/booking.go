package model

import "time"

// Booking is a client's claim on a time slot. It is the source of truth the
// slot's booked state mirrors: cancelling a booking frees its slot.
type Booking struct {
	ID            string  `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID        string  `json:"user_id" bson:"user_id" validate:"required"`
	CoachID       string  `json:"coach_id" bson:"coach_id" validate:"required,mongodb"`
	TimeSlotID    string  `json:"time_slot_id" bson:"time_slot_id" validate:"required,mongodb"`
	Status        string  `json:"status" bson:"status" validate:"required,oneof=pending confirmed completed cancelled no-show"`
	PaymentStatus string  `json:"payment_status" bson:"payment_status" validate:"required,oneof=pending paid refunded failed"`
	PaymentAmount float64 `json:"payment_amount" bson:"payment_amount" validate:"min=0"`

	CancellationReason string     `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`

	Feedback *Feedback `json:"feedback,omitempty" bson:"feedback,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

type Feedback struct {
	Rating  int    `json:"rating" bson:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty" bson:"comment,omitempty" validate:"omitempty,max=1000"`
}

// IsOwnedBy reports whether the given user created this booking.
func (b *Booking) IsOwnedBy(userID string) bool {
	return b.UserID == userID
}
