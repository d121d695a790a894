package model

import "time"

// Payment tracks the gateway's view of money movement for one booking.
// Exactly one payment record exists per booking; its status only changes in
// response to gateway confirmation, never on client assertion alone.
type Payment struct {
	ID           string  `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	BookingID    string  `json:"booking_id" bson:"booking_id" validate:"required,mongodb"`
	Amount       float64 `json:"amount" bson:"amount" validate:"min=0"`
	Currency     string  `json:"currency" bson:"currency" validate:"required,len=3"`
	Status       string  `json:"status" bson:"status" validate:"required,oneof=pending succeeded failed refunded"`
	IntentID     string  `json:"intent_id,omitempty" bson:"intent_id,omitempty"`
	ClientSecret string  `json:"client_secret,omitempty" bson:"client_secret,omitempty"`

	Refund *Refund `json:"refund,omitempty" bson:"refund,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

type Refund struct {
	RefundID   string    `json:"refund_id" bson:"refund_id"`
	Amount     float64   `json:"amount" bson:"amount"`
	Reason     string    `json:"reason,omitempty" bson:"reason,omitempty"`
	RefundedAt time.Time `json:"refunded_at" bson:"refunded_at"`
}
