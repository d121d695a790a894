package model

import "time"

// SlotLock is an advisory lock serializing booking attempts against one slot.
// The _id is derived from the slot so a duplicate-key error means another
// request holds the slot; expires_at backs a TTL index for crash recovery.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
