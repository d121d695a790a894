package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "pitchside/internal/bookings/errors"
	"pitchside/pkg/config"
	"pitchside/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// SlotLockRepository provides advisory locks serializing booking attempts on
// one slot. Correctness does not depend on these locks; the conditional slot
// claim is the real guard. The lock just keeps racing requests from burning a
// transaction each.
type SlotLockRepository interface {
	Acquire(ctx context.Context, slotID string) (string, error)
	Release(ctx context.Context, lockID string) error
}

type mongoSlotLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewSlotLockRepository(cfg *config.Config) SlotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLockRepository{
		cfg:        cfg,
		collection: db.Collection("Slot_locks"),
	}
}

// Acquire inserts the lock document. A duplicate key on _id means another
// request holds the slot; expires_at backs a TTL index for crash recovery.
func (r *mongoSlotLockRepository) Acquire(ctx context.Context, slotID string) (string, error) {
	lockID := fmt.Sprintf("slot_lock_%s", slotID)
	now := time.Now().UTC()

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: now.Add(r.cfg.SlotLockTTL),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", bookingserrors.ErrLockHeld
		}
		return "", fmt.Errorf("failed to acquire slot lock: %w", err)
	}

	return lockID, nil
}

func (r *mongoSlotLockRepository) Release(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
