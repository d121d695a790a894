package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	timesloterrors "pitchside/internal/timeslots/errors"
	"pitchside/pkg/config"
	mongotx "pitchside/pkg/db/mongo"
	"pitchside/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Time_slots"
)

// BulkInsertResult reports the outcome of an unordered bulk insert where
// duplicate-key collisions count as skips, not failures.
type BulkInsertResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type TimeSlotRepository interface {
	Create(ctx context.Context, slot *model.TimeSlot) error
	FindByID(ctx context.Context, id string) (*model.TimeSlot, error)
	Update(ctx context.Context, id string, slot *model.TimeSlot) error
	DeleteAvailable(ctx context.Context, id string) error
	FindByCoachAndDateRange(ctx context.Context, coachID string, from, to time.Time) ([]*model.TimeSlot, error)
	FindAvailableByCoach(ctx context.Context, coachID string, from, to time.Time) ([]*model.TimeSlot, error)
	FindOverlapping(ctx context.Context, coachID string, date time.Time, startTime, endTime string) ([]*model.TimeSlot, error)
	InsertManySkipDuplicates(ctx context.Context, slots []*model.TimeSlot) (*BulkInsertResult, error)
	Claim(ctx context.Context, slotID, bookingID string) error
	Release(ctx context.Context, slotID, bookingID string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoTimeSlotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoTimeSlotRepository(cfg *config.Config) TimeSlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTimeSlotRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless it is already a
// transaction session, which must not be re-wrapped.
func (r *mongoTimeSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoTimeSlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, slot)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return timesloterrors.ErrDuplicateSlot
		}
		return fmt.Errorf("failed to create time slot: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		slot.ID = oid.Hex()
	}
	return nil
}

func (r *mongoTimeSlotRepository) FindByID(ctx context.Context, id string) (*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", timesloterrors.ErrInvalidID, id)
	}

	var slot model.TimeSlot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, timesloterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find time slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoTimeSlotRepository) Update(ctx context.Context, id string, slot *model.TimeSlot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", timesloterrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"start_time":           slot.StartTime,
			"end_time":             slot.EndTime,
			"duration_minutes":     slot.DurationMinutes,
			"capacity":             slot.Capacity,
			"booking_cutoff_hours": slot.BookingCutoffHours,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update time slot: %w", err)
	}
	if result.MatchedCount == 0 {
		return timesloterrors.ErrNotFound
	}
	return nil
}

// DeleteAvailable removes the slot only while it is still available. A zero
// delete count on an existing slot means the slot was claimed in the meantime.
func (r *mongoTimeSlotRepository) DeleteAvailable(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", timesloterrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":    objectID,
		"status": model.SlotAvailable,
	})
	if err != nil {
		return fmt.Errorf("failed to delete time slot: %w", err)
	}
	if result.DeletedCount == 0 {
		return timesloterrors.ErrSlotUnavailable
	}
	return nil
}

func (r *mongoTimeSlotRepository) FindByCoachAndDateRange(ctx context.Context, coachID string, from, to time.Time) ([]*model.TimeSlot, error) {
	return r.find(ctx, bson.M{
		"coach_id": coachID,
		"date":     bson.M{"$gte": from, "$lte": to},
	})
}

func (r *mongoTimeSlotRepository) FindAvailableByCoach(ctx context.Context, coachID string, from, to time.Time) ([]*model.TimeSlot, error) {
	return r.find(ctx, bson.M{
		"coach_id": coachID,
		"date":     bson.M{"$gte": from, "$lte": to},
		"status":   model.SlotAvailable,
		"$expr":    bson.M{"$lt": bson.A{"$booked_count", "$capacity"}},
	})
}

func (r *mongoTimeSlotRepository) FindOverlapping(ctx context.Context, coachID string, date time.Time, startTime, endTime string) ([]*model.TimeSlot, error) {
	candidates, err := r.find(ctx, bson.M{
		"coach_id": coachID,
		"date":     date,
		"status":   bson.M{"$ne": model.SlotCancelled},
	})
	if err != nil {
		return nil, err
	}

	var overlapping []*model.TimeSlot
	for _, slot := range candidates {
		if model.Overlaps(slot.StartTime, slot.EndTime, startTime, endTime) {
			overlapping = append(overlapping, slot)
		}
	}
	return overlapping, nil
}

func (r *mongoTimeSlotRepository) find(ctx context.Context, filter bson.M) ([]*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "date", Value: 1},
		{Key: "start_time", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find time slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.TimeSlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode time slots: %w", err)
	}

	return slots, nil
}

// InsertManySkipDuplicates inserts slots unordered so duplicate-key hits on
// the (coach_id, date, start_time) index skip the colliding document and keep
// going. Re-running recurring generation is therefore safe.
func (r *mongoTimeSlotRepository) InsertManySkipDuplicates(ctx context.Context, slots []*model.TimeSlot) (*BulkInsertResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := make([]interface{}, 0, len(slots))
	for _, slot := range slots {
		slot.CreatedAt = now
		docs = append(docs, slot)
	}

	opts := options.InsertMany().SetOrdered(false)
	result, err := r.collection.InsertMany(ctx, docs, opts)

	created := 0
	if result != nil {
		created = len(result.InsertedIDs)
	}

	if err != nil {
		var bulkErr mongo.BulkWriteException
		if errors.As(err, &bulkErr) {
			for _, we := range bulkErr.WriteErrors {
				if !mongo.IsDuplicateKeyError(we) {
					return nil, fmt.Errorf("failed to bulk insert time slots: %w", err)
				}
			}
			return &BulkInsertResult{
				Created: created,
				Skipped: len(slots) - created,
			}, nil
		}
		return nil, fmt.Errorf("failed to bulk insert time slots: %w", err)
	}

	return &BulkInsertResult{Created: created, Skipped: len(slots) - created}, nil
}

// Claim atomically takes one unit of the slot's capacity. The filter is the
// compare-and-set guard: only an available slot with spare capacity matches,
// so two racing claims on a capacity-1 slot cannot both succeed. The slot
// flips to booked when the claim fills it, and the booking is linked directly
// on single-capacity slots.
func (r *mongoTimeSlotRepository) Claim(ctx context.Context, slotID, bookingID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(slotID)
	if err != nil {
		return fmt.Errorf("%w: %s", timesloterrors.ErrInvalidID, slotID)
	}

	filter := bson.M{
		"_id":    objectID,
		"status": model.SlotAvailable,
		"$expr":  bson.M{"$lt": bson.A{"$booked_count", "$capacity"}},
	}

	newCount := bson.M{"$add": bson.A{"$booked_count", 1}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"booked_count": newCount,
			"status": bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{newCount, "$capacity"}},
				model.SlotBooked,
				"$status",
			}},
			"booking_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$capacity", 1}},
				bookingID,
				"$booking_id",
			}},
		}}},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to claim time slot: %w", err)
	}
	if result.MatchedCount == 0 {
		return timesloterrors.ErrSlotUnavailable
	}
	return nil
}

// Release returns one unit of capacity claimed by the given booking. A booked
// slot reopens; the booking link is cleared when it points at this booking.
func (r *mongoTimeSlotRepository) Release(ctx context.Context, slotID, bookingID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(slotID)
	if err != nil {
		return fmt.Errorf("%w: %s", timesloterrors.ErrInvalidID, slotID)
	}

	filter := bson.M{
		"_id":          objectID,
		"booked_count": bson.M{"$gt": 0},
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"booked_count": bson.M{"$add": bson.A{"$booked_count", -1}},
			"status": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$status", model.SlotBooked}},
				model.SlotAvailable,
				"$status",
			}},
			"booking_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$booking_id", bookingID}},
				"$$REMOVE",
				"$booking_id",
			}},
		}}},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to release time slot: %w", err)
	}
	if result.MatchedCount == 0 {
		return timesloterrors.ErrNotFound
	}
	return nil
}

func (r *mongoTimeSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
