package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "pitchside/internal/bookings/errors"
	"pitchside/pkg/config"
	mongotx "pitchside/pkg/db/mongo"
	"pitchside/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	Find(ctx context.Context, userID, coachID string, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, userID, coachID string) (int64, error)
	Transition(ctx context.Context, id, from, to string) error
	Cancel(ctx context.Context, id, from, reason, cancelledBy string) error
	MarkPaid(ctx context.Context, id string) error
	MarkPaymentFailed(ctx context.Context, id string) error
	MarkRefunded(ctx context.Context, id string) error
	SetFeedback(ctx context.Context, id string, feedback *model.Feedback) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless it is already a
// transaction session, which must not be re-wrapped.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) Find(ctx context.Context, userID, coachID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, scopeFilter(userID, coachID), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, userID, coachID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, scopeFilter(userID, coachID))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func scopeFilter(userID, coachID string) bson.M {
	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}
	if coachID != "" {
		filter["coach_id"] = coachID
	}
	return filter
}

// Transition moves the booking between statuses with the previous status as
// the update guard, so a concurrent transition loses cleanly instead of
// overwriting.
func (r *mongoBookingRepository) Transition(ctx context.Context, id, from, to string) error {
	return r.guardedUpdate(ctx, id, from, bson.M{"status": to})
}

func (r *mongoBookingRepository) Cancel(ctx context.Context, id, from, reason, cancelledBy string) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return r.guardedUpdate(ctx, id, from, bson.M{
		"status":              model.BookingCancelled,
		"cancellation_reason": reason,
		"cancelled_at":        now,
		"cancelled_by":        cancelledBy,
	})
}

func (r *mongoBookingRepository) MarkPaid(ctx context.Context, id string) error {
	return r.guardedUpdate(ctx, id, model.BookingPending, bson.M{
		"status":         model.BookingConfirmed,
		"payment_status": model.PaymentPaid,
	})
}

func (r *mongoBookingRepository) MarkPaymentFailed(ctx context.Context, id string) error {
	return r.guardedUpdate(ctx, id, model.BookingPending, bson.M{
		"status":         model.BookingCancelled,
		"payment_status": model.PaymentFailed,
	})
}

func (r *mongoBookingRepository) MarkRefunded(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	// Refunds follow cancellation, so only the payment side is guarded here.
	filter := bson.M{"_id": objectID, "payment_status": model.PaymentPaid}
	update := bson.M{"$set": bson.M{
		"status":         model.BookingCancelled,
		"payment_status": model.PaymentRefunded,
		"updated_at":     time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark booking refunded: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrStatusConflict
	}
	return nil
}

func (r *mongoBookingRepository) SetFeedback(ctx context.Context, id string, feedback *model.Feedback) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.BookingCompleted}
	update := bson.M{"$set": bson.M{
		"feedback":   feedback,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set booking feedback: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrStatusConflict
	}
	return nil
}

func (r *mongoBookingRepository) guardedUpdate(ctx context.Context, id, fromStatus string, set bson.M) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	set["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)
	filter := bson.M{"_id": objectID, "status": fromStatus}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrStatusConflict
	}
	return nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
