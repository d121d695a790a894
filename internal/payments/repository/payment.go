package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	paymenterrors "pitchside/internal/payments/errors"
	"pitchside/pkg/config"
	mongotx "pitchside/pkg/db/mongo"
	"pitchside/pkg/model"
)

const CollectionName = "Payments"

// PaymentRepository persists one payment record per booking. The unique index
// on booking_id is the invariant; Create surfaces a violation as
// ErrDuplicatePayment so the service can return the stored record instead.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByBookingID(ctx context.Context, bookingID string) (*model.Payment, error)
	FindByIntentID(ctx context.Context, intentID string) (*model.Payment, error)
	MarkSucceeded(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
	ResetIntent(ctx context.Context, id, intentID, clientSecret string) error
	SetRefund(ctx context.Context, id string, refund *model.Refund) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoPaymentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoPaymentRepository(cfg *config.Config) PaymentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPaymentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoPaymentRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoPaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, payment)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return paymenterrors.ErrDuplicatePayment
		}
		return err
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		payment.ID = oid.Hex()
	}
	return nil
}

func (r *mongoPaymentRepository) FindByBookingID(ctx context.Context, bookingID string) (*model.Payment, error) {
	return r.findOne(ctx, bson.M{"booking_id": bookingID})
}

func (r *mongoPaymentRepository) FindByIntentID(ctx context.Context, intentID string) (*model.Payment, error) {
	return r.findOne(ctx, bson.M{"intent_id": intentID})
}

func (r *mongoPaymentRepository) findOne(ctx context.Context, filter bson.M) (*model.Payment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var payment model.Payment
	if err := r.collection.FindOne(ctx, filter).Decode(&payment); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, paymenterrors.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// MarkSucceeded moves the record to succeeded. A failed intent may still
// succeed on retry, so both pending and failed are accepted as the prior state.
func (r *mongoPaymentRepository) MarkSucceeded(ctx context.Context, id string) error {
	return r.guardedUpdate(ctx, id,
		bson.M{"status": bson.M{"$in": bson.A{model.IntentPending, model.IntentFailed}}},
		bson.M{"status": model.IntentSucceeded},
	)
}

func (r *mongoPaymentRepository) MarkFailed(ctx context.Context, id string) error {
	return r.guardedUpdate(ctx, id,
		bson.M{"status": model.IntentPending},
		bson.M{"status": model.IntentFailed},
	)
}

// ResetIntent swaps in a fresh gateway intent after a failed attempt.
func (r *mongoPaymentRepository) ResetIntent(ctx context.Context, id, intentID, clientSecret string) error {
	return r.guardedUpdate(ctx, id,
		bson.M{"status": model.IntentFailed},
		bson.M{
			"status":        model.IntentPending,
			"intent_id":     intentID,
			"client_secret": clientSecret,
		},
	)
}

func (r *mongoPaymentRepository) SetRefund(ctx context.Context, id string, refund *model.Refund) error {
	return r.guardedUpdate(ctx, id,
		bson.M{"status": model.IntentSucceeded},
		bson.M{
			"status": model.IntentRefunded,
			"refund": refund,
		},
	)
}

func (r *mongoPaymentRepository) guardedUpdate(ctx context.Context, id string, guard, set bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return paymenterrors.ErrInvalidID
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": objectID}
	for k, v := range guard {
		filter[k] = v
	}
	set["updated_at"] = time.Now().UTC()

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return paymenterrors.ErrStatusConflict
	}
	return nil
}

func (r *mongoPaymentRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
