package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pitchside/pkg/config"
	"pitchside/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionName = "Coaches"

// ErrNotFound is returned when no coach matches the given ID.
var ErrNotFound = errors.New("coach not found")

// ErrInvalidID is returned when the ID is not a valid ObjectID hex string.
var ErrInvalidID = errors.New("invalid coach ID format")

// CoachRepository reads coach profiles. Coaches are owned by the profile
// service; this service never writes them.
type CoachRepository interface {
	FindByID(ctx context.Context, id string) (*model.Coach, error)
}

type mongoCoachRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCoachRepository(cfg *config.Config) CoachRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCoachRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoCoachRepository) FindByID(ctx context.Context, id string) (*model.Coach, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	ctx, cancel := context.WithTimeout(ctx, readTimeout(r.cfg))
	defer cancel()

	var coach model.Coach
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&coach)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find coach: %w", err)
	}

	return &coach, nil
}

func readTimeout(cfg *config.Config) time.Duration {
	if cfg.ReadTimeout > 0 {
		return cfg.ReadTimeout
	}
	return 5 * time.Second
}
