package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	salonserrors "trimly/internal/salons/errors"
	"trimly/pkg/config"
	mongotx "trimly/pkg/db/mongo"
	"trimly/pkg/geo"
	"trimly/pkg/model"
)

const (
	CollectionName       = "Salons"
	ReviewCollectionName = "Reviews"
)

type mongoSalonRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	reviews    *mongo.Collection
	txManager  mongotx.TransactionManager
}

type SalonRepository interface {
	Create(ctx context.Context, salon *model.Salon) error
	FindByID(ctx context.Context, id string) (*model.Salon, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Salon, error)
	FindInBox(ctx context.Context, box geo.BoundingBox) ([]*model.Salon, error)
	Update(ctx context.Context, id string, salon *model.Salon) (*mongo.UpdateResult, error)
	AddPhotoURL(ctx context.Context, id string, url string) error
	UpdateRating(ctx context.Context, id string, rating float64, ratingCount int) error
	Count(ctx context.Context) (int64, error)
	CreateReview(ctx context.Context, review *model.Review) error
	FindReviewsBySalon(ctx context.Context, salonID string, limit int, offset int64) ([]*model.Review, error)
	CountReviewsBySalon(ctx context.Context, salonID string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoSalonRepository(cfg *config.Config) SalonRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSalonRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		reviews:    db.Collection(ReviewCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo, cfg.TxMaxAttempts),
	}
}

func (r *mongoSalonRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoSalonRepository) Create(ctx context.Context, salon *model.Salon) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	salon.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, salon)
	if err != nil {
		return fmt.Errorf("failed to create salon: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		salon.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSalonRepository) FindByID(ctx context.Context, id string) (*model.Salon, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", salonserrors.ErrInvalidID, id)
	}

	var salon model.Salon
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&salon)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, salonserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find salon: %w", err)
	}

	return &salon, nil
}

func (r *mongoSalonRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Salon, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list salons: %w", err)
	}
	defer cursor.Close(ctx)

	salons := []*model.Salon{}
	if err := cursor.All(ctx, &salons); err != nil {
		return nil, fmt.Errorf("failed to decode salons: %w", err)
	}
	return salons, nil
}

// FindInBox returns salons whose coordinates fall inside the bounding box.
// Callers refine the result with an exact distance check; the box query only
// exists so the lat/lng indexes can do the heavy lifting.
func (r *mongoSalonRepository) FindInBox(ctx context.Context, box geo.BoundingBox) ([]*model.Salon, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"latitude": bson.M{"$gte": box.MinLat, "$lte": box.MaxLat},
	}
	if box.MinLng <= box.MaxLng {
		filter["longitude"] = bson.M{"$gte": box.MinLng, "$lte": box.MaxLng}
	} else {
		// Box crosses the antimeridian.
		filter["$or"] = bson.A{
			bson.M{"longitude": bson.M{"$gte": box.MinLng}},
			bson.M{"longitude": bson.M{"$lte": box.MaxLng}},
		}
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query salons in box: %w", err)
	}
	defer cursor.Close(ctx)

	salons := []*model.Salon{}
	if err := cursor.All(ctx, &salons); err != nil {
		return nil, fmt.Errorf("failed to decode salons: %w", err)
	}
	return salons, nil
}

func (r *mongoSalonRepository) Update(ctx context.Context, id string, salon *model.Salon) (*mongo.UpdateResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", salonserrors.ErrInvalidID, id)
	}

	update := bson.M{"$set": bson.M{
		"name":      salon.Name,
		"address":   salon.Address,
		"city":      salon.City,
		"phone":     salon.Phone,
		"latitude":  salon.Latitude,
		"longitude": salon.Longitude,
		"barbers":   salon.Barbers,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update salon: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, salonserrors.ErrNotFound
	}
	return result, nil
}

func (r *mongoSalonRepository) AddPhotoURL(ctx context.Context, id string, url string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", salonserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$push": bson.M{"photo_urls": url}},
	)
	if err != nil {
		return fmt.Errorf("failed to attach photo: %w", err)
	}
	if result.MatchedCount == 0 {
		return salonserrors.ErrNotFound
	}
	return nil
}

func (r *mongoSalonRepository) UpdateRating(ctx context.Context, id string, rating float64, ratingCount int) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", salonserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"rating": rating, "rating_count": ratingCount}},
	)
	if err != nil {
		return fmt.Errorf("failed to update rating: %w", err)
	}
	if result.MatchedCount == 0 {
		return salonserrors.ErrNotFound
	}
	return nil
}

func (r *mongoSalonRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count salons: %w", err)
	}
	return count, nil
}

func (r *mongoSalonRepository) CreateReview(ctx context.Context, review *model.Review) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	review.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.reviews.InsertOne(ctx, review)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		review.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSalonRepository) FindReviewsBySalon(ctx context.Context, salonID string, limit int, offset int64) ([]*model.Review, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.reviews.Find(ctx, bson.M{"salon_id": salonID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer cursor.Close(ctx)

	reviews := []*model.Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}
	return reviews, nil
}

func (r *mongoSalonRepository) CountReviewsBySalon(ctx context.Context, salonID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.reviews.CountDocuments(ctx, bson.M{"salon_id": salonID})
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

func (r *mongoSalonRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.Execute(ctx, fn)
}
