package repositories

import (
	"context"
	"time"

	"github.com/infoescom/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SubscriptionRepository defines the interface for push subscription records.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, userID, areaID primitive.ObjectID, token string) (*models.Subscription, error)
	Delete(ctx context.Context, userID, areaID primitive.ObjectID) error
	GetByArea(ctx context.Context, areaID primitive.ObjectID) ([]models.Subscription, error)
}

// MongoSubscriptionRepository implements SubscriptionRepository for MongoDB.
type MongoSubscriptionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubscriptionRepository creates a new MongoSubscriptionRepository.
func NewMongoSubscriptionRepository(db *mongo.Database) *MongoSubscriptionRepository {
	return &MongoSubscriptionRepository{collection: db.Collection("subscriptions")}
}

// Upsert creates or refreshes the (user, area) subscription record.
func (r *MongoSubscriptionRepository) Upsert(ctx context.Context, userID, areaID primitive.ObjectID, token string) (*models.Subscription, error) {
	now := time.Now()
	filter := bson.M{"user": userID, "area": areaID}
	update := bson.M{
		"$set":         bson.M{"subscription": token, "updatedAt": now},
		"$setOnInsert": bson.M{"user": userID, "area": areaID, "createdAt": now},
	}

	var sub models.Subscription
	err := r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&sub)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Delete removes the (user, area) subscription record if present.
func (r *MongoSubscriptionRepository) Delete(ctx context.Context, userID, areaID primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"user": userID, "area": areaID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByArea retrieves every subscription registered for an area.
func (r *MongoSubscriptionRepository) GetByArea(ctx context.Context, areaID primitive.ObjectID) ([]models.Subscription, error) {
	var subs []models.Subscription
	cursor, err := r.collection.Find(ctx, bson.M{"area": areaID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}
