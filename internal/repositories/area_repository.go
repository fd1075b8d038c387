package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/infoescom/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AreaRepository defines the interface for area data operations.
type AreaRepository interface {
	CreateArea(ctx context.Context, area *models.Area) error
	GetAreaByID(ctx context.Context, id string) (*models.Area, error)
	GetAreasByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Area, error)
	GetTopLevelAreas(ctx context.Context) ([]models.Area, error)
	UpdateArea(ctx context.Context, area *models.Area) error
	DeleteArea(ctx context.Context, id string) (*models.Area, error)
	AddSubarea(ctx context.Context, parentID, childID primitive.ObjectID) error
	RemoveSubarea(ctx context.Context, parentID, childID primitive.ObjectID) error
}

// MongoAreaRepository implements AreaRepository for MongoDB.
type MongoAreaRepository struct {
	collection *mongo.Collection
}

// NewMongoAreaRepository creates a new MongoAreaRepository.
func NewMongoAreaRepository(db *mongo.Database) *MongoAreaRepository {
	return &MongoAreaRepository{collection: db.Collection("areas")}
}

// CreateArea creates a new area.
func (r *MongoAreaRepository) CreateArea(ctx context.Context, area *models.Area) error {
	area.ID = primitive.NewObjectID()
	if area.Subareas == nil {
		area.Subareas = []primitive.ObjectID{}
	}
	area.CreatedAt = time.Now()
	area.UpdatedAt = area.CreatedAt
	_, err := r.collection.InsertOne(ctx, area)
	return err
}

// GetAreaByID retrieves an area by ID.
func (r *MongoAreaRepository) GetAreaByID(ctx context.Context, id string) (*models.Area, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid area ID format: %w", err)
	}

	var area models.Area
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&area)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &area, nil
}

// GetAreasByIDs retrieves the areas matching the given IDs. Missing IDs are
// silently absent from the result.
func (r *MongoAreaRepository) GetAreasByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Area, error) {
	if len(ids) == 0 {
		return []models.Area{}, nil
	}

	var areas []models.Area
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &areas); err != nil {
		return nil, err
	}
	return areas, nil
}

// GetTopLevelAreas retrieves all areas without a parent, sorted by name.
func (r *MongoAreaRepository) GetTopLevelAreas(ctx context.Context) ([]models.Area, error) {
	var areas []models.Area
	findOptions := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"parent": bson.M{"$exists": false}}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &areas); err != nil {
		return nil, err
	}
	return areas, nil
}

// UpdateArea updates an area's name and focus.
func (r *MongoAreaRepository) UpdateArea(ctx context.Context, area *models.Area) error {
	area.UpdatedAt = time.Now()
	update := bson.M{
		"$set": bson.M{
			"name":      area.Name,
			"focus":     area.Focus,
			"updatedAt": area.UpdatedAt,
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": area.ID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteArea deletes an area and returns the deleted document so the caller
// can unlink it from its parent. Subareas of the deleted area are left in
// place, still referencing the dead parent.
func (r *MongoAreaRepository) DeleteArea(ctx context.Context, id string) (*models.Area, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid area ID format: %w", err)
	}

	var area models.Area
	err = r.collection.FindOneAndDelete(ctx, bson.M{"_id": objID}).Decode(&area)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &area, nil
}

// AddSubarea links a child into the parent's subarea set.
func (r *MongoAreaRepository) AddSubarea(ctx context.Context, parentID, childID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": parentID},
		bson.M{"$addToSet": bson.M{"subareas": childID}})
	return err
}

// RemoveSubarea unlinks a child from the parent's subarea set.
func (r *MongoAreaRepository) RemoveSubarea(ctx context.Context, parentID, childID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": parentID},
		bson.M{"$pull": bson.M{"subareas": childID}})
	return err
}
