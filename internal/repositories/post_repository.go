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

// ApprovedFilter narrows the approved-post listing.
type ApprovedFilter struct {
	Area   *primitive.ObjectID
	Search string
}

// PostRepository defines the interface for post data operations.
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetApprovedPosts(ctx context.Context, filter ApprovedFilter) ([]models.Post, error)
	GetPendingPostsByArea(ctx context.Context, areaID primitive.ObjectID) ([]models.Post, error)
	GetPostsByAuthor(ctx context.Context, authorID primitive.ObjectID) ([]models.Post, error)
	UpdatePost(ctx context.Context, id string, post *models.Post) error
	ApprovePost(ctx context.Context, id string, approver primitive.ObjectID, signPath string) error
	RejectPost(ctx context.Context, id string, feedback string) error
	SoftDeletePost(ctx context.Context, id string, reason string) error
	AddLike(ctx context.Context, id string, userID primitive.ObjectID) (int, error)
	RemoveLike(ctx context.Context, id string, userID primitive.ObjectID) (int, error)
}

// MongoPostRepository implements PostRepository for MongoDB.
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository.
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// CreatePost creates a new post in pending state.
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	post.Status = models.StatusPending
	if post.Images == nil {
		post.Images = []string{}
	}
	if post.Documents == nil {
		post.Documents = []string{}
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	post.Edits = []string{}
	post.LikedBy = []primitive.ObjectID{}
	post.Like = 0
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID retrieves a post by ID.
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID format: %w", err)
	}

	var post models.Post
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// GetApprovedPosts retrieves all approved, non-deleted posts in reverse
// chronological order. Search matches title, content and tags
// case-insensitively. Ordering beyond the base sort (the reader-focus boost)
// is applied by the caller, which knows the reader's role.
func (r *MongoPostRepository) GetApprovedPosts(ctx context.Context, filter ApprovedFilter) ([]models.Post, error) {
	query := bson.M{"status": models.StatusApproved, "deleted": false}
	if filter.Area != nil {
		query["area"] = *filter.Area
	}
	if filter.Search != "" {
		regex := primitive.Regex{Pattern: filter.Search, Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": regex},
			bson.M{"content": regex},
			bson.M{"tags": regex},
		}
	}

	var posts []models.Post
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPendingPostsByArea retrieves the pending posts of one area.
func (r *MongoPostRepository) GetPendingPostsByArea(ctx context.Context, areaID primitive.ObjectID) ([]models.Post, error) {
	var posts []models.Post
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"status": models.StatusPending, "area": areaID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPostsByAuthor retrieves all posts of one author, any status.
func (r *MongoPostRepository) GetPostsByAuthor(ctx context.Context, authorID primitive.ObjectID) ([]models.Post, error) {
	var posts []models.Post
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"author": authorID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdatePost persists the editable fields of a re-edited post.
func (r *MongoPostRepository) UpdatePost(ctx context.Context, id string, post *models.Post) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid post ID format: %w", err)
	}

	post.UpdatedAt = time.Now()
	update := bson.M{
		"$set": bson.M{
			"title":     post.Title,
			"content":   post.Content,
			"images":    post.Images,
			"documents": post.Documents,
			"tags":      post.Tags,
			"status":    post.Status,
			"updatedAt": post.UpdatedAt,
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ApprovePost marks a post approved, recording the approver and the signature
// attachment.
func (r *MongoPostRepository) ApprovePost(ctx context.Context, id string, approver primitive.ObjectID, signPath string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid post ID format: %w", err)
	}

	update := bson.M{
		"$set": bson.M{
			"status":     models.StatusApproved,
			"approvedBy": approver,
			"sign":       signPath,
			"updatedAt":  time.Now(),
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RejectPost marks a post rejected, appending the feedback to the edit log.
func (r *MongoPostRepository) RejectPost(ctx context.Context, id string, feedback string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid post ID format: %w", err)
	}

	update := bson.M{
		"$set":  bson.M{"status": models.StatusRejected, "updatedAt": time.Now()},
		"$push": bson.M{"edits": feedback},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeletePost takes a post down without touching its lifecycle status.
func (r *MongoPostRepository) SoftDeletePost(ctx context.Context, id string, reason string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid post ID format: %w", err)
	}

	update := bson.M{
		"$set": bson.M{"deleted": true, "deleteReason": reason, "updatedAt": time.Now()},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddLike adds the user to the liking set and returns the new like count.
// The membership filter and the set append run in one conditional update, and
// the count is recomputed from the set size in the same pipeline, so the count
// cannot drift from the set under concurrent toggles.
func (r *MongoPostRepository) AddLike(ctx context.Context, id string, userID primitive.ObjectID) (int, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, fmt.Errorf("invalid post ID format: %w", err)
	}

	filter := bson.M{"_id": objID, "likedBy": bson.M{"$ne": userID}}
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"likedBy": bson.M{"$concatArrays": bson.A{"$likedBy", bson.A{userID}}},
		}}},
		bson.D{{Key: "$set", Value: bson.M{"like": bson.M{"$size": "$likedBy"}}}},
	}

	var post models.Post
	err = r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&post)
	if err == nil {
		return post.Like, nil
	}
	if err != mongo.ErrNoDocuments {
		return 0, err
	}

	// No match: either the post is gone or the user already liked it.
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objID})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, ErrNotFound
	}
	return 0, ErrAlreadyLiked
}

// RemoveLike removes the user from the liking set and returns the new like
// count. Same atomicity shape as AddLike.
func (r *MongoPostRepository) RemoveLike(ctx context.Context, id string, userID primitive.ObjectID) (int, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, fmt.Errorf("invalid post ID format: %w", err)
	}

	filter := bson.M{"_id": objID, "likedBy": userID}
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"likedBy": bson.M{"$filter": bson.M{
				"input": "$likedBy",
				"cond":  bson.M{"$ne": bson.A{"$$this", userID}},
			}},
		}}},
		bson.D{{Key: "$set", Value: bson.M{"like": bson.M{"$size": "$likedBy"}}}},
	}

	var post models.Post
	err = r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&post)
	if err == nil {
		return post.Like, nil
	}
	if err != mongo.ErrNoDocuments {
		return 0, err
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objID})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, ErrNotFound
	}
	return 0, ErrNotLiked
}
