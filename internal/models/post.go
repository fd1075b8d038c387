package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the post lifecycle state.
type Status string

const (
	StatusPending  Status = "pendiente"
	StatusApproved Status = "aprobado"
	StatusRejected Status = "rechazado"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Post represents an announcement stored in MongoDB.
//
// Posts are never hard-deleted: taking one down sets Deleted plus a mandatory
// DeleteReason and leaves everything else, status included, untouched for
// audit. Like is always recomputed from len(LikedBy) in the same update that
// mutates the set, so the two cannot diverge.
type Post struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Title     string             `json:"title" bson:"title"`
	Content   string             `json:"content" bson:"content"`
	Images    []string           `json:"images" bson:"images"`
	Documents []string           `json:"documents" bson:"documents"`
	Tags      []string           `json:"tags" bson:"tags"`
	Area      primitive.ObjectID `json:"area" bson:"area"`
	Author    primitive.ObjectID `json:"author" bson:"author"`
	Status    Status             `json:"status" bson:"status"`
	// ApprovedBy is set only when a chief approves the post.
	ApprovedBy *primitive.ObjectID `json:"approvedBy,omitempty" bson:"approvedBy,omitempty"`
	// Edits accumulates rejection feedback, oldest first. Append-only.
	Edits []string `json:"edits" bson:"edits"`
	// Sign is the approval-signature attachment path, set only on approval.
	Sign         string               `json:"sign,omitempty" bson:"sign,omitempty"`
	LikedBy      []primitive.ObjectID `json:"likedBy" bson:"likedBy"`
	Like         int                  `json:"like" bson:"like"`
	Deleted      bool                 `json:"deleted" bson:"deleted"`
	DeleteReason string               `json:"deleteReason" bson:"deleteReason"`
	CreatedAt    time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// LikedByUser reports whether the given user is in the liking set.
func (p *Post) LikedByUser(userID primitive.ObjectID) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ReviewRequest defines the form fields of the chief review action. The
// signature file travels alongside as multipart data.
type ReviewRequest struct {
	Status   Status `form:"status" json:"status" validate:"required"`
	Feedback string `form:"feedback" json:"feedback,omitempty"`
}

// DeletePostRequest defines the request body for the admin soft delete.
type DeletePostRequest struct {
	DeleteReason string `json:"deleteReason" validate:"required"`
}
