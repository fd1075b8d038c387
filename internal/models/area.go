package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Area represents an organizational unit stored in MongoDB. The tree is two
// levels deep by convention: a top-level area has no parent, a subarea points
// at exactly one parent and is listed in that parent's subareas.
type Area struct {
	ID       primitive.ObjectID   `json:"id,omitempty" bson:"_id,omitempty"`
	Name     string               `json:"name" bson:"name"`
	Parent   *primitive.ObjectID  `json:"parent,omitempty" bson:"parent,omitempty"`
	Subareas []primitive.ObjectID `json:"subareas" bson:"subareas"`
	// Focus is the non-empty set of audience roles the area's posts target.
	Focus     []Role    `json:"focus" bson:"focus"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HasFocus reports whether the area targets the given audience role.
func (a *Area) HasFocus(r Role) bool {
	for _, f := range a.Focus {
		if f == r {
			return true
		}
	}
	return false
}

// AreaCompact is the reduced area representation embedded in enriched
// responses and area listings.
type AreaCompact struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Focus []Role             `json:"focus"`
}

// ToCompact returns the compact representation of the area.
func (a *Area) ToCompact() AreaCompact {
	return AreaCompact{ID: a.ID, Name: a.Name, Focus: a.Focus}
}

// AreaNode is a top-level area with its subareas resolved, as returned by the
// area listing.
type AreaNode struct {
	ID       primitive.ObjectID `json:"id"`
	Name     string             `json:"name"`
	Focus    []Role             `json:"focus"`
	Subareas []AreaCompact      `json:"subareas"`
}

// CreateAreaRequest defines the request body for creating an area or subarea.
type CreateAreaRequest struct {
	Name   string   `json:"name" validate:"required,min=2,max=120"`
	Parent string   `json:"parent,omitempty"`
	Focus  []string `json:"focus" validate:"required,min=1"`
}

// UpdateAreaRequest defines the request body for updating an area.
type UpdateAreaRequest struct {
	Name  string   `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Focus []string `json:"focus,omitempty" validate:"omitempty,min=1"`
}
