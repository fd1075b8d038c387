package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Subscription is a per-user, per-area push opt-in. Token is the opaque
// delivery descriptor handed to the push provider; the core never inspects
// it. Unique per (user, area) pair.
type Subscription struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	User      primitive.ObjectID `json:"user" bson:"user"`
	Area      primitive.ObjectID `json:"area" bson:"area"`
	Token     string             `json:"subscription" bson:"subscription"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// SubscribeRequest defines the request body for registering a subscription.
type SubscribeRequest struct {
	Area  string `json:"area" validate:"required"`
	Token string `json:"subscription" validate:"required"`
}

// UnsubscribeRequest defines the request body for removing a subscription.
type UnsubscribeRequest struct {
	Area string `json:"area" validate:"required"`
}

// SendRequest defines the request body for the manual fan-out endpoint.
// Payload is a JSON string carrying the notification title and body.
type SendRequest struct {
	Area    string `json:"area" validate:"required"`
	Payload string `json:"payload" validate:"required"`
}

// PushPayload is the notification content fanned out to an area's subscribers.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
