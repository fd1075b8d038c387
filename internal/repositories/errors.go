package repositories

import "errors"

// Sentinel errors translated into HTTP status codes at the handler boundary.
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyLiked = errors.New("post already liked by this user")
	ErrNotLiked     = errors.New("post not liked by this user")
)
