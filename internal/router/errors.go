package router

import "errors"

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrNotInRoom         = errors.New("sender is not a member of the room")
	ErrUnsupportedEvent  = errors.New("event not handled by router")
	ErrPersistFailed     = errors.New("failed to persist message")
)
