package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNotFound     = errors.New("not found")
)
