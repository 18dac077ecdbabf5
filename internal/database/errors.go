package database

import "errors"

var (
	ErrClosed       = errors.New("database manager is closed")
	ErrShuttingDown = errors.New("database manager is shutting down")
	ErrWriteTimeout = errors.New("write operation timeout")
)
