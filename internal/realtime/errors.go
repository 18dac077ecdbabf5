package realtime

import "errors"

var (
	ErrSendBufferFull   = errors.New("realtime: send buffer full")
	ErrConnectionClosed = errors.New("realtime: connection closed")
)
