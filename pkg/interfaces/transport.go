package interfaces

import "context"

// Conn is one open realtime transport connection as seen by the client session.
// Send must be safe for concurrent use.
type Conn interface {
	Send(frame []byte) error
	Close() error
}

// FrameHandler receives transport callbacks for one Conn.
// ARCHITECTURAL DISCOVERY: ordering is OnOpen, then any number of OnFrame,
// then exactly one OnClose. OnOpen runs before Dial returns.
type FrameHandler interface {
	OnOpen(conn Conn)
	OnFrame(frame []byte)
	OnClose(err error)
}

// Dialer opens transport connections
type Dialer interface {
	Dial(ctx context.Context, handler FrameHandler) (Conn, error)
}
