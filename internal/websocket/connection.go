package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"freshershub/pkg/types"
)

// Connection is one client socket on the server
// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized to prevent race conditions
type Connection struct {
	id           string
	conn         *websocket.Conn
	writeCh      chan []byte // nil frame = flush then close
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
	mu           sync.RWMutex
	identity     *types.Identity
}

// NewConnection wraps conn and starts its writer
func NewConnection(conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           uuid.New().String(),
		conn:         conn,
		writeCh:      make(chan []byte, 100), // FUNCTIONAL DISCOVERY: 100 buffer absorbs room broadcast bursts
		writeTimeout: 5 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()
	return c
}

// ARCHITECTURAL DISCOVERY: Single writer goroutine pattern eliminates races
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if data == nil {
				_ = c.Close()
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues an encoded frame
func (c *Connection) Send(frame []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- frame:
		return nil
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// SendEvent encodes and queues an envelope
func (c *Connection) SendEvent(name types.EventName, payload any, roomID string) error {
	env, err := types.NewEnvelope(name, payload, roomID)
	if err != nil {
		return ErrInvalidJSON
	}
	frame, err := env.Encode()
	if err != nil {
		return ErrInvalidJSON
	}
	return c.Send(frame)
}

// SendAndClose queues a final envelope and closes once it has been written
func (c *Connection) SendAndClose(name types.EventName, payload any) error {
	if err := c.SendEvent(name, payload, ""); err != nil {
		_ = c.Close()
		return err
	}
	return c.Send(nil)
}

// Close cancels the writer and closes the socket
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done is closed once the connection has been closed
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// ID returns the server-assigned connection id
func (c *Connection) ID() string { return c.id }

// SetIdentity marks the connection authenticated
func (c *Connection) SetIdentity(identity *types.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity != nil
}

// Identity returns the authenticated user, or nil
func (c *Connection) Identity() *types.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return ""
	}
	return c.identity.ID
}
