package websocket

import (
	"sync"
)

// Registry maps authenticated users to their live connection
// ARCHITECTURAL DISCOVERY: Pure connection management without business logic
type Registry struct {
	mu     sync.RWMutex // TECHNICAL DISCOVERY: RWMutex optimizes for read-heavy lookup patterns
	byUser map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Connection)}
}

// Register makes conn the user's live connection and returns the one it
// replaced, if any. The caller owns shutting the replaced connection down.
func (r *Registry) Register(conn *Connection) (*Connection, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}
	if !conn.IsAuthenticated() {
		return nil, ErrConnectionNotAuthenticated
	}

	userID := conn.UserID()
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.byUser[userID]
	r.byUser[userID] = conn
	if prev == conn {
		return nil, nil
	}
	return prev, nil
}

// Unregister removes conn if it is still the user's live connection.
// RACE CONDITION FIX: a replaced connection never removes its successor
func (r *Registry) Unregister(conn *Connection) bool {
	if conn == nil {
		return false
	}
	userID := conn.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byUser[userID] != conn {
		return false
	}
	delete(r.byUser, userID)
	return true
}

// Get returns the user's live connection
func (r *Registry) Get(userID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byUser[userID]
	return conn, ok
}

// All returns every live connection
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.byUser))
	for _, c := range r.byUser {
		out = append(out, c)
	}
	return out
}

// Count returns the number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
