package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"freshershub/pkg/interfaces"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// Session is one user's authenticated presence on the server
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ConnectionID string    `json:"connectionId"`
	StartedAt    time.Time `json:"startedAt"`
}

// Manager verifies tokens and tracks the live session of each user.
// A user has at most one session; opening a new one replaces the old.
type Manager struct {
	verifier interfaces.Verifier
	log      logger.Logger
	inflight singleflight.Group // reconnect storms verify the same token once
	timeout  time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session // userID -> session
}

func NewManager(verifier interfaces.Verifier, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		verifier: verifier,
		log:      log,
		timeout:  10 * time.Second,
		sessions: make(map[string]*Session),
	}
}

// Authenticate resolves token to an identity through the verifier
func (m *Manager) Authenticate(ctx context.Context, token string) (*types.Identity, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	// TECHNICAL DISCOVERY: the flight outlives any one caller, so it runs
	// detached from ctx with its own timeout; each caller still stops waiting
	// when its own ctx ends
	ch := m.inflight.DoChan(token, func() (any, error) {
		vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		return m.verifier.Verify(vctx, token)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	identity, _ := res.Val.(*types.Identity)
	if identity == nil {
		return nil, ErrInvalidProfile
	}
	if err := types.Validate(identity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	// callers sharing a flight must not share the pointer
	cp := *identity
	cp.Courses = append([]string(nil), identity.Courses...)
	return &cp, nil
}

// Open records connID as the user's live connection
func (m *Manager) Open(userID, connID string) {
	s := &Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		ConnectionID: connID,
		StartedAt:    time.Now().UTC(),
	}

	m.mu.Lock()
	prev := m.sessions[userID]
	m.sessions[userID] = s
	m.mu.Unlock()

	if prev != nil {
		m.log.Info("session replaced", zap.String("user", userID), zap.String("old_conn", prev.ConnectionID))
	}
	m.log.Debug("session opened", zap.String("user", userID), zap.String("session", s.ID))
}

// Close ends the user's session if connID still owns it
func (m *Manager) Close(userID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok && s.ConnectionID == connID {
		delete(m.sessions, userID)
		m.log.Debug("session closed", zap.String("user", userID), zap.String("session", s.ID))
	}
}

// Get returns a copy of the user's session
func (m *Manager) Get(userID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns all sessions ordered by user id
func (m *Manager) List() []Session {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
