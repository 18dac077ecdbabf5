package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"freshershub/internal/bus"
	"freshershub/internal/clock"
	"freshershub/pkg/interfaces"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// Session owns one realtime connection: its lifecycle, the authentication
// handshake and the room membership set. Feature adapters share a Session
// and subscribe through its Bus.
// ARCHITECTURAL DISCOVERY: Identity and the room set are mutated only here;
// bus registrations survive Disconnect/Connect cycles
type Session struct {
	id     string
	cfg    Config
	dialer interfaces.Dialer
	store  interfaces.CredentialStore
	events *bus.Bus
	clock  clock.Scheduler
	log    logger.Logger
	rooms  *Rooms

	mu             sync.Mutex
	state          State
	conn           interfaces.Conn
	gen            uint64 // bumped per dial and on Disconnect; stale callbacks are dropped
	identity       *types.Identity
	attempts       int
	manualClose    bool
	reconnectTimer clock.Timer
	heartbeatTimer clock.Timer
}

// NewSession creates a disconnected session. store may be nil, in which
// case the handshake is skipped and the session stays unauthenticated.
func NewSession(dialer interfaces.Dialer, store interfaces.CredentialStore, events *bus.Bus, opts ...Option) *Session {
	s := &Session{
		id:     uuid.New().String(),
		cfg:    DefaultConfig(),
		dialer: dialer,
		store:  store,
		events: events,
		clock:  clock.Real(),
		log:    logger.NewNop(),
		rooms:  newRooms(),
		state:  StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = bus.New(s.log)
	}
	s.log = s.log.With(zap.String("session", s.id))
	return s
}

// ID returns the session's local identifier
func (s *Session) ID() string { return s.id }

// Bus returns the dispatch bus every inbound event is emitted on
func (s *Session) Bus() *bus.Bus { return s.events }

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether outbound envelopes currently reach the transport
func (s *Session) IsConnected() bool {
	return s.State().IsOpen()
}

// IsAuthenticated reports whether the handshake has completed
func (s *Session) IsAuthenticated() bool {
	return s.State() == StateAuthenticated
}

// Identity returns a copy of the authenticated user, or nil
func (s *Session) Identity() *types.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	id.Courses = append([]string(nil), s.identity.Courses...)
	return &id
}

// Attempts returns the number of reconnect attempts since the last success
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Connect establishes the transport. It is a no-op while a dial is in
// flight or the transport is open. From backoff or failed it dials
// immediately and, from failed, starts a fresh attempt budget.
// Failures never surface as errors; they drive the reconnect state machine.
func (s *Session) Connect(ctx context.Context) {
	s.mu.Lock()
	if s.state.isActive() {
		s.mu.Unlock()
		return
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.state == StateFailed || s.state == StateDisconnected {
		s.attempts = 0
	}
	s.manualClose = false
	gen := s.beginDialLocked()
	s.mu.Unlock()

	s.dial(ctx, gen)
}

func (s *Session) beginDialLocked() uint64 {
	s.gen++
	s.state = StateConnecting
	return s.gen
}

func (s *Session) dial(ctx context.Context, gen uint64) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	s.log.Debug("dialing", zap.Uint64("gen", gen))
	if _, err := s.dialer.Dial(ctx, &connHandler{s: s, gen: gen}); err != nil {
		s.onConnectError(gen, err)
	}
}

// Disconnect tears down the transport and clears Identity and room
// membership. Bus registrations are kept.
func (s *Session) Disconnect() {
	s.teardown("client disconnect")
}

// teardown ends the session without scheduling a reconnect. connection-lost
// is emitted only if the transport was open.
func (s *Session) teardown(reason string) {
	s.mu.Lock()
	s.manualClose = true
	s.stopTimersLocked()
	conn := s.conn
	wasOpen := s.state.IsOpen()
	s.resetSessionLocked()
	s.gen++
	s.state = StateDisconnected
	s.attempts = 0
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.log.Debug("close failed", zap.Error(err))
		}
	}
	if wasOpen {
		s.log.Info("disconnected", zap.String("reason", reason))
		s.events.Emit(types.EventConnectionLost, &types.ConnectionLost{Reason: reason, Reconnecting: false})
	}
}

func (s *Session) stopTimersLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
		s.heartbeatTimer = nil
	}
}

// Send writes an envelope if the transport is open. Otherwise, and on
// any encode or write failure, the envelope is dropped silently.
func (s *Session) Send(env *types.Envelope) {
	if env == nil {
		return
	}
	s.mu.Lock()
	conn := s.conn
	open := s.state.IsOpen()
	s.mu.Unlock()

	if !open || conn == nil {
		return
	}
	frame, err := env.Encode()
	if err != nil {
		s.log.Warn("dropping unencodable envelope", zap.String("event", string(env.Event)), zap.Error(err))
		return
	}
	if err := conn.Send(frame); err != nil {
		s.log.Debug("send failed", zap.String("event", string(env.Event)), zap.Error(err))
	}
}

// SendEvent builds an outbound envelope and sends it. Names outside the
// outbound set are dropped.
func (s *Session) SendEvent(name types.EventName, payload any, roomID string) {
	if !types.IsOutbound(name) {
		s.log.Warn("refusing to send non-outbound event", zap.String("event", string(name)))
		return
	}
	env, err := types.NewEnvelope(name, payload, roomID)
	if err != nil {
		s.log.Warn("dropping envelope", zap.String("event", string(name)), zap.Error(err))
		return
	}
	s.Send(env)
}

// onOpen runs inside Dial before the transport starts reading
func (s *Session) onOpen(gen uint64, conn interfaces.Conn) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateConnecting {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.state = StateConnected
	s.attempts = 0
	s.scheduleHeartbeatLocked(gen)
	s.mu.Unlock()

	s.log.Info("connection established")
	s.events.Emit(types.EventConnectionEstablished, &types.ConnectionEstablished{SessionID: s.id})
	s.authenticate(gen)
}

// onConnectError handles a failed dial
func (s *Session) onConnectError(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.log.Warn("connect failed", zap.Error(err))
	s.scheduleReconnect(gen)
}

// onClose handles the transport dropping underneath us
func (s *Session) onClose(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen || !s.state.IsOpen() {
		s.mu.Unlock()
		return
	}
	s.resetSessionLocked()
	s.state = StateBackoff
	s.mu.Unlock()

	reason := "transport closed"
	if err != nil {
		reason = err.Error()
	}
	s.log.Warn("connection lost", zap.String("reason", reason))
	s.events.Emit(types.EventConnectionLost, &types.ConnectionLost{Reason: reason, Reconnecting: true})
	s.scheduleReconnect(gen)
}

// resetSessionLocked drops everything scoped to one transport session
func (s *Session) resetSessionLocked() {
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
		s.heartbeatTimer = nil
	}
	s.conn = nil
	s.identity = nil
	s.rooms.clear()
}

func (s *Session) scheduleHeartbeatLocked(gen uint64) {
	if s.cfg.HeartbeatInterval <= 0 {
		return
	}
	s.heartbeatTimer = s.clock.AfterFunc(s.cfg.HeartbeatInterval, func() {
		s.mu.Lock()
		if gen != s.gen || !s.state.IsOpen() {
			s.mu.Unlock()
			return
		}
		s.scheduleHeartbeatLocked(gen)
		s.mu.Unlock()
		s.SendEvent(types.EventPing, nil, "")
	})
}

// connHandler binds transport callbacks to one dial generation
type connHandler struct {
	s   *Session
	gen uint64
}

func (h *connHandler) OnOpen(conn interfaces.Conn) { h.s.onOpen(h.gen, conn) }
func (h *connHandler) OnFrame(frame []byte)        { h.s.handleFrame(h.gen, frame) }
func (h *connHandler) OnClose(err error)           { h.s.onClose(h.gen, err) }
