package realtime

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"freshershub/pkg/interfaces"
	"freshershub/pkg/types"
)

// authenticate sends the cached token once the transport is open.
// Without a token the session stays connected and unauthenticated.
func (s *Session) authenticate(gen uint64) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
	defer cancel()

	token, err := s.store.Token(ctx)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			s.log.Warn("credential store read failed", zap.Error(err))
		}
		return
	}
	if token == "" {
		return
	}

	s.mu.Lock()
	if gen != s.gen || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateAuthenticating
	s.mu.Unlock()

	s.SendEvent(types.EventAuthenticate, &types.AuthenticatePayload{Token: token}, "")
}

// handleFrame decodes one inbound frame and fans it out on the bus.
// Malformed frames and names outside the inbound set are dropped.
func (s *Session) handleFrame(gen uint64, frame []byte) {
	s.mu.Lock()
	current := gen == s.gen && s.state.IsOpen()
	s.mu.Unlock()
	if !current {
		return
	}

	env, err := types.DecodeEnvelope(frame)
	if err != nil {
		s.log.Warn("dropping malformed frame", zap.Error(err))
		return
	}
	if !types.IsInbound(env.Event) {
		s.log.Debug("ignoring unknown event", zap.String("event", string(env.Event)))
		return
	}
	payload, err := env.DecodePayload()
	if err != nil {
		s.log.Warn("dropping undecodable payload", zap.String("event", string(env.Event)), zap.Error(err))
		return
	}

	switch p := payload.(type) {
	case *types.Authenticated:
		s.onAuthenticated(gen, p)
	case *types.AuthError:
		s.onAuthError(gen, p)
	case *types.ForceDisconnect:
		s.onForceDisconnect(p)
	case *types.JoinedRoom:
		if !s.rooms.confirm(p.RoomID) {
			s.log.Debug("unsolicited joined-room", zap.String("room", p.RoomID))
			return
		}
		s.events.Emit(env.Event, p)
	default:
		s.events.Emit(env.Event, payload)
	}
}

func (s *Session) onAuthenticated(gen uint64, p *types.Authenticated) {
	s.mu.Lock()
	if gen != s.gen || !s.state.IsOpen() {
		s.mu.Unlock()
		return
	}
	user := p.User
	s.identity = &user
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.log.Info("authenticated", zap.String("user", user.ID))
	s.events.Emit(types.EventAuthenticated, p)
}

// onAuthError leaves the transport up; callers decide whether to retry
func (s *Session) onAuthError(gen uint64, p *types.AuthError) {
	s.mu.Lock()
	if gen != s.gen || !s.state.IsOpen() {
		s.mu.Unlock()
		return
	}
	s.identity = nil
	s.state = StateConnected
	s.mu.Unlock()

	s.log.Warn("authentication rejected", zap.String("message", p.Message))
	s.events.Emit(types.EventAuthError, p)
}

// onForceDisconnect treats the server's signal as authoritative: no
// automatic reconnect follows.
func (s *Session) onForceDisconnect(p *types.ForceDisconnect) {
	s.log.Warn("forced disconnect", zap.String("reason", p.Reason))
	s.events.Emit(types.EventForceDisconnect, p)

	reason := p.Reason
	if reason == "" {
		reason = "force disconnect"
	}
	s.teardown(reason)
}

// Reauthenticate re-runs the handshake on an open connection, e.g. after
// the credential store has been updated following an auth-error.
func (s *Session) Reauthenticate() {
	s.mu.Lock()
	gen := s.gen
	ok := s.state == StateConnected
	s.mu.Unlock()
	if ok {
		s.authenticate(gen)
	}
}
