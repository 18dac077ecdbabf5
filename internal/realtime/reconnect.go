package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"freshershub/pkg/types"
)

// scheduleReconnect arms the next dial after an exponential delay, or gives
// up once MaxAttempts reconnects have failed since the last success.
// The delay for attempt n (1-based) is BaseDelay * 2^(n-1).
func (s *Session) scheduleReconnect(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.manualClose {
		s.mu.Unlock()
		return
	}
	if s.attempts >= s.cfg.MaxAttempts {
		s.state = StateFailed
		attempts := s.attempts
		s.mu.Unlock()

		s.log.Error("giving up on reconnect", zap.Int("attempts", attempts))
		s.events.Emit(types.EventConnectionFailed, &types.ConnectionFailed{Attempts: attempts})
		return
	}

	s.attempts++
	delay := backoffDelay(s.cfg.BaseDelay, s.attempts)
	s.state = StateBackoff
	s.reconnectTimer = s.clock.AfterFunc(delay, func() { s.retry(gen) })
	attempt := s.attempts
	s.mu.Unlock()

	s.log.Info("reconnect scheduled", zap.Int("attempt", attempt), zap.Duration("delay", delay))
}

func (s *Session) retry(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateBackoff {
		s.mu.Unlock()
		return
	}
	s.reconnectTimer = nil
	next := s.beginDialLocked()
	s.mu.Unlock()

	s.dial(context.Background(), next)
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}
