package realtime

import (
	"time"

	"freshershub/internal/clock"
	"freshershub/pkg/logger"
)

// Config holds the reconnect and heartbeat policy
type Config struct {
	BaseDelay         time.Duration `mapstructure:"base_delay" json:"base_delay"`
	MaxAttempts       int           `mapstructure:"max_attempts" json:"max_attempts"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" json:"heartbeat_interval"` // zero disables the ping heartbeat
	DialTimeout       time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
}

// DefaultConfig returns five attempts starting at one second
func DefaultConfig() Config {
	return Config{
		BaseDelay:         time.Second,
		MaxAttempts:       5,
		HeartbeatInterval: 25 * time.Second,
		DialTimeout:       10 * time.Second,
	}
}

// Option customises a Session
type Option func(*Session)

// WithConfig replaces the reconnect/heartbeat policy
func WithConfig(cfg Config) Option {
	return func(s *Session) {
		def := DefaultConfig()
		if cfg.BaseDelay <= 0 {
			cfg.BaseDelay = def.BaseDelay
		}
		if cfg.MaxAttempts <= 0 {
			cfg.MaxAttempts = def.MaxAttempts
		}
		if cfg.DialTimeout <= 0 {
			cfg.DialTimeout = def.DialTimeout
		}
		if cfg.HeartbeatInterval < 0 {
			cfg.HeartbeatInterval = 0
		}
		s.cfg = cfg
	}
}

// WithScheduler injects the timer source; tests pass a clock.Virtual
func WithScheduler(sched clock.Scheduler) Option {
	return func(s *Session) { s.clock = sched }
}

// WithLogger sets the session logger
func WithLogger(log logger.Logger) Option {
	return func(s *Session) { s.log = log }
}
