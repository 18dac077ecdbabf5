// Package clock abstracts timers so reconnect backoff, heartbeats and
// notification expiry can be driven by a virtual clock in tests.
package clock

import "time"

// Timer is a pending callback that can be cancelled
type Timer interface {
	// Stop cancels the timer. It reports false if the timer already fired or was stopped.
	Stop() bool
}

// Scheduler creates timers and reports the current time
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

// Real returns a Scheduler backed by the time package
func Real() Scheduler { return realScheduler{} }

func (realScheduler) Now() time.Time { return time.Now() }

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
