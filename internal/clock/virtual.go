package clock

import (
	"sort"
	"sync"
	"time"
)

// Virtual is a manually advanced Scheduler. Timer callbacks run synchronously
// on the goroutine calling Advance, in deadline order.
type Virtual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[uint64]*virtualTimer
}

type virtualTimer struct {
	clock    *Virtual
	id       uint64
	deadline time.Time
	fn       func()
}

// NewVirtual creates a virtual clock starting at start
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start, timers: make(map[uint64]*virtualTimer)}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &virtualTimer{clock: v, id: v.seq, deadline: v.now.Add(d), fn: f}
	v.timers[t.id] = t
	return t
}

func (t *virtualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.timers[t.id]; !ok {
		return false
	}
	delete(t.clock.timers, t.id)
	return true
}

// Advance moves the clock forward by d, firing every timer whose deadline is
// reached. Timers created by callbacks fire too if they fall inside the window.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	for {
		v.mu.Lock()
		next := v.nextDueLocked(target)
		if next == nil {
			v.now = target
			v.mu.Unlock()
			return
		}
		delete(v.timers, next.id)
		v.now = next.deadline
		v.mu.Unlock()

		next.fn()
	}
}

func (v *Virtual) nextDueLocked(target time.Time) *virtualTimer {
	var next *virtualTimer
	for _, t := range v.timers {
		if t.deadline.After(target) {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) || (t.deadline.Equal(next.deadline) && t.id < next.id) {
			next = t
		}
	}
	return next
}

// Pending returns the number of timers that have not fired or been stopped
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.timers)
}

// PendingDelays returns the remaining delay of every pending timer, shortest first
func (v *Virtual) PendingDelays() []time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	delays := make([]time.Duration, 0, len(v.timers))
	for _, t := range v.timers {
		delays = append(delays, t.deadline.Sub(v.now))
	}
	sort.Slice(delays, func(i, j int) bool { return delays[i] < delays[j] })
	return delays
}
