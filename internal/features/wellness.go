package features

import (
	"fmt"
	"sync"

	"freshershub/internal/bus"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// Wellness submits check-ins and keeps the server's acknowledgements
type Wellness struct {
	adapter

	mu       sync.RWMutex
	checkins []types.WellnessCheckin
}

func NewWellness(t Transport, log logger.Logger) *Wellness {
	w := &Wellness{adapter: newAdapter(t, log)}
	w.track(bus.Subscribe(t.Bus(), types.EventWellnessCheckin, func(c *types.WellnessCheckin) {
		w.mu.Lock()
		w.checkins = append(w.checkins, *c)
		w.mu.Unlock()
	}))
	return w
}

// CheckIn records a mood (1-5) with an optional note
func (w *Wellness) CheckIn(kind string, mood int, message string) error {
	c := &types.WellnessCheckin{Type: kind, Mood: mood, Message: message}
	if err := types.Validate(c); err != nil {
		return fmt.Errorf("wellness check-in: %w", err)
	}
	w.t.SendEvent(types.EventWellnessCheckin, c, "")
	return nil
}

// Checkins returns acknowledged check-ins, oldest first
func (w *Wellness) Checkins() []types.WellnessCheckin {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]types.WellnessCheckin(nil), w.checkins...)
}
