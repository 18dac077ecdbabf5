// Package features holds the chat, forum, learning and wellness adapters.
// Each adapter sends envelopes through a Transport and keeps local state
// fed by bus events. None of them fail when the transport is down.
package features

import (
	"context"
	"sort"
	"sync"

	"freshershub/internal/bus"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// Transport is the slice of realtime.Session the adapters use
type Transport interface {
	SendEvent(name types.EventName, payload any, roomID string)
	Join(roomID, roomType string)
	Leave(roomID string)
	Identity() *types.Identity
	Bus() *bus.Bus
}

// HistoryFetcher loads chat history over the request/reply API
type HistoryFetcher interface {
	History(ctx context.Context, roomID string) ([]types.ChatMessage, error)
}

type adapter struct {
	t    Transport
	log  logger.Logger
	subs []bus.Subscription
}

func newAdapter(t Transport, log logger.Logger) adapter {
	if log == nil {
		log = logger.NewNop()
	}
	return adapter{t: t, log: log}
}

func (a *adapter) track(subs ...bus.Subscription) {
	a.subs = append(a.subs, subs...)
}

// Close removes the adapter's bus registrations
func (a *adapter) Close() {
	for _, sub := range a.subs {
		a.t.Bus().Off(sub)
	}
	a.subs = nil
}

// self reports whether user is the authenticated local user
func (a *adapter) self(user *types.Identity) bool {
	if user == nil {
		return false
	}
	me := a.t.Identity()
	return me != nil && me.ID == user.ID
}

// typers tracks who is typing per room or post
type typers struct {
	mu    sync.Mutex
	byKey map[string]map[string]string // key -> userID -> display name
}

func newTypers() *typers {
	return &typers{byKey: make(map[string]map[string]string)}
}

func (t *typers) start(key string, user *types.Identity) {
	if user == nil || key == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byKey[key] == nil {
		t.byKey[key] = make(map[string]string)
	}
	t.byKey[key][user.ID] = user.Name
}

func (t *typers) stop(key string, user *types.Identity) {
	if user == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byKey[key], user.ID)
	if len(t.byKey[key]) == 0 {
		delete(t.byKey, key)
	}
}

// drop clears userID under every key
func (t *typers) drop(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, users := range t.byKey {
		delete(users, userID)
		if len(users) == 0 {
			delete(t.byKey, key)
		}
	}
}

func (t *typers) names(key string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.byKey[key]))
	for _, name := range t.byKey[key] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
