package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshershub/internal/bus"
	"freshershub/internal/clock"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

type fakeRenderer struct {
	mu       sync.Mutex
	shown    []Element
	removed  []string
	statuses []Status
	badge    int
}

func (r *fakeRenderer) Show(el Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, el)
}

func (r *fakeRenderer) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

func (r *fakeRenderer) SetStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *fakeRenderer) SetBadge(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.badge = n
}

func (r *fakeRenderer) removedCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.removed {
		if got == id {
			n++
		}
	}
	return n
}

func newTestSurface(t *testing.T) (*Surface, *fakeRenderer, *clock.Virtual, *bus.Bus) {
	t.Helper()
	b := bus.New(logger.NewNop())
	r := &fakeRenderer{}
	v := clock.NewVirtual(time.Date(2026, 9, 21, 9, 0, 0, 0, time.UTC))
	s := NewSurface(b, r, WithScheduler(v))
	s.Attach()
	return s, r, v, b
}

func TestSurface_ToastExpires(t *testing.T) {
	s, r, v, _ := newTestSurface(t)

	id := s.Toast(types.SeverityInfo, "Hello", "welcome", "")
	require.Len(t, s.Active(), 1)

	v.Advance(4999 * time.Millisecond)
	assert.Len(t, s.Active(), 1)

	v.Advance(time.Millisecond)
	assert.Empty(t, s.Active())
	assert.Equal(t, 1, r.removedCount(id))
}

func TestSurface_DismissCancelsExpiry(t *testing.T) {
	s, r, v, _ := newTestSurface(t)

	id := s.Toast(types.SeverityInfo, "t", "m", "")
	s.Dismiss(id)
	assert.Zero(t, v.Pending(), "dismissal stops the expiry timer")

	v.Advance(time.Minute)
	assert.Equal(t, 1, r.removedCount(id), "removed exactly once")

	s.Dismiss(id)
	s.Dismiss("unknown")
	assert.Equal(t, 1, r.removedCount(id))
}

func TestSurface_BannerLifetimes(t *testing.T) {
	tests := []struct {
		severity string
		expires  bool
	}{
		{types.SeverityInfo, true},
		{types.SeveritySuccess, true},
		{"", true},
		{types.SeverityWarning, false},
		{types.SeverityError, false},
	}
	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			s, _, v, _ := newTestSurface(t)
			s.Banner(tt.severity, "maintenance tonight")

			v.Advance(10 * time.Second)
			_, visible := s.CurrentBanner()
			assert.Equal(t, !tt.expires, visible)
		})
	}
}

func TestSurface_SingleBanner(t *testing.T) {
	s, r, v, _ := newTestSurface(t)

	first := s.Banner(types.SeverityInfo, "one")
	second := s.Banner(types.SeverityWarning, "two")

	cur, ok := s.CurrentBanner()
	require.True(t, ok)
	assert.Equal(t, second, cur.ID)
	assert.Equal(t, 1, r.removedCount(first))
	assert.Len(t, s.Active(), 1)

	// the replaced banner's timer must not fire into the new one
	v.Advance(time.Minute)
	cur, ok = s.CurrentBanner()
	require.True(t, ok)
	assert.Equal(t, second, cur.ID)
	assert.Equal(t, 1, r.removedCount(first))
}

func TestSurface_SystemMessageEvent(t *testing.T) {
	s, _, _, b := newTestSurface(t)

	b.Emit(types.EventSystemMessage, &types.SystemMessage{Type: types.SeverityWarning, Message: "slow down"})

	cur, ok := s.CurrentBanner()
	require.True(t, ok)
	assert.Equal(t, "slow down", cur.Message)
	assert.Equal(t, types.SeverityWarning, cur.Severity)
	assert.True(t, cur.ExpiresAt.IsZero())
}

func TestSurface_UnreadBadge(t *testing.T) {
	s, r, _, b := newTestSurface(t)

	b.Emit(types.EventNotification, &types.Notification{ID: "n1", Title: "Reply"})
	b.Emit(types.EventNotification, &types.Notification{ID: "n2", Title: "Like"})
	assert.Equal(t, 2, s.Unread())
	assert.Len(t, s.Active(), 2)

	b.Emit(types.EventNotificationRead, &types.NotificationRead{ID: "n1"})
	assert.Equal(t, 1, s.Unread())

	b.Emit(types.EventAllNotificationsRead, &types.AllNotificationsRead{})
	assert.Equal(t, 0, s.Unread())
	assert.Equal(t, 0, r.badge)

	b.Emit(types.EventNotificationRead, &types.NotificationRead{ID: "n9"})
	assert.Equal(t, 0, s.Unread(), "never negative")
}

func TestSurface_ConnectionStatus(t *testing.T) {
	s, r, _, b := newTestSurface(t)
	assert.Equal(t, StatusOffline, s.Status())

	b.Emit(types.EventConnectionEstablished, &types.ConnectionEstablished{SessionID: "s1"})
	b.Emit(types.EventAuthenticated, &types.Authenticated{})
	assert.Equal(t, StatusAuthenticated, s.Status())

	b.Emit(types.EventConnectionLost, &types.ConnectionLost{Reason: "reset", Reconnecting: true})
	assert.Equal(t, StatusReconnecting, s.Status())

	b.Emit(types.EventConnectionFailed, &types.ConnectionFailed{Attempts: 5})
	assert.Equal(t, StatusFailed, s.Status())
	cur, ok := s.CurrentBanner()
	require.True(t, ok)
	assert.Equal(t, types.SeverityError, cur.Severity)

	assert.Equal(t, []Status{StatusOnline, StatusAuthenticated, StatusReconnecting, StatusFailed}, r.statuses)
}

func TestSurface_ForcedDisconnectIsOffline(t *testing.T) {
	s, r, v, b := newTestSurface(t)
	b.Emit(types.EventConnectionEstablished, &types.ConnectionEstablished{SessionID: "s1"})
	b.Emit(types.EventAuthenticated, &types.Authenticated{})

	b.Emit(types.EventForceDisconnect, &types.ForceDisconnect{Reason: "duplicate session"})
	b.Emit(types.EventConnectionLost, &types.ConnectionLost{Reason: "duplicate session"})

	assert.Equal(t, StatusOffline, s.Status())
	assert.NotContains(t, r.statuses, StatusReconnecting)
	v.Advance(time.Minute)
	cur, ok := s.CurrentBanner()
	require.True(t, ok, "error banners persist")
	assert.Contains(t, cur.Message, "duplicate session")
}

func TestSurface_ErrorBanners(t *testing.T) {
	s, _, _, b := newTestSurface(t)

	b.Emit(types.EventAuthError, &types.AuthError{Message: "expired"})
	cur, _ := s.CurrentBanner()
	assert.Contains(t, cur.Message, "expired")

	b.Emit(types.EventForceDisconnect, &types.ForceDisconnect{Reason: "duplicate session"})
	cur, _ = s.CurrentBanner()
	assert.Contains(t, cur.Message, "duplicate session")
	assert.Len(t, s.Active(), 1)
}

func TestSurface_Detach(t *testing.T) {
	s, _, v, b := newTestSurface(t)
	s.Toast(types.SeverityInfo, "t", "m", "")
	s.Detach()

	assert.Empty(t, s.Active())
	assert.Zero(t, v.Pending())
	assert.Zero(t, b.HandlerCount(types.EventNotification))

	b.Emit(types.EventNotification, &types.Notification{ID: "n1"})
	assert.Empty(t, s.Active())
}
