package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"freshershub/internal/bus"
	"freshershub/internal/clock"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// Config sets element lifetimes
type Config struct {
	ToastTTL  time.Duration `mapstructure:"toast_ttl" json:"toast_ttl"`
	BannerTTL time.Duration `mapstructure:"banner_ttl" json:"banner_ttl"`
}

// DefaultConfig returns 5s toasts and 10s informational banners
func DefaultConfig() Config {
	return Config{ToastTTL: 5 * time.Second, BannerTTL: 10 * time.Second}
}

type entry struct {
	el    Element
	timer clock.Timer
}

// Surface turns bus events into toasts, a single system banner, an unread
// badge and a connection indicator.
// ARCHITECTURAL DISCOVERY: every removal goes through the entry maps, so an
// expiry racing a manual dismissal removes the element once
type Surface struct {
	cfg      Config
	events   *bus.Bus
	renderer Renderer
	clock    clock.Scheduler
	log      logger.Logger

	mu     sync.Mutex
	toasts map[string]*entry
	banner *entry
	unread int
	status Status
	subs   []bus.Subscription
}

// Option customises a Surface
type Option func(*Surface)

func WithConfig(cfg Config) Option {
	return func(s *Surface) {
		if cfg.ToastTTL > 0 {
			s.cfg.ToastTTL = cfg.ToastTTL
		}
		if cfg.BannerTTL > 0 {
			s.cfg.BannerTTL = cfg.BannerTTL
		}
	}
}

func WithScheduler(sched clock.Scheduler) Option {
	return func(s *Surface) { s.clock = sched }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Surface) { s.log = log }
}

// NewSurface creates a surface rendering to r. Call Attach to start
// consuming events.
func NewSurface(events *bus.Bus, r Renderer, opts ...Option) *Surface {
	s := &Surface{
		cfg:      DefaultConfig(),
		events:   events,
		renderer: r,
		clock:    clock.Real(),
		log:      logger.NewNop(),
		toasts:   make(map[string]*entry),
		status:   StatusOffline,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = NewLogRenderer(s.log)
	}
	return s
}

// Attach subscribes the surface to the bus. Calling it twice is a no-op.
func (s *Surface) Attach() {
	s.mu.Lock()
	attached := len(s.subs) > 0
	s.mu.Unlock()
	if attached {
		return
	}

	subs := []bus.Subscription{
		bus.Subscribe(s.events, types.EventNotification, func(n *types.Notification) {
			s.addUnread(1)
			s.Toast(types.SeverityInfo, n.Title, n.Message, n.Link)
		}),
		bus.Subscribe(s.events, types.EventNotificationRead, func(*types.NotificationRead) {
			s.addUnread(-1)
		}),
		bus.Subscribe(s.events, types.EventAllNotificationsRead, func(*types.AllNotificationsRead) {
			s.setUnread(0)
		}),
		bus.Subscribe(s.events, types.EventSystemMessage, func(m *types.SystemMessage) {
			s.Banner(m.Type, m.Message)
		}),
		bus.Subscribe(s.events, types.EventGoalAchievement, func(g *types.GoalAchievement) {
			s.Toast(types.SeveritySuccess, g.Goal, g.Message, "")
		}),
		bus.Subscribe(s.events, types.EventAuthError, func(e *types.AuthError) {
			s.Banner(types.SeverityError, "Authentication failed: "+e.Message)
		}),
		bus.Subscribe(s.events, types.EventForceDisconnect, func(e *types.ForceDisconnect) {
			s.Banner(types.SeverityError, "Disconnected by server: "+e.Reason)
		}),
		s.events.On(types.EventConnectionEstablished, func(any) { s.setStatus(StatusOnline) }),
		s.events.On(types.EventAuthenticated, func(any) { s.setStatus(StatusAuthenticated) }),
		bus.Subscribe(s.events, types.EventConnectionLost, func(l *types.ConnectionLost) {
			if l.Reconnecting {
				s.setStatus(StatusReconnecting)
				return
			}
			s.setStatus(StatusOffline)
		}),
		bus.Subscribe(s.events, types.EventConnectionFailed, func(*types.ConnectionFailed) {
			s.setStatus(StatusFailed)
			s.Banner(types.SeverityError, "Unable to reach the server. Reconnect manually to try again.")
		}),
	}

	s.mu.Lock()
	s.subs = subs
	s.mu.Unlock()
}

// Detach removes the surface's bus subscriptions and clears everything shown
func (s *Surface) Detach() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		s.events.Off(sub)
	}
	s.Clear()
}

// Toast shows a transient element that expires after ToastTTL
func (s *Surface) Toast(severity, title, message, link string) string {
	el := s.newElement(KindToast, severity, title, message, link)
	el.ExpiresAt = el.CreatedAt.Add(s.cfg.ToastTTL)
	e := &entry{el: el}

	s.mu.Lock()
	s.toasts[el.ID] = e
	e.timer = s.clock.AfterFunc(s.cfg.ToastTTL, func() { s.expire(el.ID) })
	s.mu.Unlock()

	s.renderer.Show(el)
	return el.ID
}

// Banner replaces the current system banner. Informational banners expire
// after BannerTTL; warning and error banners persist until dismissed.
func (s *Surface) Banner(severity, message string) string {
	if severity == "" {
		severity = types.SeverityInfo
	}
	el := s.newElement(KindBanner, severity, "", message, "")
	persistent := severity == types.SeverityWarning || severity == types.SeverityError
	if !persistent {
		el.ExpiresAt = el.CreatedAt.Add(s.cfg.BannerTTL)
	}
	e := &entry{el: el}

	s.mu.Lock()
	prev := s.banner
	if prev != nil && prev.timer != nil {
		prev.timer.Stop()
	}
	s.banner = e
	if !persistent {
		e.timer = s.clock.AfterFunc(s.cfg.BannerTTL, func() { s.expire(el.ID) })
	}
	s.mu.Unlock()

	if prev != nil {
		s.renderer.Remove(prev.el.ID)
	}
	s.renderer.Show(el)
	return el.ID
}

// Dismiss removes an element before it expires. Unknown ids are ignored.
func (s *Surface) Dismiss(id string) {
	if s.take(id) {
		s.renderer.Remove(id)
	}
}

func (s *Surface) expire(id string) {
	if s.take(id) {
		s.log.Debug("element expired", zap.String("id", id))
		s.renderer.Remove(id)
	}
}

// take unregisters id and stops its timer; it reports whether id was shown
func (s *Surface) take(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.toasts[id]; ok {
		delete(s.toasts, id)
		e.timer.Stop()
		return true
	}
	if s.banner != nil && s.banner.el.ID == id {
		if s.banner.timer != nil {
			s.banner.timer.Stop()
		}
		s.banner = nil
		return true
	}
	return false
}

// Clear removes every element
func (s *Surface) Clear() {
	for _, el := range s.Active() {
		s.Dismiss(el.ID)
	}
}

// Active returns the visible elements, oldest first
func (s *Surface) Active() []Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Element, 0, len(s.toasts)+1)
	for _, e := range s.toasts {
		out = append(out, e.el)
	}
	if s.banner != nil {
		out = append(out, s.banner.el)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CurrentBanner returns the visible banner, if any
func (s *Surface) CurrentBanner() (Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.banner == nil {
		return Element{}, false
	}
	return s.banner.el, true
}

func (s *Surface) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *Surface) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Surface) addUnread(delta int) {
	s.mu.Lock()
	s.unread += delta
	if s.unread < 0 {
		s.unread = 0
	}
	n := s.unread
	s.mu.Unlock()
	s.renderer.SetBadge(n)
}

func (s *Surface) setUnread(n int) {
	s.mu.Lock()
	s.unread = n
	s.mu.Unlock()
	s.renderer.SetBadge(n)
}

func (s *Surface) setStatus(status Status) {
	s.mu.Lock()
	changed := s.status != status
	s.status = status
	s.mu.Unlock()
	if changed {
		s.renderer.SetStatus(status)
	}
}

func (s *Surface) newElement(kind Kind, severity, title, message, link string) Element {
	if severity == "" {
		severity = types.SeverityInfo
	}
	return Element{
		ID:        uuid.NewString(),
		Kind:      kind,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Link:      link,
		CreatedAt: s.clock.Now(),
	}
}
