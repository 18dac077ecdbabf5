package notify

import (
	"time"

	"go.uber.org/zap"

	"freshershub/pkg/logger"
)

// Kind distinguishes short-lived toasts from the single system banner
type Kind string

const (
	KindToast  Kind = "toast"
	KindBanner Kind = "banner"
)

// Status is the connection indicator shown by the surface
type Status string

const (
	StatusOffline       Status = "offline"
	StatusOnline        Status = "online"
	StatusAuthenticated Status = "authenticated"
	StatusReconnecting  Status = "reconnecting"
	StatusFailed        Status = "failed"
)

// Element is one rendered piece of ephemeral UI
type Element struct {
	ID        string
	Kind      Kind
	Severity  string
	Title     string
	Message   string
	Link      string
	CreatedAt time.Time
	// ExpiresAt is zero for elements that persist until dismissed
	ExpiresAt time.Time
}

// Renderer draws surface state. Calls arrive from whichever goroutine
// delivered the triggering event; implementations must be safe for that.
type Renderer interface {
	Show(el Element)
	Remove(id string)
	SetStatus(status Status)
	SetBadge(unread int)
}

// LogRenderer renders the surface as structured log lines, for terminal
// clients and headless deployments
type LogRenderer struct {
	log logger.Logger
}

func NewLogRenderer(log logger.Logger) *LogRenderer {
	return &LogRenderer{log: log}
}

func (r *LogRenderer) Show(el Element) {
	r.log.Info("show "+string(el.Kind),
		zap.String("id", el.ID),
		zap.String("severity", el.Severity),
		zap.String("title", el.Title),
		zap.String("message", el.Message),
	)
}

func (r *LogRenderer) Remove(id string) {
	r.log.Debug("remove element", zap.String("id", id))
}

func (r *LogRenderer) SetStatus(status Status) {
	r.log.Info("connection status", zap.String("status", string(status)))
}

func (r *LogRenderer) SetBadge(unread int) {
	r.log.Debug("unread notifications", zap.Int("unread", unread))
}
