package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// Sessions authenticates tokens and tracks which connection carries each
// user's session
type Sessions interface {
	Authenticate(ctx context.Context, token string) (*types.Identity, error)
	Open(userID, connID string)
	Close(userID, connID string)
}

// Dispatcher receives authenticated traffic; the hub implements it
type Dispatcher interface {
	Connected(c *Connection)
	Disconnected(c *Connection)
	Dispatch(c *Connection, env *types.Envelope)
}

// Config tunes the socket heartbeat and limits
type Config struct {
	PingInterval   time.Duration `mapstructure:"ping_interval" json:"ping_interval"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	BufferSize     int           `mapstructure:"buffer_size" json:"buffer_size"`
	MaxMessageSize int64         `mapstructure:"max_message_size" json:"max_message_size"`
}

// DefaultConfig returns a 30s ping, 60s read deadline and 64KB messages
func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   5 * time.Second,
		BufferSize:     1024,
		MaxMessageSize: 64 * 1024,
	}
}

// Handler upgrades /ws requests and runs the authenticate-first protocol
type Handler struct {
	registry *Registry
	sessions Sessions
	dispatch Dispatcher
	upgrader websocket.Upgrader
	cfg      Config
	log      logger.Logger
}

func NewHandler(registry *Registry, sessions Sessions, dispatch Dispatcher, cfg Config, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		registry: registry,
		sessions: sessions,
		dispatch: dispatch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   cfg.BufferSize,
			WriteBufferSize:  cfg.BufferSize,
			HandshakeTimeout: 10 * time.Second,
			// FUNCTIONAL DISCOVERY: origin checks live in the fronting proxy
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg: cfg,
		log: log,
	}
}

// ServeHTTP upgrades the request. Authentication happens over the socket:
// the first meaningful message must be authenticate.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := NewConnection(ws)
	if h.cfg.WriteTimeout > 0 {
		conn.writeTimeout = h.cfg.WriteTimeout
	}
	h.log.Debug("connection opened", zap.String("conn", conn.ID()), zap.String("remote", r.RemoteAddr))

	go h.handleConnection(conn)
}

// handleConnection owns the read side and heartbeat of one socket
func (h *Handler) handleConnection(conn *Connection) {
	defer h.cleanup(conn)

	if h.cfg.MaxMessageSize > 0 {
		conn.conn.SetReadLimit(h.cfg.MaxMessageSize)
	}
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	if h.cfg.PingInterval > 0 {
		go h.pingLoop(conn)
	}

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket read error", zap.String("conn", conn.ID()), zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.handleFrame(conn, data)
	}
}

func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}

func (h *Handler) handleFrame(conn *Connection, data []byte) {
	env, err := types.DecodeEnvelope(data)
	if err != nil {
		h.log.Debug("dropping malformed frame", zap.String("conn", conn.ID()), zap.Error(err))
		return
	}
	if !types.IsOutbound(env.Event) {
		h.log.Debug("ignoring unknown client event", zap.String("event", string(env.Event)))
		return
	}

	switch {
	case env.Event == types.EventAuthenticate:
		h.authenticate(conn, env)
	case conn.IsAuthenticated():
		h.dispatch.Dispatch(conn, env)
	case env.Event == types.EventPing:
		_ = conn.SendEvent(types.EventPong, &types.Pong{Timestamp: time.Now().UTC()}, "")
	default:
		_ = conn.SendEvent(types.EventAuthError, &types.AuthError{Message: "authenticate first"}, "")
	}
}

// authenticate verifies the token; failures leave the socket open so the
// client can retry
func (h *Handler) authenticate(conn *Connection, env *types.Envelope) {
	if id := conn.Identity(); id != nil {
		_ = conn.SendEvent(types.EventAuthenticated, &types.Authenticated{User: *id}, "")
		return
	}

	payload, err := env.DecodePayload()
	if err != nil {
		_ = conn.SendEvent(types.EventAuthError, &types.AuthError{Message: "malformed authenticate payload"}, "")
		return
	}
	req := payload.(*types.AuthenticatePayload)

	ctx, cancel := context.WithTimeout(conn.ctx, 10*time.Second)
	defer cancel()
	identity, err := h.sessions.Authenticate(ctx, req.Token)
	if err != nil {
		h.log.Info("authentication rejected", zap.String("conn", conn.ID()), zap.Error(err))
		_ = conn.SendEvent(types.EventAuthError, &types.AuthError{Message: "invalid or expired token"}, "")
		return
	}

	conn.SetIdentity(identity)
	replaced, err := h.registry.Register(conn)
	if err != nil {
		h.log.Error("failed to register connection", zap.Error(err))
		_ = conn.Close()
		return
	}
	// ARCHITECTURAL DISCOVERY: Connection replacement pattern; the older socket is told why
	if replaced != nil {
		h.log.Info("replacing duplicate session", zap.String("user", identity.ID), zap.String("old", replaced.ID()))
		go func() {
			_ = replaced.SendAndClose(types.EventForceDisconnect, &types.ForceDisconnect{Reason: "duplicate session"})
		}()
	}

	h.sessions.Open(identity.ID, conn.ID())
	if err := conn.SendEvent(types.EventAuthenticated, &types.Authenticated{User: *identity}, ""); err != nil {
		h.log.Warn("failed to send authenticated", zap.Error(err))
	}
	h.log.Info("user authenticated", zap.String("user", identity.ID), zap.String("conn", conn.ID()))
	h.dispatch.Connected(conn)
}

func (h *Handler) cleanup(conn *Connection) {
	_ = conn.Close()
	if !conn.IsAuthenticated() {
		return
	}
	if h.registry.Unregister(conn) {
		h.sessions.Close(conn.UserID(), conn.ID())
	}
	h.dispatch.Disconnected(conn)
	h.log.Debug("connection closed", zap.String("user", conn.UserID()), zap.String("conn", conn.ID()))
}
