package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"freshershub/internal/hub"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// Hub is the slice of the realtime hub the API drives
type Hub interface {
	Stats() hub.Stats
	Notify(userID string, n *types.Notification) error
	SystemBroadcast(severity, message string) int
}

// History serves room chat history
type History interface {
	History(ctx context.Context, roomID string) ([]types.ChatMessage, error)
}

// Authenticator resolves a bearer token to the calling user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*types.Identity, error)
}

// HealthChecker reports storage health; nil means no storage to check
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients and internal components
type Server struct {
	hub        Hub
	history    History
	health     HealthChecker
	auth       Authenticator
	adminToken string
	started    time.Time
	log        logger.Logger
	mux        *http.ServeMux
	handler    http.Handler
}

// NewServer wires the routes. An empty adminToken leaves the push endpoints
// open. History reads always need a user token; a nil auth rejects them.
func NewServer(h Hub, history History, health HealthChecker, auth Authenticator, adminToken string, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{
		hub:        h,
		history:    history,
		health:     health,
		auth:       auth,
		adminToken: adminToken,
		started:    time.Now(),
		log:        log,
		mux:        http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.healthCheck)
	s.mux.HandleFunc("GET /api/stats", s.stats)
	s.mux.Handle("GET /api/rooms/{id}/messages", s.requireUser(http.HandlerFunc(s.roomMessages)))
	s.mux.Handle("POST /api/notify", s.requireAdmin(http.HandlerFunc(s.notify)))
	s.mux.Handle("POST /api/system-message", s.requireAdmin(http.HandlerFunc(s.systemMessage)))

	// CORS and JSON middleware applied to all routes for web client compatibility
	s.handler = s.corsMiddleware(s.jsonMiddleware(s.mux))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Database    string    `json:"database"`
	Connections int       `json:"connections"`
	Uptime      string    `json:"uptime"`
}

type HistoryResponse struct {
	RoomID   string              `json:"roomId"`
	Messages []types.ChatMessage `json:"messages"`
}

type NotifyRequest struct {
	UserID  string `json:"userId" validate:"required,max=64"`
	Type    string `json:"type" validate:"required,max=64"`
	Title   string `json:"title" validate:"required,max=200"`
	Message string `json:"message" validate:"max=2000"`
	Link    string `json:"link,omitempty" validate:"omitempty,max=500"`
}

type SystemMessageRequest struct {
	Type    string `json:"type" validate:"required,oneof=info success warning error"`
	Message string `json:"message" validate:"required,max=2000"`
}

type SystemMessageResponse struct {
	Delivered int `json:"delivered"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FUNCTIONAL DISCOVERY: GET /health returns 503 if any component is unhealthy
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Database:    "disabled",
		Connections: s.hub.Stats().Connections,
		Uptime:      time.Since(s.started).Round(time.Second).String(),
	}
	if s.health != nil {
		resp.Database = "healthy"
		if err := s.health.HealthCheck(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Database = "error: " + err.Error()
		}
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.hub.Stats())
}

func (s *Server) roomMessages(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if roomID == "" {
		s.sendError(w, "Room ID required", http.StatusBadRequest)
		return
	}
	if err := hub.CanRead(identityFrom(r.Context()), roomID); err != nil {
		if errors.Is(err, hub.ErrRoomAccessDenied) {
			s.sendError(w, "No access to this room", http.StatusForbidden)
			return
		}
		s.sendError(w, "Invalid room id", http.StatusBadRequest)
		return
	}
	msgs, err := s.history.History(r.Context(), roomID)
	if err != nil {
		s.log.Error("history lookup failed", zap.String("room", roomID), zap.Error(err))
		s.sendError(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []types.ChatMessage{}
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{RoomID: roomID, Messages: msgs})
}

func (s *Server) notify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	n := &types.Notification{Type: req.Type, Title: req.Title, Message: req.Message, Link: req.Link}
	if err := s.hub.Notify(req.UserID, n); err != nil {
		if errors.Is(err, hub.ErrUserNotConnected) {
			s.sendError(w, "User not connected", http.StatusNotFound)
			return
		}
		s.sendError(w, "Failed to deliver notification", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusAccepted, n)
}

func (s *Server) systemMessage(w http.ResponseWriter, r *http.Request) {
	var req SystemMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	delivered := s.hub.SystemBroadcast(req.Type, req.Message)
	s.log.Info("system message broadcast", zap.String("type", req.Type), zap.Int("delivered", delivered))
	s.writeJSON(w, http.StatusAccepted, SystemMessageResponse{Delivered: delivered})
}

// decode reads and validates a JSON body, replying 400 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	if err := types.Validate(dst); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("failed to write response", zap.Error(err))
	}
}

// FUNCTIONAL DISCOVERY: Consistent error response format
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

type identityKey struct{}

func identityFrom(ctx context.Context) *types.Identity {
	id, _ := ctx.Value(identityKey{}).(*types.Identity)
	return id
}

// requireUser resolves the bearer token and stores the caller in the request context
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" || s.auth == nil {
			s.sendError(w, "Bearer token required", http.StatusUnauthorized)
			return
		}
		identity, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.log.Debug("api authentication rejected", zap.Error(err))
			s.sendError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken != "" {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
				s.sendError(w, "Admin token required", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ARCHITECTURAL DISCOVERY: CORS middleware enables web client access
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
