package hub

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"freshershub/internal/router"
	"freshershub/internal/websocket"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// Hub owns room membership and serializes event handling
// ARCHITECTURAL DISCOVERY: Central coordination point for all message flow
// maintains clean separation between WebSocket handling and message routing
type Hub struct {
	// FUNCTIONAL DISCOVERY: Buffered channels prevent blocking during message bursts
	events   chan inbound
	shutdown chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	registry *websocket.Registry
	router   *router.Router
	log      logger.Logger

	cleanupInterval time.Duration

	roomsMu sync.RWMutex
	rooms   map[string]map[*websocket.Connection]struct{}

	running bool
	mu      sync.RWMutex
}

// inbound is one queued event. A nil env marks a disconnect; done is closed
// once it has been handled.
type inbound struct {
	conn *websocket.Connection
	env  *types.Envelope
	done chan struct{}
}

// Stats is a point-in-time view for the HTTP API
type Stats struct {
	Connections int            `json:"connections"`
	Rooms       int            `json:"rooms"`
	Members     map[string]int `json:"members"`
}

func NewHub(registry *websocket.Registry, r *router.Router, log logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		events:          make(chan inbound, 1000), // TECHNICAL DISCOVERY: 1000 buffer handles message bursts
		shutdown:        make(chan struct{}),
		stopped:         make(chan struct{}),
		registry:        registry,
		router:          r,
		log:             log,
		cleanupInterval: time.Minute,
		rooms:           make(map[string]map[*websocket.Connection]struct{}),
	}
}

// Start runs the hub loop until Stop or ctx is cancelled
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	h.log.Info("starting hub")
	go h.run(ctx)
	return nil
}

func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false
	h.log.Info("stopping hub")

	select {
	case <-h.shutdown:
	default:
		close(h.shutdown)
	}
	return nil
}

func (h *Hub) isRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Dispatch queues an event from an authenticated connection
func (h *Hub) Dispatch(c *websocket.Connection, env *types.Envelope) {
	if !h.isRunning() {
		h.sendErrorToSender(c, ErrHubNotRunning)
		return
	}
	// TECHNICAL DISCOVERY: Non-blocking send with error handling prevents hub lockup
	select {
	case h.events <- inbound{conn: c, env: env}:
	default:
		h.sendErrorToSender(c, ErrEventChannelFull)
	}
}

// TECHNICAL DISCOVERY: Single select loop handles all coordination
func (h *Hub) run(ctx context.Context) {
	defer h.log.Info("hub processing stopped")
	defer h.stopOnce.Do(func() { close(h.stopped) })

	ticker := time.NewTicker(h.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case in := <-h.events:
			h.handle(ctx, in)
		case <-ticker.C:
			h.router.Cleanup()
		case <-h.shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handle(ctx context.Context, in inbound) {
	if in.env == nil {
		h.disconnect(in.conn)
		close(in.done)
		return
	}

	var err error
	switch in.env.Event {
	case types.EventJoinRoom:
		err = h.join(in.conn, in.env)
	case types.EventLeaveRoom:
		err = h.leave(in.conn, in.env)
	default:
		err = h.router.Route(ctx, h, in.conn, in.env)
	}
	if err != nil {
		h.log.Debug("event rejected", zap.String("user", in.conn.UserID()), zap.String("event", string(in.env.Event)), zap.Error(err))
		h.sendErrorToSender(in.conn, err)
	}
}

func (h *Hub) join(c *websocket.Connection, env *types.Envelope) error {
	var p types.JoinRoomPayload
	if err := env.Bind(&p); err != nil {
		return err
	}
	if err := checkAccess(c.Identity(), p.RoomID, p.RoomType); err != nil {
		return err
	}
	select {
	case <-c.Done():
		return websocket.ErrConnectionClosed
	default:
	}

	h.roomsMu.Lock()
	members, ok := h.rooms[p.RoomID]
	if !ok {
		members = make(map[*websocket.Connection]struct{})
		h.rooms[p.RoomID] = members
	}
	_, already := members[c]
	members[c] = struct{}{}
	others := h.othersLocked(p.RoomID, c)
	h.roomsMu.Unlock()

	if err := c.SendEvent(types.EventJoinedRoom, &types.JoinedRoom{RoomID: p.RoomID, RoomType: p.RoomType}, p.RoomID); err != nil {
		if !already {
			h.removeMember(p.RoomID, c)
		}
		return err
	}
	if !already {
		h.fanout(others, types.EventUserJoinedRoom, &types.RoomPresence{RoomID: p.RoomID, User: c.Identity()}, p.RoomID)
	}
	return nil
}

func (h *Hub) leave(c *websocket.Connection, env *types.Envelope) error {
	var p types.LeaveRoomPayload
	if err := env.Bind(&p); err != nil {
		return err
	}
	if h.removeMember(p.RoomID, c) {
		h.announceLeave(p.RoomID, c)
	}
	return nil
}

// removeMember reports whether c was in roomID. Empty rooms are dropped.
func (h *Hub) removeMember(roomID string, c *websocket.Connection) bool {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	if _, in := members[c]; !in {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
	return true
}

func (h *Hub) announceLeave(roomID string, c *websocket.Connection) {
	h.fanout(h.Members(roomID), types.EventUserLeftRoom, &types.RoomPresence{RoomID: roomID, User: c.Identity()}, roomID)
}

// Connected announces the user as online to everyone else
func (h *Hub) Connected(c *websocket.Connection) {
	h.broadcastStatus(c, types.StatusOnline)
}

// Disconnected drops c from its rooms. The user is announced offline only
// when no other connection of theirs is live.
// FUNCTIONAL DISCOVERY: the disconnect is queued behind events c already
// dispatched, so a late join-room cannot re-add a closed connection
func (h *Hub) Disconnected(c *websocket.Connection) {
	if h.isRunning() {
		done := make(chan struct{})
		select {
		case h.events <- inbound{conn: c, done: done}:
			select {
			case <-done:
				return
			case <-h.stopped:
			}
		case <-h.stopped:
		}
		select {
		case <-done:
			return
		default:
		}
	}
	h.disconnect(c)
}

func (h *Hub) disconnect(c *websocket.Connection) {
	h.roomsMu.RLock()
	var joined []string
	for roomID, members := range h.rooms {
		if _, ok := members[c]; ok {
			joined = append(joined, roomID)
		}
	}
	h.roomsMu.RUnlock()

	for _, roomID := range joined {
		if h.removeMember(roomID, c) {
			h.announceLeave(roomID, c)
		}
	}

	if _, live := h.registry.Get(c.UserID()); !live {
		h.broadcastStatus(c, types.StatusOffline)
	}
}

func (h *Hub) broadcastStatus(c *websocket.Connection, status string) {
	change := &types.UserStatusChange{UserID: c.UserID(), Status: status}
	for _, other := range h.registry.All() {
		if other == c || other.UserID() == c.UserID() {
			continue
		}
		_ = other.SendEvent(types.EventUserStatusChange, change, "")
	}
}

// Members returns the connections in roomID
func (h *Hub) Members(roomID string) []*websocket.Connection {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return h.othersLocked(roomID, nil)
}

func (h *Hub) IsMember(roomID string, c *websocket.Connection) bool {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	_, ok := h.rooms[roomID][c]
	return ok
}

func (h *Hub) othersLocked(roomID string, skip *websocket.Connection) []*websocket.Connection {
	members := h.rooms[roomID]
	out := make([]*websocket.Connection, 0, len(members))
	for c := range members {
		if c != skip {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) fanout(conns []*websocket.Connection, name types.EventName, payload any, roomID string) {
	for _, c := range conns {
		if err := c.SendEvent(name, payload, roomID); err != nil {
			h.log.Debug("fanout delivery failed", zap.String("user", c.UserID()), zap.Error(err))
		}
	}
}

// Notify pushes a notification to userID's live connection
func (h *Hub) Notify(userID string, n *types.Notification) error {
	conn, ok := h.registry.Get(userID)
	if !ok {
		return ErrUserNotConnected
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return conn.SendEvent(types.EventNotification, n, "")
}

// SystemBroadcast sends a system-message to every connection and returns how many were reached
func (h *Hub) SystemBroadcast(severity, message string) int {
	msg := &types.SystemMessage{Type: severity, Message: message}
	sent := 0
	for _, c := range h.registry.All() {
		if err := c.SendEvent(types.EventSystemMessage, msg, ""); err == nil {
			sent++
		}
	}
	return sent
}

// Stats reports connection and room counts
func (h *Hub) Stats() Stats {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	members := make(map[string]int, len(h.rooms))
	for id, m := range h.rooms {
		members[id] = len(m)
	}
	return Stats{
		Connections: h.registry.Count(),
		Rooms:       len(h.rooms),
		Members:     members,
	}
}

// RoomIDs lists the rooms with at least one member
func (h *Hub) RoomIDs() []string {
	h.roomsMu.RLock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	h.roomsMu.RUnlock()
	sort.Strings(ids)
	return ids
}

// sendErrorToSender reports a rejected event as a system-message
// TECHNICAL DISCOVERY: Error feedback mechanism using system message format
// provides user-friendly error reporting without exposing internal details
func (h *Hub) sendErrorToSender(c *websocket.Connection, cause error) {
	severity := types.SeverityError
	text := "Event could not be processed"
	switch {
	case errors.Is(cause, router.ErrRateLimitExceeded):
		severity = types.SeverityWarning
		text = "You are sending messages too quickly"
	case errors.Is(cause, ErrRoomAccessDenied):
		text = "You do not have access to that room"
	case errors.Is(cause, ErrRoomTypeMismatch):
		text = "Room id does not match room type"
	case errors.Is(cause, router.ErrNotInRoom):
		text = "Join the room before sending to it"
	case errors.Is(cause, types.ErrInvalidPayload):
		text = "Invalid event payload"
	}
	if err := c.SendEvent(types.EventSystemMessage, &types.SystemMessage{Type: severity, Message: text}, ""); err != nil {
		h.log.Debug("failed to send error to sender", zap.String("user", c.UserID()), zap.Error(err))
	}
}
