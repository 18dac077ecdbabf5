package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"freshershub/internal/websocket"
	"freshershub/pkg/interfaces"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// Rooms is the membership view the router needs; the hub implements it
type Rooms interface {
	Members(roomID string) []*websocket.Connection
	IsMember(roomID string, c *websocket.Connection) bool
}

// Router turns authenticated client events into server events.
// ARCHITECTURAL DISCOVERY: Pure message routing logic without session management or connection handling
type Router struct {
	store       interfaces.MessageStore
	memory      *memoryHistory
	rateLimiter *RateLimiter
	log         logger.Logger
	now         func() time.Time
}

// NewRouter builds a router. A nil store keeps chat history in memory.
func NewRouter(store interfaces.MessageStore, limiter *RateLimiter, log logger.Logger) *Router {
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Router{
		store:       store,
		memory:      newMemoryHistory(),
		rateLimiter: limiter,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Cleanup forwards to the rate limiter
func (r *Router) Cleanup() { r.rateLimiter.Cleanup() }

// Route handles one event from an authenticated connection.
// join-room and leave-room belong to the hub and are rejected here.
func (r *Router) Route(ctx context.Context, rooms Rooms, from *websocket.Connection, env *types.Envelope) error {
	if env.Event != types.EventPing && !r.rateLimiter.Allow(from.UserID()) {
		return ErrRateLimitExceeded
	}

	switch env.Event {
	case types.EventPing:
		return from.SendEvent(types.EventPong, &types.Pong{Timestamp: r.now()}, "")

	case types.EventChatMessage:
		var msg types.ChatMessage
		if err := env.Bind(&msg); err != nil {
			return err
		}
		return r.chatMessage(ctx, rooms, from, &msg)

	case types.EventChatTyping, types.EventChatStopTyping:
		var p types.RoomTypingPayload
		if err := env.Bind(&p); err != nil {
			return err
		}
		stop := env.Event == types.EventChatStopTyping
		return r.typing(rooms, from, stop, p.RoomID, &types.TypingEvent{RoomID: p.RoomID, User: from.Identity()})

	case types.EventForumTyping, types.EventForumStopTyping:
		var p types.PostTypingPayload
		if err := env.Bind(&p); err != nil {
			return err
		}
		stop := env.Event == types.EventForumStopTyping
		return r.typing(rooms, from, stop, types.PostRoomID(p.PostID), &types.TypingEvent{PostID: p.PostID, User: from.Identity()})

	case types.EventLearningProgressUpdate:
		var p types.ProgressUpdatePayload
		if err := env.Bind(&p); err != nil {
			return err
		}
		return r.progress(rooms, from, &p)

	case types.EventWellnessCheckin:
		var c types.WellnessCheckin
		if err := env.Bind(&c); err != nil {
			return err
		}
		c.ID = uuid.New().String()
		c.UserID = from.UserID()
		c.Timestamp = r.now()
		return from.SendEvent(types.EventWellnessCheckin, &c, "")

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEvent, env.Event)
	}
}

// chatMessage stamps, persists, then fans the message out to the whole room
// FUNCTIONAL DISCOVERY: Persist-then-route pattern ensures message durability before delivery
func (r *Router) chatMessage(ctx context.Context, rooms Rooms, from *websocket.Connection, msg *types.ChatMessage) error {
	if !rooms.IsMember(msg.RoomID, from) {
		return ErrNotInRoom
	}

	// ARCHITECTURAL DISCOVERY: Server controls message IDs to prevent client manipulation
	msg.ID = uuid.New().String()
	msg.Sender = from.Identity()
	msg.Timestamp = r.now()

	if r.store != nil {
		if err := r.store.StoreMessage(ctx, msg); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistFailed, err)
		}
	} else {
		r.memory.append(*msg)
	}

	r.broadcast(rooms.Members(msg.RoomID), nil, types.EventChatMessage, msg, msg.RoomID)
	return nil
}

// typing relays user-typing or user-stop-typing to the other members of roomID
func (r *Router) typing(rooms Rooms, from *websocket.Connection, stop bool, roomID string, ev *types.TypingEvent) error {
	if !rooms.IsMember(roomID, from) {
		return ErrNotInRoom
	}
	out := types.EventUserTyping
	if stop {
		out = types.EventUserStopTyping
	}
	r.broadcast(rooms.Members(roomID), from, out, ev, roomID)
	return nil
}

func (r *Router) progress(rooms Rooms, from *websocket.Connection, p *types.ProgressUpdatePayload) error {
	update := &types.ProgressUpdate{
		CourseID:  p.CourseID,
		LessonID:  p.LessonID,
		Progress:  p.Progress,
		UserID:    from.UserID(),
		Timestamp: r.now(),
	}
	roomID := types.CourseRoomID(p.CourseID)

	if err := from.SendEvent(types.EventProgressUpdate, update, roomID); err != nil {
		return err
	}
	r.broadcast(rooms.Members(roomID), from, types.EventProgressUpdate, update, roomID)

	if p.Progress >= 100 {
		return from.SendEvent(types.EventGoalAchievement, &types.GoalAchievement{
			Goal:     "course-complete",
			Message:  "Course completed",
			CourseID: p.CourseID,
		}, "")
	}
	return nil
}

// broadcast delivers to every member except skip.
// FUNCTIONAL DISCOVERY: Continue delivery to other recipients even if one fails
func (r *Router) broadcast(members []*websocket.Connection, skip *websocket.Connection, name types.EventName, payload any, roomID string) {
	for _, c := range members {
		if c == skip {
			continue
		}
		if err := c.SendEvent(name, payload, roomID); err != nil {
			r.log.Debug("delivery failed", zap.String("user", c.UserID()), zap.String("event", string(name)), zap.Error(err))
		}
	}
}

// History returns the newest chat messages for roomID, oldest first
func (r *Router) History(ctx context.Context, roomID string) ([]types.ChatMessage, error) {
	if r.store != nil {
		return r.store.RoomHistory(ctx, roomID, HistoryLimit)
	}
	return r.memory.list(roomID), nil
}
