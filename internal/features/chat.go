package features

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"freshershub/internal/bus"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// maxChatHistory bounds the per-room message buffer
const maxChatHistory = 100

// Chat sends chat messages and typing signals and keeps a bounded message
// buffer per room
type Chat struct {
	adapter
	history HistoryFetcher
	typing  *typers

	mu       sync.RWMutex
	messages map[string][]types.ChatMessage
	present  map[string]map[string]string // roomID -> userID -> name
	online   map[string]bool

	// OnMessage, if set, is called for every inbound chat message
	OnMessage func(msg *types.ChatMessage)
}

// NewChat registers the chat handlers on t's bus. history may be nil.
func NewChat(t Transport, history HistoryFetcher, log logger.Logger) *Chat {
	c := &Chat{
		adapter:  newAdapter(t, log),
		history:  history,
		typing:   newTypers(),
		messages: make(map[string][]types.ChatMessage),
		present:  make(map[string]map[string]string),
		online:   make(map[string]bool),
	}
	b := t.Bus()
	c.track(
		bus.Subscribe(b, types.EventChatMessage, c.onMessage),
		bus.Subscribe(b, types.EventUserTyping, func(e *types.TypingEvent) {
			if e.RoomID != "" && !c.self(e.User) {
				c.typing.start(e.RoomID, e.User)
			}
		}),
		bus.Subscribe(b, types.EventUserStopTyping, func(e *types.TypingEvent) {
			if e.RoomID != "" {
				c.typing.stop(e.RoomID, e.User)
			}
		}),
		bus.Subscribe(b, types.EventUserJoinedRoom, c.onJoined),
		bus.Subscribe(b, types.EventUserLeftRoom, c.onLeft),
		bus.Subscribe(b, types.EventUserStatusChange, c.onStatus),
	)
	return c
}

// JoinRoom asks to join a chat room; see realtime.Session.Join
func (c *Chat) JoinRoom(roomID string) {
	c.t.Join(roomID, types.RoomTypeChat)
}

// LeaveRoom leaves the room and drops its local buffer
func (c *Chat) LeaveRoom(roomID string) {
	c.t.Leave(roomID)
	c.mu.Lock()
	delete(c.messages, roomID)
	delete(c.present, roomID)
	c.mu.Unlock()
}

// SendMessage validates and sends a message. Invalid input is reported;
// a disconnected transport drops the message silently.
func (c *Chat) SendMessage(roomID, text, messageType string) error {
	if messageType == "" {
		messageType = types.ChatMessageText
	}
	msg := &types.ChatMessage{RoomID: roomID, Message: strings.TrimSpace(text), MessageType: messageType}
	if err := types.Validate(msg); err != nil {
		return fmt.Errorf("chat message: %w", err)
	}
	c.t.SendEvent(types.EventChatMessage, msg, roomID)
	return nil
}

// StartTyping and StopTyping signal typing state for a room
func (c *Chat) StartTyping(roomID string) {
	if roomID != "" {
		c.t.SendEvent(types.EventChatTyping, &types.RoomTypingPayload{RoomID: roomID}, roomID)
	}
}

func (c *Chat) StopTyping(roomID string) {
	if roomID != "" {
		c.t.SendEvent(types.EventChatStopTyping, &types.RoomTypingPayload{RoomID: roomID}, roomID)
	}
}

// LoadHistory replaces the room buffer with the server's stored messages
func (c *Chat) LoadHistory(ctx context.Context, roomID string) error {
	if roomID == "" {
		return ErrEmptyRoom
	}
	if c.history == nil {
		return ErrNoHistoryAPI
	}
	msgs, err := c.history.History(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load history for %s: %w", roomID, err)
	}
	if len(msgs) > maxChatHistory {
		msgs = msgs[len(msgs)-maxChatHistory:]
	}
	c.mu.Lock()
	c.messages[roomID] = append([]types.ChatMessage(nil), msgs...)
	c.mu.Unlock()
	return nil
}

// Messages returns a copy of the room buffer, oldest first
func (c *Chat) Messages(roomID string) []types.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.ChatMessage(nil), c.messages[roomID]...)
}

// Typing returns the names of other users typing in roomID
func (c *Chat) Typing(roomID string) []string {
	return c.typing.names(roomID)
}

// Present returns the names of users seen joining roomID, sorted
func (c *Chat) Present(roomID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.present[roomID]))
	for _, name := range c.present[roomID] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Online reports whether userID was last announced online
func (c *Chat) Online(userID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online[userID]
}

// OnlineUsers returns the ids of users announced online, sorted
func (c *Chat) OnlineUsers() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.online))
	for id := range c.online {
		out = append(out, id)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (c *Chat) onMessage(msg *types.ChatMessage) {
	if msg.RoomID == "" {
		c.log.Debug("chat message without room", zap.String("id", msg.ID))
		return
	}
	c.mu.Lock()
	buf := append(c.messages[msg.RoomID], *msg)
	if len(buf) > maxChatHistory {
		buf = buf[len(buf)-maxChatHistory:]
	}
	c.messages[msg.RoomID] = buf
	c.mu.Unlock()

	// a message ends the sender's typing indicator
	c.typing.stop(msg.RoomID, msg.Sender)

	if c.OnMessage != nil {
		c.OnMessage(msg)
	}
}

func (c *Chat) onJoined(p *types.RoomPresence) {
	if p.User == nil || p.RoomID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.present[p.RoomID] == nil {
		c.present[p.RoomID] = make(map[string]string)
	}
	c.present[p.RoomID][p.User.ID] = p.User.Name
}

func (c *Chat) onLeft(p *types.RoomPresence) {
	if p.User == nil {
		return
	}
	c.mu.Lock()
	delete(c.present[p.RoomID], p.User.ID)
	c.mu.Unlock()
	c.typing.stop(p.RoomID, p.User)
}

// onStatus tracks online users. Going offline also clears the user from
// every room's presence and typing state.
func (c *Chat) onStatus(e *types.UserStatusChange) {
	if e.UserID == "" {
		return
	}
	c.mu.Lock()
	if e.Status != types.StatusOffline {
		c.online[e.UserID] = true
		c.mu.Unlock()
		return
	}
	delete(c.online, e.UserID)
	for _, users := range c.present {
		delete(users, e.UserID)
	}
	c.mu.Unlock()
	c.typing.drop(e.UserID)
}
