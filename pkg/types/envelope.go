package types

import (
	"encoding/json"
	"fmt"
)

// Envelope is the unit exchanged over the realtime transport.
// Envelopes are transient; nothing in the realtime layer persists them.
type Envelope struct {
	Event  EventName       `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	RoomID string          `json:"roomId,omitempty"`
}

// NewEnvelope marshals payload into a ready-to-send envelope.
// A nil payload produces an envelope without data (e.g. ping).
func NewEnvelope(name EventName, payload any, roomID string) (*Envelope, error) {
	env := &Envelope{Event: name, RoomID: roomID}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	env.Data = data
	return env, nil
}

// Encode returns the wire form of the envelope
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a wire frame. Unknown event names are not an error
// here; callers decide whether to drop them.
func DecodeEnvelope(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Event == "" {
		return nil, ErrMissingEventName
	}
	return &env, nil
}

// payloadFactories maps every event that carries data to the Go type it decodes into.
// FUNCTIONAL DISCOVERY: this is the sum type over known event kinds
var payloadFactories = map[EventName]func() any{
	EventAuthenticate:           func() any { return &AuthenticatePayload{} },
	EventJoinRoom:               func() any { return &JoinRoomPayload{} },
	EventLeaveRoom:              func() any { return &LeaveRoomPayload{} },
	EventChatTyping:             func() any { return &RoomTypingPayload{} },
	EventChatStopTyping:         func() any { return &RoomTypingPayload{} },
	EventForumTyping:            func() any { return &PostTypingPayload{} },
	EventForumStopTyping:        func() any { return &PostTypingPayload{} },
	EventLearningProgressUpdate: func() any { return &ProgressUpdatePayload{} },
	EventPing:                   func() any { return &Ping{} },

	EventChatMessage:     func() any { return &ChatMessage{} },
	EventWellnessCheckin: func() any { return &WellnessCheckin{} },

	EventNotification:         func() any { return &Notification{} },
	EventNotificationRead:     func() any { return &NotificationRead{} },
	EventAllNotificationsRead: func() any { return &AllNotificationsRead{} },
	EventUserTyping:           func() any { return &TypingEvent{} },
	EventUserStopTyping:       func() any { return &TypingEvent{} },
	EventNewComment:           func() any { return &NewComment{} },
	EventPostLiked:            func() any { return &PostLiked{} },
	EventProgressUpdate:       func() any { return &ProgressUpdate{} },
	EventNewEnrollment:        func() any { return &NewEnrollment{} },
	EventGoalAchievement:      func() any { return &GoalAchievement{} },
	EventUserJoinedRoom:       func() any { return &RoomPresence{} },
	EventUserLeftRoom:         func() any { return &RoomPresence{} },
	EventJoinedRoom:           func() any { return &JoinedRoom{} },
	EventSystemMessage:        func() any { return &SystemMessage{} },
	EventUserStatusChange:     func() any { return &UserStatusChange{} },
	EventPong:                 func() any { return &Pong{} },
	EventAuthenticated:        func() any { return &Authenticated{} },
	EventAuthError:            func() any { return &AuthError{} },
	EventForceDisconnect:      func() any { return &ForceDisconnect{} },
}

// DecodePayload decodes the envelope data into the typed payload registered
// for its event name. The returned value is always a pointer.
func (e *Envelope) DecodePayload() (any, error) {
	factory, ok := payloadFactories[e.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, e.Event)
	}
	v := factory()
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, e.Event, err)
	}
	return v, nil
}
