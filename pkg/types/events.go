package types

// EventName identifies an envelope on the realtime transport.
// ARCHITECTURAL DISCOVERY: the set is closed; anything else arriving from the
// server is ignored by the client session rather than treated as fatal.
type EventName string

// Client -> server
const (
	EventAuthenticate           EventName = "authenticate"
	EventJoinRoom               EventName = "join-room"
	EventLeaveRoom              EventName = "leave-room"
	EventChatTyping             EventName = "chat-typing"
	EventChatStopTyping         EventName = "chat-stop-typing"
	EventForumTyping            EventName = "forum-typing"
	EventForumStopTyping        EventName = "forum-stop-typing"
	EventLearningProgressUpdate EventName = "learning-progress-update"
	EventPing                   EventName = "ping"
)

// Used in both directions
const (
	EventChatMessage     EventName = "chat-message"
	EventWellnessCheckin EventName = "wellness-checkin"
)

// Server -> client
const (
	EventNotification         EventName = "notification"
	EventNotificationRead     EventName = "notification-read"
	EventAllNotificationsRead EventName = "all-notifications-read"
	EventUserTyping           EventName = "user-typing"
	EventUserStopTyping       EventName = "user-stop-typing"
	EventNewComment           EventName = "new-comment"
	EventPostLiked            EventName = "post-liked"
	EventProgressUpdate       EventName = "progress-update"
	EventNewEnrollment        EventName = "new-enrollment"
	EventGoalAchievement      EventName = "goal-achievement"
	EventUserJoinedRoom       EventName = "user-joined-room"
	EventUserLeftRoom         EventName = "user-left-room"
	EventJoinedRoom           EventName = "joined-room"
	EventSystemMessage        EventName = "system-message"
	EventUserStatusChange     EventName = "user-status-change"
	EventPong                 EventName = "pong"
	EventAuthenticated        EventName = "authenticated"
	EventAuthError            EventName = "auth-error"
	EventForceDisconnect      EventName = "force-disconnect"
)

// Synthesized locally by the client session, never sent on the wire
const (
	EventConnectionEstablished EventName = "connection-established"
	EventConnectionLost        EventName = "connection-lost"
	EventConnectionFailed      EventName = "connection-failed"
)

var outboundEvents = map[EventName]bool{
	EventAuthenticate:           true,
	EventJoinRoom:               true,
	EventLeaveRoom:              true,
	EventChatMessage:            true,
	EventChatTyping:             true,
	EventChatStopTyping:         true,
	EventForumTyping:            true,
	EventForumStopTyping:        true,
	EventLearningProgressUpdate: true,
	EventWellnessCheckin:        true,
	EventPing:                   true,
}

var inboundEvents = map[EventName]bool{
	EventNotification:         true,
	EventNotificationRead:     true,
	EventAllNotificationsRead: true,
	EventUserTyping:           true,
	EventUserStopTyping:       true,
	EventNewComment:           true,
	EventPostLiked:            true,
	EventChatMessage:          true,
	EventProgressUpdate:       true,
	EventNewEnrollment:        true,
	EventWellnessCheckin:      true,
	EventGoalAchievement:      true,
	EventUserJoinedRoom:       true,
	EventUserLeftRoom:         true,
	EventJoinedRoom:           true,
	EventSystemMessage:        true,
	EventUserStatusChange:     true,
	EventPong:                 true,
	EventAuthenticated:        true,
	EventAuthError:            true,
	EventForceDisconnect:      true,
}

var localEvents = map[EventName]bool{
	EventConnectionEstablished: true,
	EventConnectionLost:        true,
	EventConnectionFailed:      true,
}

// IsOutbound reports whether a client may put name on the wire
func IsOutbound(name EventName) bool { return outboundEvents[name] }

// IsInbound reports whether name is a known server -> client event
func IsInbound(name EventName) bool { return inboundEvents[name] }

// IsLocal reports whether name is a client-synthesized lifecycle event
func IsLocal(name EventName) bool { return localEvents[name] }

// IsKnown reports whether name belongs to the closed event set
func IsKnown(name EventName) bool {
	return IsOutbound(name) || IsInbound(name) || IsLocal(name)
}

// Room types accepted by join-room
const (
	RoomTypeGeneral   = "general"
	RoomTypeChat      = "chat"
	RoomTypeForumPost = "forum-post"
	RoomTypeCourse    = "course"
	RoomTypeWellness  = "wellness"
)

// Chat message types
const (
	ChatMessageText   = "text"
	ChatMessageImage  = "image"
	ChatMessageFile   = "file"
	ChatMessageSystem = "system"
)

// System message / banner severities
const (
	SeverityInfo    = "info"
	SeveritySuccess = "success"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// PostRoomID is the room that carries typing and comment events for a forum post
func PostRoomID(postID string) string { return "post:" + postID }

// CourseRoomID is the room that carries progress events for a course
func CourseRoomID(courseID string) string { return "course:" + courseID }
