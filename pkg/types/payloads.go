package types

import "time"

// Identity is the authenticated user's public profile.
// Courses lists course ids the user is enrolled in; the server uses it for
// course room access.
type Identity struct {
	ID      string   `json:"id" validate:"required,max=64"`
	Name    string   `json:"name" validate:"required,max=200"`
	Email   string   `json:"email,omitempty" validate:"omitempty,email"`
	Role    string   `json:"role,omitempty"`
	Courses []string `json:"courses,omitempty"`
}

// Roles recognised by the server access policy
const (
	RoleStudent = "student"
	RoleStaff   = "staff"
)

// Outbound payloads

type AuthenticatePayload struct {
	Token string `json:"token" validate:"required"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId" validate:"required,max=128"`
	RoomType string `json:"roomType" validate:"required,oneof=general chat forum-post course wellness"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type RoomTypingPayload struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type PostTypingPayload struct {
	PostID string `json:"postId" validate:"required,max=128"`
}

type ProgressUpdatePayload struct {
	CourseID string  `json:"courseId" validate:"required,max=128"`
	LessonID string  `json:"lessonId" validate:"required,max=128"`
	Progress float64 `json:"progress" validate:"gte=0,lte=100"`
}

type Ping struct{}

// Bidirectional payloads. Outbound the client fills the request fields; the
// server fills the rest before broadcasting.

type ChatMessage struct {
	ID          string    `json:"id,omitempty"`
	RoomID      string    `json:"roomId" validate:"required,max=128"`
	Message     string    `json:"message" validate:"required,max=4000"`
	MessageType string    `json:"messageType" validate:"required,oneof=text image file system"`
	Sender      *Identity `json:"sender,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

type WellnessCheckin struct {
	ID        string    `json:"id,omitempty"`
	Type      string    `json:"type" validate:"required,oneof=mood sleep stress exercise social general"`
	Mood      int       `json:"mood" validate:"min=1,max=5"`
	Message   string    `json:"message,omitempty" validate:"max=1000"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Inbound payloads

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type NotificationRead struct {
	ID string `json:"id"`
}

type AllNotificationsRead struct{}

// TypingEvent carries either a RoomID (chat) or a PostID (forum)
type TypingEvent struct {
	RoomID string    `json:"roomId,omitempty"`
	PostID string    `json:"postId,omitempty"`
	User   *Identity `json:"user"`
}

type NewComment struct {
	PostID    string    `json:"postId"`
	CommentID string    `json:"commentId"`
	Author    *Identity `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type PostLiked struct {
	PostID string `json:"postId"`
	UserID string `json:"userId"`
	Likes  int    `json:"likes"`
}

type ProgressUpdate struct {
	CourseID  string    `json:"courseId"`
	LessonID  string    `json:"lessonId"`
	Progress  float64   `json:"progress"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

type NewEnrollment struct {
	CourseID string `json:"courseId"`
	UserID   string `json:"userId"`
}

type GoalAchievement struct {
	Goal     string `json:"goal"`
	Message  string `json:"message"`
	CourseID string `json:"courseId,omitempty"`
}

type RoomPresence struct {
	RoomID string    `json:"roomId"`
	User   *Identity `json:"user"`
}

type JoinedRoom struct {
	RoomID   string `json:"roomId"`
	RoomType string `json:"roomType,omitempty"`
}

type SystemMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type UserStatusChange struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// User presence statuses
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type Pong struct {
	Timestamp time.Time `json:"timestamp"`
}

type Authenticated struct {
	User Identity `json:"user"`
}

type AuthError struct {
	Message string `json:"message"`
}

type ForceDisconnect struct {
	Reason string `json:"reason"`
}

// Local lifecycle payloads

type ConnectionEstablished struct {
	SessionID string `json:"sessionId"`
}

// ConnectionLost reports a closed transport. Reconnecting is set when a
// reconnect attempt follows.
type ConnectionLost struct {
	Reason       string `json:"reason"`
	Reconnecting bool   `json:"reconnecting"`
}

type ConnectionFailed struct {
	Attempts int `json:"attempts"`
}
