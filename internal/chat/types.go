package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageStatus is the lifecycle status of a message. Delivered and
// Errored are terminal.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusDelivered MessageStatus = "delivered"
	StatusError     MessageStatus = "error"
)

// Terminal reports whether the status is final.
func (s MessageStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusError
}

// UploadStatus is the lifecycle status of an attachment upload.
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadCompleted UploadStatus = "completed"
	UploadError     UploadStatus = "error"
)

// ProcessingStatus is the backend-side state of an uploaded document.
type ProcessingStatus string

const (
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingReady      ProcessingStatus = "ready"
	ProcessingError      ProcessingStatus = "error"
)

// Settings holds per-session assistant behavior.
type Settings struct {
	Persona       string
	ResponseStyle string
	CiteSources   bool
	FollowUps     bool
}

// Session is one conversation thread with its own message history and settings.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Archived  bool
	Settings  Settings
	Document  *DocumentContext
}

// Source is a document citation attached to a completed assistant message.
type Source struct {
	ID      string
	Title   string
	Excerpt string
	Score   float64
}

// Attachment describes an uploaded file reported by a message.
type Attachment struct {
	ID           string
	Filename     string
	Size         int64
	MIME         string
	UploadStatus UploadStatus
}

// Message is a single transcript entry. Content is append-only while
// status is sending; sources and follow-ups are attached only at completion.
type Message struct {
	ID          string
	Role        Role
	Content     string
	Status      MessageStatus
	Sources     []Source
	FollowUps   []string
	Attachments []Attachment
	Confidence  float64
	CreatedAt   time.Time
}

// DocumentContext describes a processed document attached to a session.
// It is never mutated by message flow, only replaced wholesale on re-fetch.
type DocumentContext struct {
	ID         string
	Title      string
	Status     ProcessingStatus
	Pages      int
	Chunks     int
	Keywords   []string
	Summary    string
	Confidence float64
}
