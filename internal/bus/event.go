package bus

import "time"

// Event kinds published on the bus. Subscribers filter by namespace
// prefix, e.g. "message." receives every message event.
const (
	KindSessionCreated  = "session.created"
	KindSessionDeleted  = "session.deleted"
	KindSessionSwitched = "session.switched"
	KindSessionsLoaded  = "session.list_loaded"

	KindMessageAdded      = "message.added"
	KindMessageUpdated    = "message.updated"
	KindMessageSendFailed = "message.send_failed"

	KindDocumentUploaded   = "document.uploaded"
	KindDocumentFailed     = "document.upload_failed"
	KindDocumentsRefreshed = "document.list_refreshed"

	KindBannerError   = "banner.error"
	KindBannerCleared = "banner.cleared"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// MessageRef identifies a message within a session; payload for message.* events.
type MessageRef struct {
	SessionID string
	MessageID string
}
