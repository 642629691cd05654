package history

// Session represents an archived session row.
type Session struct {
	ID            string
	Title         string
	Persona       string
	ResponseStyle string
	CreatedAt     int64
	UpdatedAt     int64
}

// Message represents an archived transcript message.
type Message struct {
	ID          int64
	SessionID   string
	MsgID       string
	Role        string
	Body        string
	Status      string
	Confidence  float64
	SourceCount int
	Timestamp   int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
