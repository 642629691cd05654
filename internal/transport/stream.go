package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// EventType discriminates stream events.
type EventType string

const (
	EventChunk    EventType = "chunk"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// SourceMeta is a document citation carried by a complete event.
type SourceMeta struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Excerpt string  `json:"excerpt"`
	Score   float64 `json:"relevanceScore"`
}

// CompleteMeta is the metadata attached to the terminal complete event.
type CompleteMeta struct {
	Sources      []SourceMeta
	ContextFound bool
	Confidence   *float64
}

// StreamEvent is one typed event from a streaming reply. A stream always
// ends with exactly one terminal event (complete or error) before the
// channel closes.
type StreamEvent struct {
	Type     EventType
	Content  string // chunk: incremental assistant text
	FullText string // complete: authoritative full response
	Meta     CompleteMeta
	Fallback bool // complete: reply came from the non-streaming path
	// error fields
	ErrMessage string
	// Transport is true when the failure happened before the backend
	// produced a reply (connection, decode, unexpected EOF).
	Transport bool
}

// streamFrame is the wire format of one `data: {json}` record.
type streamFrame struct {
	Type         string       `json:"type"`
	Content      string       `json:"content,omitempty"`
	FullResponse string       `json:"fullResponse,omitempty"`
	Sources      []SourceMeta `json:"sources,omitempty"`
	ContextFound bool         `json:"contextFound,omitempty"`
	Confidence   *float64     `json:"confidence,omitempty"`
	Message      string       `json:"message,omitempty"`
}

type sendBody struct {
	Message string `json:"message"`
}

// Stream sends a message on the streaming endpoint and returns a channel of
// typed events. Chunks arrive in order; the channel is closed after the
// terminal event. If the streaming endpoint is unavailable the client falls
// back to a single non-streaming send and reports completion from that, so
// callers never need to distinguish the two success paths. Cancel via ctx.
func (c *Client) Stream(ctx context.Context, sessionID, content string) <-chan StreamEvent {
	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)
		c.runStream(ctx, sessionID, content, events)
	}()
	return events
}

func (c *Client) runStream(ctx context.Context, sessionID, content string, events chan<- StreamEvent) {
	payload, err := json.Marshal(sendBody{Message: content})
	if err != nil {
		emit(ctx, events, StreamEvent{Type: EventError, ErrMessage: err.Error(), Transport: true})
		return
	}

	path := fmt.Sprintf("/api/rfp-gpt/chats/%s/messages/stream", sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(payload)))
	if err != nil {
		emit(ctx, events, StreamEvent{Type: EventError, ErrMessage: err.Error(), Transport: true})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.tokens.Get())

	resp, err := c.streaming.Do(req)
	if err != nil {
		emit(ctx, events, StreamEvent{Type: EventError, ErrMessage: err.Error(), Transport: true})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("streaming endpoint unavailable, falling back to non-streaming send",
			zap.Int("status", resp.StatusCode))
		c.fallbackSend(ctx, sessionID, content, events)
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			// Blank keep-alive lines and comments are part of the framing.
			continue
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			c.logger.Warn("skipping malformed stream record", zap.Error(err))
			continue
		}

		switch frame.Type {
		case "streamChunk":
			if !emit(ctx, events, StreamEvent{Type: EventChunk, Content: frame.Content}) {
				return
			}
		case "streamComplete":
			emit(ctx, events, StreamEvent{
				Type:     EventComplete,
				FullText: frame.FullResponse,
				Meta: CompleteMeta{
					Sources:      frame.Sources,
					ContextFound: frame.ContextFound,
					Confidence:   frame.Confidence,
				},
			})
			return
		case "error":
			emit(ctx, events, StreamEvent{Type: EventError, ErrMessage: frame.Message})
			return
		default:
			c.logger.Warn("skipping unknown stream record type", zap.String("type", frame.Type))
		}
	}

	// The stream ended without a terminal frame.
	err = scanner.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	emit(ctx, events, StreamEvent{Type: EventError, ErrMessage: err.Error(), Transport: true})
}

// fallbackSend performs the non-streaming send and reports its result as the
// terminal event. The regular Request path handles 401 refresh.
func (c *Client) fallbackSend(ctx context.Context, sessionID, content string, events chan<- StreamEvent) {
	reply, err := c.SendMessage(ctx, sessionID, content)
	if err != nil {
		var apiErr *APIError
		emit(ctx, events, StreamEvent{
			Type:       EventError,
			ErrMessage: err.Error(),
			Transport:  !errors.As(err, &apiErr),
		})
		return
	}
	emit(ctx, events, StreamEvent{
		Type:     EventComplete,
		FullText: reply.Response,
		Fallback: true,
		Meta: CompleteMeta{
			Sources:      reply.Sources,
			ContextFound: reply.ContextFound,
			Confidence:   reply.Confidence,
		},
	})
}

func emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
