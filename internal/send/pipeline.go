package send

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rfpgpt/rfpgpt/internal/bus"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"github.com/rfpgpt/rfpgpt/internal/transport"
	"go.uber.org/zap"
)

const (
	// Confidence defaults. The three values signal different failure
	// classes to the UI and must stay distinct: 0.8 is the placeholder at
	// creation, 0.85 a completion where the backend omitted a score, 0.5
	// a transport-level failure that never reached the backend.
	placeholderConfidence = 0.8
	completeConfidence    = 0.85
	transportConfidence   = 0.5

	titleRuneLimit = 50

	apologyText = "I'm sorry, I wasn't able to generate a response. Please try again."
)

// Follow-up question sets. The no-context set doubles as the placeholder
// default, used only when the exchange errors or finds no supporting context.
var (
	noContextFollowUps = []string{
		"Could you upload the RFP document you're working from?",
		"What section of the proposal should we focus on?",
		"Would you like an outline for a typical response?",
	}
	contextFollowUps = []string{
		"Should I expand on any of the cited sections?",
		"Would you like this rewritten in a different tone?",
		"Shall I draft the next section of the response?",
	}
)

// StreamError is a failed send surfaced to the caller for display. The
// failed assistant message stays in the transcript.
type StreamError struct {
	Message   string
	Transport bool
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("send failed: %s", e.Message)
}

// Streamer produces the event stream for one assistant reply.
type Streamer interface {
	Stream(ctx context.Context, sessionID, content string) <-chan transport.StreamEvent
}

// Pipeline drives one assistant exchange: optimistic user insert, assistant
// placeholder, incremental chunk application, and terminal finalization.
// A per-session single-slot lock means at most one send is in flight per
// session; a second attempt is a silent no-op.
type Pipeline struct {
	store    *chat.Store
	streamer Streamer
	bus      *bus.Bus
	logger   *zap.Logger
	defaults chat.Settings

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewPipeline creates a send pipeline. defaults are the settings applied to
// sessions auto-created on first send.
func NewPipeline(store *chat.Store, streamer Streamer, b *bus.Bus, defaults chat.Settings, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		streamer: streamer,
		bus:      b,
		logger:   logger,
		defaults: defaults,
		inflight: make(map[string]struct{}),
	}
}

// InFlight reports whether a send is currently running for the session.
func (p *Pipeline) InFlight(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[sessionID]
	return ok
}

// acquire atomically claims the session's send slot.
func (p *Pipeline) acquire(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inflight[sessionID]; ok {
		return false
	}
	p.inflight[sessionID] = struct{}{}
	return true
}

func (p *Pipeline) release(sessionID string) {
	p.mu.Lock()
	delete(p.inflight, sessionID)
	p.mu.Unlock()
}

// Send runs the full send flow for content against the active session,
// creating one when none is active. Empty or whitespace-only content is a
// silent no-op, as is a send while another is in flight for the session.
// Session-creation failure aborts before anything is inserted. A streaming
// failure leaves an error-status assistant message in the transcript and
// returns *StreamError.
func (p *Pipeline) Send(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	sess := p.store.Current()
	if sess == nil {
		var err error
		sess, err = p.store.CreateSession(ctx, sessionTitle(content), p.defaults)
		if err != nil {
			// Abort the whole send; no messages are inserted.
			return err
		}
	}

	if !p.acquire(sess.ID) {
		p.logger.Debug("send already in flight, ignoring", zap.String("session_id", sess.ID))
		return nil
	}
	defer p.release(sess.ID)

	return p.run(ctx, sess, content)
}

func (p *Pipeline) run(ctx context.Context, sess *chat.Session, content string) error {
	machine := NewMachine()

	// Optimistic insert: the user's own message is never rolled back, even
	// if the assistant call later fails.
	p.store.AddMessage(&chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleUser,
		Content:   content,
		Status:    chat.StatusDelivered,
		CreatedAt: time.Now(),
	})
	_ = machine.Transition(UserInserted)

	placeholderID := uuid.NewString()
	p.store.AddMessage(&chat.Message{
		ID:         placeholderID,
		Role:       chat.RoleAssistant,
		Status:     chat.StatusSending,
		FollowUps:  noContextFollowUps,
		Confidence: placeholderConfidence,
		CreatedAt:  time.Now(),
	})
	_ = machine.Transition(PlaceholderInserted)

	// Updates initiated by this send carry the generation observed here;
	// if the user navigates away mid-stream they are discarded.
	gen := p.store.Generation()

	events := p.streamer.Stream(ctx, sess.ID, content)
	_ = machine.Transition(Streaming)

	for ev := range events {
		switch ev.Type {
		case transport.EventChunk:
			p.store.UpdateMessageAt(gen, placeholderID, chat.MessagePatch{
				AppendContent: ev.Content,
			})

		case transport.EventComplete:
			p.finalizeComplete(gen, placeholderID, ev)
			if ev.Fallback {
				_ = machine.Transition(FallbackCompleted)
			} else {
				_ = machine.Transition(Completed)
			}
			return nil

		case transport.EventError:
			p.finalizeError(gen, sess.ID, placeholderID, ev)
			_ = machine.Transition(Errored)
			return &StreamError{Message: ev.ErrMessage, Transport: ev.Transport}
		}
	}

	// The transport guarantees a terminal event; a closed channel without
	// one means the context was cancelled.
	err := ctx.Err()
	if err == nil {
		return nil
	}
	p.finalizeError(gen, sess.ID, placeholderID, transport.StreamEvent{
		Type: transport.EventError, ErrMessage: err.Error(), Transport: true,
	})
	_ = machine.Transition(Errored)
	return &StreamError{Message: err.Error(), Transport: true}
}

// finalizeComplete applies the terminal completion: the server's final
// payload is the source of truth and overwrites any locally accumulated
// chunks.
func (p *Pipeline) finalizeComplete(gen uint64, placeholderID string, ev transport.StreamEvent) {
	status := chat.StatusDelivered
	confidence := completeConfidence
	if ev.Meta.Confidence != nil {
		confidence = *ev.Meta.Confidence
	}
	followUps := noContextFollowUps
	if ev.Meta.ContextFound {
		followUps = contextFollowUps
	}

	p.store.UpdateMessageAt(gen, placeholderID, chat.MessagePatch{
		Content:    &ev.FullText,
		Status:     &status,
		Sources:    transport.MapSources(ev.Meta.Sources),
		FollowUps:  followUps,
		Confidence: &confidence,
	})
}

// finalizeError converts a failed exchange into an error-status apology
// message; it stays in history so the user can see a send was attempted.
func (p *Pipeline) finalizeError(gen uint64, sessionID, placeholderID string, ev transport.StreamEvent) {
	apology := apologyText
	status := chat.StatusError
	patch := chat.MessagePatch{
		Content: &apology,
		Status:  &status,
	}
	if ev.Transport {
		confidence := transportConfidence
		patch.Confidence = &confidence
	}
	p.store.UpdateMessageAt(gen, placeholderID, patch)
	p.store.SetBanner(ev.ErrMessage)

	p.logger.Error("send failed",
		zap.String("session_id", sessionID),
		zap.String("error", ev.ErrMessage),
		zap.Bool("transport", ev.Transport))
	p.bus.Publish(bus.Event{
		Kind:      bus.KindMessageSendFailed,
		Timestamp: time.Now(),
		Payload: map[string]string{
			"session_id": sessionID,
			"message_id": placeholderID,
			"error":      ev.ErrMessage,
		},
	})
}

// sessionTitle derives an implicit session title from the first message.
func sessionTitle(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= titleRuneLimit {
		return string(runes)
	}
	return string(runes[:titleRuneLimit])
}
