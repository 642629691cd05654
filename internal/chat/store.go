package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rfpgpt/rfpgpt/internal/bus"
	"go.uber.org/zap"
)

// Backend is the REST surface the store depends on for session CRUD,
// message history, and document listings.
type Backend interface {
	CreateChat(ctx context.Context, title string, settings Settings) (*Session, error)
	DeleteChat(ctx context.Context, id string) error
	ListChats(ctx context.Context) ([]*Session, error)
	ListMessages(ctx context.Context, sessionID string) ([]*Message, error)
	ListDocuments(ctx context.Context, sessionID string) ([]*DocumentContext, error)
}

// MessagePatch is a partial update merged into a message by UpdateMessage.
// Nil fields are left untouched.
type MessagePatch struct {
	AppendContent string
	Content       *string
	Status        *MessageStatus
	Sources       []Source
	FollowUps     []string
	Attachments   []Attachment
	Confidence    *float64
}

// Store owns the session list, the active-session pointer, and the active
// session's message list. All mutations funnel through it; the message
// list is an append-only sequence with no reordering operation.
//
// Every session switch bumps a generation counter. Updates tagged with a
// stale generation are discarded, so a stream still emitting chunks for a
// previous session can never corrupt the new session's transcript.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	bus     *bus.Bus
	logger  *zap.Logger

	sessions   []*Session
	current    *Session
	generation uint64

	messages  []*Message
	documents []*DocumentContext

	banner string
}

// NewStore creates a session store backed by the given API client.
func NewStore(backend Backend, b *bus.Bus, logger *zap.Logger) *Store {
	return &Store{
		backend: backend,
		bus:     b,
		logger:  logger,
	}
}

// CreateSession creates a session on the backend, inserts it at the head of
// the session list, and makes it active, clearing the message and document
// lists. On backend failure nothing is inserted and ErrCreateFailed is
// returned; callers must not assume a session exists.
func (s *Store) CreateSession(ctx context.Context, title string, settings Settings) (*Session, error) {
	created, err := s.backend.CreateChat(ctx, title, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCreateFailed, err)
	}

	s.mu.Lock()
	s.sessions = append([]*Session{created}, s.sessions...)
	s.current = created
	s.generation++
	s.messages = nil
	s.documents = nil
	s.mu.Unlock()

	s.publish(bus.KindSessionCreated, created.ID)
	s.publish(bus.KindSessionSwitched, created.ID)
	return created, nil
}

// DeleteSession deletes a session on the backend and removes it locally.
// If the deleted session was active, the active pointer and message list
// are cleared. On backend failure local state is left unchanged.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.backend.DeleteChat(ctx, id); err != nil {
		return fmt.Errorf("%w: %s", ErrDeleteFailed, err)
	}

	s.mu.Lock()
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.ID != id {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept
	if s.current != nil && s.current.ID == id {
		s.current = nil
		s.generation++
		s.messages = nil
		s.documents = nil
	}
	s.mu.Unlock()

	s.publish(bus.KindSessionDeleted, id)
	return nil
}

// SetCurrentSession swaps the active-session pointer locally. The document
// list for the new session is refreshed asynchronously by the document
// manager reacting to the switch event; refresh failures are logged only.
func (s *Store) SetCurrentSession(sess *Session) {
	s.mu.Lock()
	s.current = sess
	s.generation++
	s.messages = nil
	s.documents = nil
	s.mu.Unlock()

	id := ""
	if sess != nil {
		id = sess.ID
	}
	s.publish(bus.KindSessionSwitched, id)
}

// LoadSessions replaces the session list wholesale from the backend. If no
// session is active and the result is non-empty, the first is selected.
func (s *Store) LoadSessions(ctx context.Context) error {
	sessions, err := s.backend.ListChats(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	var switched *Session
	s.mu.Lock()
	s.sessions = sessions
	if s.current == nil && len(sessions) > 0 {
		s.current = sessions[0]
		s.generation++
		switched = sessions[0]
	}
	s.mu.Unlock()

	s.publish(bus.KindSessionsLoaded, "")
	if switched != nil {
		s.publish(bus.KindSessionSwitched, switched.ID)
	}
	return nil
}

// LoadMessages replaces the active session's message list from the backend.
// No-op when no session is active.
func (s *Store) LoadMessages(ctx context.Context) error {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur == nil {
		return nil
	}

	msgs, err := s.backend.ListMessages(ctx, cur.ID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	s.mu.Lock()
	// Only apply if the session didn't change while we were fetching.
	if s.current != nil && s.current.ID == cur.ID {
		s.messages = msgs
	}
	s.mu.Unlock()
	return nil
}

// AddMessage appends a message to the active session's transcript. It never
// deduplicates; callers are responsible for generating unique ids.
func (s *Store) AddMessage(m *Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	cur := s.current
	s.mu.Unlock()

	sessionID := ""
	if cur != nil {
		sessionID = cur.ID
	}
	s.bus.Publish(bus.Event{
		Kind:      bus.KindMessageAdded,
		Timestamp: time.Now(),
		Payload:   bus.MessageRef{SessionID: sessionID, MessageID: m.ID},
	})
}

// UpdateMessage merges patch fields into the message with the given id.
// A missing id is a no-op, not an error: it supports updates racing a
// session switch. Terminal messages are never re-mutated. Returns whether
// the patch was applied.
func (s *Store) UpdateMessage(id string, patch MessagePatch) bool {
	return s.UpdateMessageAt(s.Generation(), id, patch)
}

// UpdateMessageAt is UpdateMessage carrying the generation observed when
// the update was initiated. A stale generation tag means the active session
// changed underneath the caller; the update is discarded.
func (s *Store) UpdateMessageAt(gen uint64, id string, patch MessagePatch) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding stale message update",
			zap.String("message_id", id),
			zap.Uint64("update_generation", gen))
		return false
	}
	var target *Message
	for _, m := range s.messages {
		if m.ID == id {
			target = m
			break
		}
	}
	if target == nil || target.Status.Terminal() {
		s.mu.Unlock()
		return false
	}
	applyPatch(target, patch)
	cur := s.current
	s.mu.Unlock()

	sessionID := ""
	if cur != nil {
		sessionID = cur.ID
	}
	s.bus.Publish(bus.Event{
		Kind:      bus.KindMessageUpdated,
		Timestamp: time.Now(),
		Payload:   bus.MessageRef{SessionID: sessionID, MessageID: id},
	})
	return true
}

func applyPatch(m *Message, patch MessagePatch) {
	if patch.AppendContent != "" {
		m.Content += patch.AppendContent
	}
	if patch.Content != nil {
		m.Content = *patch.Content
	}
	if patch.Status != nil {
		m.Status = *patch.Status
	}
	if patch.Sources != nil {
		m.Sources = patch.Sources
	}
	if patch.FollowUps != nil {
		m.FollowUps = patch.FollowUps
	}
	if patch.Attachments != nil {
		m.Attachments = patch.Attachments
	}
	if patch.Confidence != nil {
		m.Confidence = *patch.Confidence
	}
}

// Current returns the active session, or nil.
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Generation returns the current session generation counter.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Sessions returns a snapshot of the session list.
func (s *Store) Sessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Messages returns a snapshot of the active session's message list.
func (s *Store) Messages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Message returns the message with the given id, or nil.
func (s *Store) Message(id string) *Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// SetDocuments replaces the active session's document list wholesale.
func (s *Store) SetDocuments(docs []*DocumentContext) {
	s.mu.Lock()
	s.documents = docs
	s.mu.Unlock()
	s.publish(bus.KindDocumentsRefreshed, "")
}

// Documents returns a snapshot of the active session's document list.
func (s *Store) Documents() []*DocumentContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*DocumentContext, len(s.documents))
	copy(out, s.documents)
	return out
}

// SetBanner sets the shared error banner shown by the UI.
func (s *Store) SetBanner(msg string) {
	s.mu.Lock()
	s.banner = msg
	s.mu.Unlock()
	kind := bus.KindBannerError
	if msg == "" {
		kind = bus.KindBannerCleared
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: msg})
}

// Banner returns the current error banner text, empty if none.
func (s *Store) Banner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.banner
}

func (s *Store) publish(kind, sessionID string) {
	s.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   sessionID,
	})
}
