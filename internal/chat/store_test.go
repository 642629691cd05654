package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rfpgpt/rfpgpt/internal/bus"
	"go.uber.org/zap"
)

// fakeBackend implements Backend with configurable results.
type fakeBackend struct {
	createErr error
	deleteErr error
	listErr   error

	sessions []*Session
	messages []*Message
	docs     []*DocumentContext

	createCalls int
	deleteCalls []string
}

func (f *fakeBackend) CreateChat(_ context.Context, title string, settings Settings) (*Session, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &Session{
		ID:        fmt.Sprintf("s%d", f.createCalls),
		Title:     title,
		Settings:  settings,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeBackend) DeleteChat(_ context.Context, id string) error {
	f.deleteCalls = append(f.deleteCalls, id)
	return f.deleteErr
}

func (f *fakeBackend) ListChats(context.Context) ([]*Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sessions, nil
}

func (f *fakeBackend) ListMessages(context.Context, string) ([]*Message, error) {
	return f.messages, nil
}

func (f *fakeBackend) ListDocuments(context.Context, string) ([]*DocumentContext, error) {
	return f.docs, nil
}

func testStore(t *testing.T, backend *fakeBackend) *Store {
	t.Helper()
	return NewStore(backend, bus.New(), zap.NewNop())
}

func TestAddMessagePreservesOrder(t *testing.T) {
	s := testStore(t, &fakeBackend{})

	for i := 0; i < 10; i++ {
		s.AddMessage(&Message{ID: fmt.Sprintf("m%d", i), Role: RoleUser, Status: StatusDelivered})
	}

	msgs := s.Messages()
	if len(msgs) != 10 {
		t.Fatalf("got %d messages, want 10", len(msgs))
	}
	for i, m := range msgs {
		if want := fmt.Sprintf("m%d", i); m.ID != want {
			t.Errorf("messages[%d].ID = %q, want %q (insertion order)", i, m.ID, want)
		}
	}
}

func TestAddMessageNeverDeduplicates(t *testing.T) {
	s := testStore(t, &fakeBackend{})

	s.AddMessage(&Message{ID: "dup"})
	s.AddMessage(&Message{ID: "dup"})

	if got := len(s.Messages()); got != 2 {
		t.Errorf("got %d messages, want 2 (no dedup)", got)
	}
}

func TestUpdateMessageMissingIDIsNoOp(t *testing.T) {
	s := testStore(t, &fakeBackend{})
	s.AddMessage(&Message{ID: "m1", Content: "hello", Status: StatusSending})

	applied := s.UpdateMessage("absent", MessagePatch{AppendContent: "x"})
	if applied {
		t.Error("UpdateMessage(absent) = true, want false")
	}

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Errorf("message list changed by missing-id update: %+v", msgs)
	}
}

func TestUpdateMessageMergesFields(t *testing.T) {
	s := testStore(t, &fakeBackend{})
	s.AddMessage(&Message{ID: "m1", Status: StatusSending, Confidence: 0.8})

	s.UpdateMessage("m1", MessagePatch{AppendContent: "Hel"})
	s.UpdateMessage("m1", MessagePatch{AppendContent: "lo"})

	if got := s.Message("m1").Content; got != "Hello" {
		t.Errorf("Content = %q, want Hello", got)
	}

	full := "Hello there"
	status := StatusDelivered
	conf := 0.85
	s.UpdateMessage("m1", MessagePatch{
		Content:    &full,
		Status:     &status,
		Confidence: &conf,
		Sources:    []Source{{ID: "d1", Title: "Doc", Score: 0.9}},
	})

	m := s.Message("m1")
	if m.Content != "Hello there" {
		t.Errorf("Content = %q, want authoritative full text", m.Content)
	}
	if m.Status != StatusDelivered || m.Confidence != 0.85 || len(m.Sources) != 1 {
		t.Errorf("merge incomplete: %+v", m)
	}
}

func TestUpdateMessageTerminalIsFinal(t *testing.T) {
	s := testStore(t, &fakeBackend{})
	s.AddMessage(&Message{ID: "m1", Content: "done", Status: StatusDelivered})

	if applied := s.UpdateMessage("m1", MessagePatch{AppendContent: "more"}); applied {
		t.Error("terminal message was re-mutated")
	}
	if got := s.Message("m1").Content; got != "done" {
		t.Errorf("Content = %q, want done", got)
	}
}

func TestStaleGenerationUpdateDiscarded(t *testing.T) {
	s := testStore(t, &fakeBackend{})
	s.AddMessage(&Message{ID: "m1", Status: StatusSending})
	gen := s.Generation()

	// Simulate a session switch while a stream is still in flight.
	s.SetCurrentSession(&Session{ID: "other"})
	s.AddMessage(&Message{ID: "m1", Status: StatusSending}) // same id in new session

	if applied := s.UpdateMessageAt(gen, "m1", MessagePatch{AppendContent: "late"}); applied {
		t.Error("stale-generation update was applied")
	}
	if got := s.Message("m1").Content; got != "" {
		t.Errorf("new session's message mutated by late update: %q", got)
	}
}

func TestCreateSessionInsertsAtHeadAndActivates(t *testing.T) {
	backend := &fakeBackend{}
	s := testStore(t, backend)

	first, err := s.CreateSession(context.Background(), "first", Settings{})
	if err != nil {
		t.Fatal(err)
	}
	s.AddMessage(&Message{ID: "m1"})

	second, err := s.CreateSession(context.Background(), "second", Settings{})
	if err != nil {
		t.Fatal(err)
	}

	sessions := s.Sessions()
	if len(sessions) != 2 || sessions[0].ID != second.ID || sessions[1].ID != first.ID {
		t.Errorf("session order = %v, want newest first", sessions)
	}
	if s.Current().ID != second.ID {
		t.Errorf("current = %v, want %v", s.Current().ID, second.ID)
	}
	if len(s.Messages()) != 0 {
		t.Error("message list not cleared on create")
	}
}

func TestCreateSessionBackendFailure(t *testing.T) {
	backend := &fakeBackend{createErr: errors.New("boom")}
	s := testStore(t, backend)

	_, err := s.CreateSession(context.Background(), "t", Settings{})
	if !errors.Is(err, ErrCreateFailed) {
		t.Errorf("err = %v, want ErrCreateFailed", err)
	}
	if len(s.Sessions()) != 0 || s.Current() != nil {
		t.Error("state mutated despite backend failure")
	}
}

func TestDeleteSessionFailureLeavesStateUnchanged(t *testing.T) {
	backend := &fakeBackend{}
	s := testStore(t, backend)
	sess, _ := s.CreateSession(context.Background(), "t", Settings{})
	s.AddMessage(&Message{ID: "m1"})

	backend.deleteErr = errors.New("boom")
	err := s.DeleteSession(context.Background(), sess.ID)
	if !errors.Is(err, ErrDeleteFailed) {
		t.Errorf("err = %v, want ErrDeleteFailed", err)
	}
	if len(s.Sessions()) != 1 || s.Current() == nil || len(s.Messages()) != 1 {
		t.Error("partial removal on backend failure")
	}
}

func TestDeleteActiveSessionClearsPointer(t *testing.T) {
	backend := &fakeBackend{}
	s := testStore(t, backend)
	sess, _ := s.CreateSession(context.Background(), "t", Settings{})
	s.AddMessage(&Message{ID: "m1"})

	if err := s.DeleteSession(context.Background(), sess.ID); err != nil {
		t.Fatal(err)
	}
	if s.Current() != nil {
		t.Error("active session not cleared")
	}
	if len(s.Messages()) != 0 {
		t.Error("message list not cleared")
	}
}

func TestLoadSessionsSelectsFirstWhenNoneActive(t *testing.T) {
	backend := &fakeBackend{sessions: []*Session{{ID: "a"}, {ID: "b"}}}
	s := testStore(t, backend)

	if err := s.LoadSessions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Current() == nil || s.Current().ID != "a" {
		t.Errorf("current = %v, want first session", s.Current())
	}
}

func TestLoadSessionsKeepsActive(t *testing.T) {
	backend := &fakeBackend{}
	s := testStore(t, backend)
	sess, _ := s.CreateSession(context.Background(), "mine", Settings{})

	backend.sessions = []*Session{{ID: "other"}, sess}
	if err := s.LoadSessions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Current().ID != sess.ID {
		t.Errorf("current = %v, want existing active session", s.Current().ID)
	}
}

func TestBanner(t *testing.T) {
	s := testStore(t, &fakeBackend{})
	s.SetBanner("upload failed: quota")
	if got := s.Banner(); got != "upload failed: quota" {
		t.Errorf("Banner() = %q", got)
	}
	s.SetBanner("")
	if got := s.Banner(); got != "" {
		t.Errorf("Banner() = %q, want empty", got)
	}
}
