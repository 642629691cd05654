package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rfpgpt/rfpgpt/internal/bus"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so run it again to check idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

func TestSessionUpsertAndList(t *testing.T) {
	db := testDB(t)

	s := &Session{ID: "s1", Title: "Pricing questions", Persona: "proposal-writer", CreatedAt: 1000}
	if err := db.UpsertSession(s); err != nil {
		t.Fatal(err)
	}

	// Update title.
	s.Title = "Pricing questions (revised)"
	if err := db.UpsertSession(s); err != nil {
		t.Fatal(err)
	}

	sessions, err := db.ListSessions(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].Title != "Pricing questions (revised)" {
		t.Errorf("title = %q, want revised title", sessions[0].Title)
	}
}

func TestGetSessionMissing(t *testing.T) {
	db := testDB(t)

	s, err := db.GetSession("missing")
	if err != nil {
		t.Fatal(err)
	}
	if s != nil {
		t.Errorf("got %v, want nil for missing session", s)
	}
}

func TestMessageUpsertIsIdempotent(t *testing.T) {
	db := testDB(t)

	m := &Message{SessionID: "s1", MsgID: "m1", Role: "assistant", Body: "partial", Status: "sending", Timestamp: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	m.Body = "final answer"
	m.Status = "delivered"
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("s1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Body != "final answer" || msgs[0].Status != "delivered" {
		t.Errorf("message = %+v, want updated body and status", msgs[0])
	}
}

func TestListMessagesKeysetPagination(t *testing.T) {
	db := testDB(t)

	for i := int64(1); i <= 5; i++ {
		m := &Message{SessionID: "s1", MsgID: string(rune('a' + i)), Role: "user", Body: "msg", Timestamp: i * 100}
		if err := db.UpsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := db.ListMessages("s1", 400, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages before ts=400, want 3", len(msgs))
	}
	if msgs[0].Timestamp != 300 {
		t.Errorf("first timestamp = %d, want 300 (descending)", msgs[0].Timestamp)
	}
}

func TestDeleteSessionRemovesTranscript(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertSession(&Session{ID: "s1", Title: "t"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&Message{SessionID: "s1", MsgID: "m1", Role: "user", Body: "hi", Timestamp: 100}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteSession("s1"); err != nil {
		t.Fatal(err)
	}
	msgs, err := db.ListMessages("s1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages after delete, want 0", len(msgs))
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)

	seed := []*Message{
		{SessionID: "s1", MsgID: "m1", Role: "assistant", Body: "The proposal deadline is Friday", Timestamp: 100},
		{SessionID: "s1", MsgID: "m2", Role: "assistant", Body: "Budget is under review", Timestamp: 200},
		{SessionID: "s2", MsgID: "m3", Role: "assistant", Body: "Another proposal draft", Timestamp: 300},
	}
	for _, m := range seed {
		if err := db.UpsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	results, err := db.SearchMessages("proposal", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	// Scoped to one session.
	results, err = db.SearchMessages("proposal", "s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d scoped results, want 1", len(results))
	}
	if results[0].Snippet == "" {
		t.Error("snippet should not be empty")
	}
}

type archiveBackend struct{}

func (archiveBackend) CreateChat(_ context.Context, title string, settings chat.Settings) (*chat.Session, error) {
	return &chat.Session{ID: "s1", Title: title, Settings: settings, CreatedAt: time.Now()}, nil
}
func (archiveBackend) DeleteChat(context.Context, string) error { return nil }
func (archiveBackend) ListChats(context.Context) ([]*chat.Session, error) {
	return nil, nil
}
func (archiveBackend) ListMessages(context.Context, string) ([]*chat.Message, error) {
	return nil, nil
}
func (archiveBackend) ListDocuments(context.Context, string) ([]*chat.DocumentContext, error) {
	return nil, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestArchiverPersistsTerminalMessages(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	store := chat.NewStore(archiveBackend{}, b, zap.NewNop())

	arch := NewArchiver(db, store, b, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	arch.Start(ctx)

	sess, err := store.CreateSession(context.Background(), "Q&A", chat.Settings{Persona: "proposal-writer"})
	if err != nil {
		t.Fatal(err)
	}

	store.AddMessage(&chat.Message{ID: "u1", Role: chat.RoleUser, Content: "hello", Status: chat.StatusDelivered, CreatedAt: time.Now()})
	// Placeholder in "sending" must not be archived yet.
	store.AddMessage(&chat.Message{ID: "a1", Role: chat.RoleAssistant, Content: "", Status: chat.StatusSending, CreatedAt: time.Now()})

	waitFor(t, func() bool {
		msgs, err := db.ListMessages(sess.ID, 0, 10)
		return err == nil && len(msgs) == 1
	})

	delivered := chat.StatusDelivered
	final := "done"
	store.UpdateMessage("a1", chat.MessagePatch{Content: &final, Status: &delivered})

	waitFor(t, func() bool {
		msgs, err := db.ListMessages(sess.ID, 0, 10)
		return err == nil && len(msgs) == 2
	})

	s, err := db.GetSession(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if s == nil || s.Persona != "proposal-writer" {
		t.Errorf("archived session = %+v, want persona carried over", s)
	}

	arch.Stop()
}
