package docs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/rfpgpt/rfpgpt/internal/bus"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"github.com/rfpgpt/rfpgpt/internal/transport"
	"go.uber.org/zap"
)

// fakeAPI scripts per-filename upload outcomes.
type fakeAPI struct {
	failFiles map[string]error
	uploads   []string
}

func (f *fakeAPI) UploadDocument(_ context.Context, filename string, _ io.Reader, _ string) (*transport.UploadResult, error) {
	f.uploads = append(f.uploads, filename)
	if err, ok := f.failFiles[filename]; ok {
		return nil, err
	}
	return &transport.UploadResult{
		ID:               "doc-" + filename,
		Filename:         filename,
		Size:             2 * 1024 * 1024,
		Type:             "application/pdf",
		ProcessingStatus: "processing",
	}, nil
}

func (f *fakeAPI) ListDocuments(context.Context, string) ([]*chat.DocumentContext, error) {
	return nil, nil
}

func (f *fakeAPI) AnalyzeDocument(context.Context, string) (*chat.DocumentContext, error) {
	return &chat.DocumentContext{ID: "d1", Status: chat.ProcessingReady}, nil
}

func (f *fakeAPI) SearchDocuments(context.Context, string, string) ([]chat.Source, error) {
	return nil, nil
}

type fakeBackend struct {
	createErr   error
	createCalls int
}

func (f *fakeBackend) CreateChat(_ context.Context, title string, settings chat.Settings) (*chat.Session, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &chat.Session{ID: fmt.Sprintf("s%d", f.createCalls), Title: title, Settings: settings}, nil
}

func (f *fakeBackend) DeleteChat(context.Context, string) error { return nil }
func (f *fakeBackend) ListChats(context.Context) ([]*chat.Session, error) {
	return nil, nil
}
func (f *fakeBackend) ListMessages(context.Context, string) ([]*chat.Message, error) {
	return nil, nil
}
func (f *fakeBackend) ListDocuments(context.Context, string) ([]*chat.DocumentContext, error) {
	return nil, nil
}

func testUploader(t *testing.T, api *fakeAPI, backend *fakeBackend) (*Uploader, *chat.Store) {
	t.Helper()
	b := bus.New()
	store := chat.NewStore(backend, b, zap.NewNop())
	u := NewUploader(api, store, b, chat.Settings{}, zap.NewNop())
	return u, store
}

func file(name string) File {
	return File{Name: name, Size: 5, MIME: "application/pdf", Content: strings.NewReader("x")}
}

func TestUploadFromPanelRequiresSession(t *testing.T) {
	u, _ := testUploader(t, &fakeAPI{}, &fakeBackend{})

	err := u.UploadFromPanel(context.Background(), file("a.pdf"))
	if !errors.Is(err, chat.ErrNoActiveSession) {
		t.Errorf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestUploadFromChatAutoCreatesSession(t *testing.T) {
	backend := &fakeBackend{}
	u, store := testUploader(t, &fakeAPI{}, backend)

	if err := u.UploadFromChat(context.Background(), file("rfp.pdf")); err != nil {
		t.Fatal(err)
	}
	if backend.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", backend.createCalls)
	}
	if store.Current() == nil {
		t.Error("no active session after chat-panel upload")
	}
}

func TestUploadMixedOutcomeOrderAndBanner(t *testing.T) {
	api := &fakeAPI{failFiles: map[string]error{
		"broken.pdf": errors.New("virus scan rejected"),
	}}
	backend := &fakeBackend{}
	u, store := testUploader(t, api, backend)
	_, _ = store.CreateSession(context.Background(), "t", chat.Settings{})

	if err := u.UploadFromPanel(context.Background(), file("good.pdf"), file("broken.pdf")); err != nil {
		t.Fatal(err)
	}

	msgs := store.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want exactly 2 in submission order", len(msgs))
	}

	first, second := msgs[0], msgs[1]
	if first.Status != chat.StatusDelivered || len(first.Attachments) != 1 {
		t.Errorf("first message = %+v, want delivered with attachment", first)
	}
	if first.Attachments[0].UploadStatus != chat.UploadCompleted {
		t.Errorf("attachment status = %q, want completed", first.Attachments[0].UploadStatus)
	}
	if !strings.Contains(first.Content, "2.00 MB") {
		t.Errorf("content = %q, want size in MB with 2 decimals", first.Content)
	}

	if second.Status != chat.StatusError || len(second.Attachments) != 0 {
		t.Errorf("second message = %+v, want error without attachment", second)
	}
	if !strings.Contains(second.Content, "broken.pdf") {
		t.Errorf("content = %q, want failing filename", second.Content)
	}

	if store.Banner() != "virus scan rejected" {
		t.Errorf("banner = %q, want last failure's error", store.Banner())
	}
}

func TestUploadFailureDoesNotAbortRemaining(t *testing.T) {
	api := &fakeAPI{failFiles: map[string]error{
		"first.pdf": errors.New("boom"),
	}}
	u, store := testUploader(t, api, &fakeBackend{})
	_, _ = store.CreateSession(context.Background(), "t", chat.Settings{})

	if err := u.UploadFromPanel(context.Background(), file("first.pdf"), file("second.pdf")); err != nil {
		t.Fatal(err)
	}
	if len(api.uploads) != 2 {
		t.Errorf("uploads attempted = %v, want both files", api.uploads)
	}
	msgs := store.Messages()
	if len(msgs) != 2 || msgs[1].Status != chat.StatusDelivered {
		t.Errorf("second file not uploaded after first failed: %+v", msgs)
	}
}
