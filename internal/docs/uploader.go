package docs

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rfpgpt/rfpgpt/internal/bus"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"github.com/rfpgpt/rfpgpt/internal/transport"
	"go.uber.org/zap"
)

// Follow-up questions attached to a successful upload's transcript message.
var analysisFollowUps = []string{
	"Summarize the key requirements in this document.",
	"What are the mandatory compliance items?",
	"Draft an executive summary for the response.",
}

// File is one file submitted for upload.
type File struct {
	Name    string
	Size    int64
	MIME    string
	Content io.Reader
}

// API is the transport surface the uploader depends on.
type API interface {
	UploadDocument(ctx context.Context, filename string, content io.Reader, sessionID string) (*transport.UploadResult, error)
	ListDocuments(ctx context.Context, sessionID string) ([]*chat.DocumentContext, error)
	AnalyzeDocument(ctx context.Context, documentID string) (*chat.DocumentContext, error)
	SearchDocuments(ctx context.Context, sessionID, query string) ([]chat.Source, error)
}

// SessionCreator creates a session for the chat-panel upload path when none
// is active.
type SessionCreator interface {
	CreateSession(ctx context.Context, title string, settings chat.Settings) (*chat.Session, error)
}

// Uploader runs document uploads and reports their outcomes as synthesized
// transcript messages. Files within one user action are uploaded strictly
// one at a time, in submission order, so the transcript reads as a
// narrative; a failed file does not stop the remaining ones.
type Uploader struct {
	api      API
	store    *chat.Store
	bus      *bus.Bus
	logger   *zap.Logger
	defaults chat.Settings
}

// NewUploader creates a document uploader.
func NewUploader(api API, store *chat.Store, b *bus.Bus, defaults chat.Settings, logger *zap.Logger) *Uploader {
	return &Uploader{
		api:      api,
		store:    store,
		bus:      b,
		logger:   logger,
		defaults: defaults,
	}
}

// UploadFromPanel uploads files from the document panel. This path requires
// an active session and fails with ErrNoActiveSession otherwise; it never
// creates one implicitly. The asymmetry with UploadFromChat is deliberate.
func (u *Uploader) UploadFromPanel(ctx context.Context, files ...File) error {
	sess := u.store.Current()
	if sess == nil {
		return chat.ErrNoActiveSession
	}
	u.uploadAll(ctx, sess.ID, files)
	return nil
}

// UploadFromChat uploads files from the chat composer, creating a session
// first when none is active (titled after the first file).
func (u *Uploader) UploadFromChat(ctx context.Context, files ...File) error {
	sess := u.store.Current()
	if sess == nil {
		if len(files) == 0 {
			return nil
		}
		created, err := u.store.CreateSession(ctx, files[0].Name, u.defaults)
		if err != nil {
			return err
		}
		sess = created
	}
	u.uploadAll(ctx, sess.ID, files)
	return nil
}

func (u *Uploader) uploadAll(ctx context.Context, sessionID string, files []File) {
	for _, f := range files {
		u.uploadOne(ctx, sessionID, f)
	}
	u.refresh(sessionID)
}

func (u *Uploader) uploadOne(ctx context.Context, sessionID string, f File) {
	result, err := u.api.UploadDocument(ctx, f.Name, f.Content, sessionID)
	if err != nil {
		u.logger.Error("document upload failed",
			zap.String("filename", f.Name),
			zap.Error(err))
		u.store.AddMessage(&chat.Message{
			ID:        uuid.NewString(),
			Role:      chat.RoleAssistant,
			Content:   fmt.Sprintf("Upload of %q failed: %s", f.Name, err),
			Status:    chat.StatusError,
			CreatedAt: time.Now(),
		})
		// The banner always reflects the most recent failure.
		u.store.SetBanner(err.Error())
		u.bus.Publish(bus.Event{
			Kind:      bus.KindDocumentFailed,
			Timestamp: time.Now(),
			Payload:   map[string]string{"filename": f.Name, "error": err.Error()},
		})
		return
	}

	sizeMB := float64(result.Size) / (1024 * 1024)
	u.store.AddMessage(&chat.Message{
		ID:   uuid.NewString(),
		Role: chat.RoleAssistant,
		Content: fmt.Sprintf("Uploaded %q (%.2f MB). Processing status: %s.",
			result.Filename, sizeMB, result.ProcessingStatus),
		Status:    chat.StatusDelivered,
		FollowUps: analysisFollowUps,
		Attachments: []chat.Attachment{{
			ID:           result.ID,
			Filename:     result.Filename,
			Size:         result.Size,
			MIME:         result.Type,
			UploadStatus: chat.UploadCompleted,
		}},
		CreatedAt: time.Now(),
	})
	u.bus.Publish(bus.Event{
		Kind:      bus.KindDocumentUploaded,
		Timestamp: time.Now(),
		Payload:   map[string]string{"document_id": result.ID, "filename": result.Filename},
	})
}

// refresh reloads the session's document list in the background. Documents
// are non-critical to chat function, so failures are logged, never surfaced.
func (u *Uploader) refresh(sessionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		docs, err := u.api.ListDocuments(ctx, sessionID)
		if err != nil {
			u.logger.Warn("document list refresh failed",
				zap.String("session_id", sessionID),
				zap.Error(err))
			return
		}
		// Drop the result if the user switched sessions meanwhile.
		cur := u.store.Current()
		if cur == nil || cur.ID != sessionID {
			return
		}
		u.store.SetDocuments(docs)
	}()
}

// Watch refreshes the document list whenever the active session changes.
// Blocks until ctx is cancelled; run it in its own goroutine.
func (u *Uploader) Watch(ctx context.Context) {
	ch, unsub := u.bus.Subscribe(bus.KindSessionSwitched, 16)
	defer unsub()
	for {
		select {
		case evt := <-ch:
			id, ok := evt.Payload.(string)
			if !ok || id == "" {
				continue
			}
			u.refresh(id)
		case <-ctx.Done():
			return
		}
	}
}

// Search runs a relevance search across the active session's documents.
func (u *Uploader) Search(ctx context.Context, query string) ([]chat.Source, error) {
	sess := u.store.Current()
	if sess == nil {
		return nil, chat.ErrNoActiveSession
	}
	return u.api.SearchDocuments(ctx, sess.ID, query)
}

// Analyze requests a fresh analysis of a document and replaces the stored
// context wholesale on success.
func (u *Uploader) Analyze(ctx context.Context, documentID string) (*chat.DocumentContext, error) {
	doc, err := u.api.AnalyzeDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if sess := u.store.Current(); sess != nil {
		u.refresh(sess.ID)
	}
	return doc, nil
}
