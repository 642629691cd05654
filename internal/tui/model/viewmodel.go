package model

import (
	"context"
	"mime"
	"os"
	"path/filepath"

	"github.com/rfpgpt/rfpgpt/internal/bus"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"github.com/rfpgpt/rfpgpt/internal/docs"
	"github.com/rfpgpt/rfpgpt/internal/history"
	"github.com/rfpgpt/rfpgpt/internal/send"
	"github.com/rfpgpt/rfpgpt/internal/tui/ui"
)

// ViewModel bridges the session store and pipelines to the UI. The store
// stays the single source of truth; the view model only signals refreshes
// and adapts operations to UI-shaped calls.
type ViewModel struct {
	store    *chat.Store
	pipeline *send.Pipeline
	uploader *docs.Uploader
	archive  *history.DB
	bus      *bus.Bus

	Flash *ui.FlashModel

	refreshCh chan struct{}
}

// NewViewModel creates a view model over the assembled client components.
func NewViewModel(store *chat.Store, pipeline *send.Pipeline, uploader *docs.Uploader, archive *history.DB, b *bus.Bus) *ViewModel {
	return &ViewModel{
		store:     store,
		pipeline:  pipeline,
		uploader:  uploader,
		archive:   archive,
		bus:       b,
		Flash:     ui.NewFlashModel(),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

// Start forwards store mutations on the bus into coalesced refresh signals.
func (vm *ViewModel) Start(ctx context.Context) {
	ch, unsub := vm.bus.Subscribe("", 64)
	go func() {
		defer unsub()
		for {
			select {
			case <-ch:
				vm.signalRefresh()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Sessions returns the current session list snapshot.
func (vm *ViewModel) Sessions() []*chat.Session {
	return vm.store.Sessions()
}

// Messages returns the active session's transcript snapshot.
func (vm *ViewModel) Messages() []*chat.Message {
	return vm.store.Messages()
}

// Documents returns the active session's document list snapshot.
func (vm *ViewModel) Documents() []*chat.DocumentContext {
	return vm.store.Documents()
}

// Current returns the active session, or nil.
func (vm *ViewModel) Current() *chat.Session {
	return vm.store.Current()
}

// Banner returns the current error banner text.
func (vm *ViewModel) Banner() string {
	return vm.store.Banner()
}

// ClearBanner dismisses the error banner.
func (vm *ViewModel) ClearBanner() {
	vm.store.SetBanner("")
}

// LoadSessions refreshes the session list from the backend.
func (vm *ViewModel) LoadSessions(ctx context.Context) error {
	return vm.store.LoadSessions(ctx)
}

// NewSession creates a session and makes it active.
func (vm *ViewModel) NewSession(ctx context.Context, title string, defaults chat.Settings) error {
	_, err := vm.store.CreateSession(ctx, title, defaults)
	return err
}

// DeleteSession deletes the given session.
func (vm *ViewModel) DeleteSession(ctx context.Context, id string) error {
	return vm.store.DeleteSession(ctx, id)
}

// SwitchTo activates a session and loads its transcript.
func (vm *ViewModel) SwitchTo(ctx context.Context, sess *chat.Session) error {
	vm.store.SetCurrentSession(sess)
	return vm.store.LoadMessages(ctx)
}

// Send submits user input through the send pipeline.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	return vm.pipeline.Send(ctx, text)
}

// Sending reports whether the active session has a send in flight.
func (vm *ViewModel) Sending() bool {
	sess := vm.store.Current()
	if sess == nil {
		return false
	}
	return vm.pipeline.InFlight(sess.ID)
}

// UploadPath uploads a local file through the document-panel path, which
// requires an active session.
func (vm *ViewModel) UploadPath(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return vm.uploader.UploadFromPanel(ctx, docs.File{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		MIME:    mimeType,
		Content: f,
	})
}

// SearchArchive runs a full-text search over the local transcript archive.
func (vm *ViewModel) SearchArchive(query string) ([]history.SearchResult, error) {
	return vm.archive.SearchMessages(query, "", 50)
}
