package history

import (
	"context"

	"github.com/rfpgpt/rfpgpt/internal/bus"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"go.uber.org/zap"
)

// Archiver mirrors the in-memory session state into the archive database.
// It subscribes to session.* and message.* events on the bus and writes
// behind: the in-memory store stays authoritative, the archive is a
// best-effort transcript for later search. Messages are persisted only
// once they reach a terminal status, so streaming chunk updates never
// touch the database.
type Archiver struct {
	db     *DB
	store  *chat.Store
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewArchiver creates a new archiver.
func NewArchiver(db *DB, store *chat.Store, b *bus.Bus, logger *zap.Logger) *Archiver {
	return &Archiver{
		db:     db,
		store:  store,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to store events on the bus.
func (a *Archiver) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	// Empty namespace matches every kind; the switch below picks out
	// the session and message events.
	ch, unsub := a.bus.Subscribe("", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				a.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the archiver.
func (a *Archiver) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *Archiver) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindSessionCreated:
		id, ok := evt.Payload.(string)
		if !ok {
			return
		}
		if err := a.archiveSession(id); err != nil {
			a.logger.Error("failed to archive session", zap.Error(err), zap.String("session_id", id))
		}
	case bus.KindSessionDeleted:
		id, ok := evt.Payload.(string)
		if !ok {
			return
		}
		if err := a.db.DeleteSession(id); err != nil {
			a.logger.Error("failed to delete archived session", zap.Error(err), zap.String("session_id", id))
		}
	case bus.KindMessageAdded, bus.KindMessageUpdated:
		ref, ok := evt.Payload.(bus.MessageRef)
		if !ok {
			return
		}
		if err := a.archiveMessage(ref); err != nil {
			a.logger.Error("failed to archive message", zap.Error(err), zap.String("msg_id", ref.MessageID))
		}
	}
}

func (a *Archiver) archiveSession(id string) error {
	for _, s := range a.store.Sessions() {
		if s.ID != id {
			continue
		}
		return a.db.UpsertSession(&Session{
			ID:            s.ID,
			Title:         s.Title,
			Persona:       s.Settings.Persona,
			ResponseStyle: s.Settings.ResponseStyle,
			CreatedAt:     s.CreatedAt.UnixMilli(),
		})
	}
	return nil
}

// archiveMessage persists a message snapshot if it has reached a terminal
// status. The snapshot is read back from the store; if the session was
// switched away before this event drained, the message is gone from the
// in-memory list and the event is dropped.
func (a *Archiver) archiveMessage(ref bus.MessageRef) error {
	m := a.store.Message(ref.MessageID)
	if m == nil || !m.Status.Terminal() {
		return nil
	}
	return a.db.UpsertMessage(&Message{
		SessionID:   ref.SessionID,
		MsgID:       m.ID,
		Role:        string(m.Role),
		Body:        m.Content,
		Status:      string(m.Status),
		Confidence:  m.Confidence,
		SourceCount: len(m.Sources),
		Timestamp:   m.CreatedAt.UnixMilli(),
	})
}
