package auth

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Refresher obtains a fresh bearer token from the identity provider.
// It is an external collaborator; the transport invokes it once per 401.
type Refresher interface {
	Refresh(ctx context.Context) (token string, err error)
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context) (string, error)

func (f RefresherFunc) Refresh(ctx context.Context) (string, error) {
	return f(ctx)
}

// FileRefresher re-reads the profile token file. The file is the handoff
// point with the external identity flow: `rfpctl login` (or the operator)
// writes a fresh token there, and the next 401 picks it up.
type FileRefresher struct {
	Path string
}

func (r FileRefresher) Refresh(_ context.Context) (string, error) {
	return LoadToken(r.Path)
}

// Holder stores the current bearer token for concurrent readers.
// All requests read through the holder so a refresh is visible everywhere.
type Holder struct {
	mu    sync.RWMutex
	token string
}

// NewHolder creates a holder seeded with the given token.
func NewHolder(token string) *Holder {
	return &Holder{token: token}
}

// Get returns the current token.
func (h *Holder) Get() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Set replaces the current token.
func (h *Holder) Set(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

// LoadToken reads a token from the profile token file. A missing file
// yields an empty token, not an error.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveToken writes the token to the profile token file with 0600 permissions.
func SaveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0600)
}
