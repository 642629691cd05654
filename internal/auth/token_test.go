package auth

import (
	"path/filepath"
	"sync"
	"testing"
)

func TestHolderGetSet(t *testing.T) {
	h := NewHolder("initial")
	if got := h.Get(); got != "initial" {
		t.Errorf("Get() = %q, want initial", got)
	}
	h.Set("rotated")
	if got := h.Get(); got != "rotated" {
		t.Errorf("Get() = %q, want rotated", got)
	}
}

func TestHolderConcurrentAccess(t *testing.T) {
	h := NewHolder("t0")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Set("t1")
		}()
		go func() {
			defer wg.Done()
			_ = h.Get()
		}()
	}
	wg.Wait()
}

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")

	if err := SaveToken(path, "secret-token"); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	tok, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if tok != "secret-token" {
		t.Errorf("LoadToken() = %q, want secret-token", tok)
	}
}

func TestLoadTokenMissing(t *testing.T) {
	tok, err := LoadToken(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("LoadToken() error = %v, want nil for missing file", err)
	}
	if tok != "" {
		t.Errorf("LoadToken() = %q, want empty", tok)
	}
}
