package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.APIBaseURL = "https://bi.example.com"
	cfg.DefaultProfile = "work"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.APIBaseURL != "https://bi.example.com" {
		t.Errorf("APIBaseURL = %q, want %q", loaded.APIBaseURL, "https://bi.example.com")
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("Load() error = %v, want defaults for missing file", err)
	}
	if cfg.Persona != "proposal-writer" {
		t.Errorf("Persona = %q, want default", cfg.Persona)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("RFPGPT_API_BASE_URL", "https://override.example.com")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	cfg := Default()
	cfg.APIBaseURL = "https://file.example.com"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.APIBaseURL != "https://override.example.com" {
		t.Errorf("APIBaseURL = %q, want env override to win", loaded.APIBaseURL)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
