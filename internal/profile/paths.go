package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns the rfpgpt home directory, ~/.rfpgpt unless
// RFPGPT_HOME overrides it.
func BaseDir() string {
	if dir := os.Getenv("RFPGPT_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rfpgpt")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// LockPath returns the lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// TokenPath returns the bearer-token file path for a profile.
func TokenPath(name string) string {
	return filepath.Join(Dir(name), "token")
}

// ArchiveDBPath returns the transcript archive rfpgpt.db path.
func ArchiveDBPath(name string) string {
	return filepath.Join(Dir(name), "rfpgpt.db")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the client log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "rfpgpt.log")
}

// EnsureDir creates the profile directory tree with owner-only
// permissions. LogDir is the deepest path, so one MkdirAll covers
// the whole tree.
func EnsureDir(name string) error {
	return os.MkdirAll(LogDir(name), 0700)
}
