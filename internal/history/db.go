package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// dsnOptions puts the archive into WAL mode so the TUI and rfpctl can
// read concurrently, and makes writers wait out transient locks.
const dsnOptions = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// DB is the conversation archive backing store.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the archive database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}
	return &DB{conn}, nil
}
