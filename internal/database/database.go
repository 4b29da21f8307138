package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection.
type DB struct {
	*sql.DB
	Path string
}

// New opens (or creates) the sqlite database at the given path.
func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows a single writer; keep the pool small and long-lived.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, Path: path}, nil
}

// Initialize creates all required tables.
func (db *DB) Initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS fragments (
			id                 TEXT PRIMARY KEY,
			created_at         TEXT NOT NULL,
			source_kind        TEXT NOT NULL,
			source_locator     TEXT NOT NULL,
			summary            TEXT NOT NULL,
			concepts           TEXT NOT NULL, -- JSON array
			decision_rationale TEXT,
			attributes         TEXT NOT NULL  -- JSON object
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fragments_created_at ON fragments(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_fragments_source_kind ON fragments(source_kind)`,
		`CREATE TABLE IF NOT EXISTS capability_tokens (
			token_id           TEXT PRIMARY KEY,
			client_id          TEXT NOT NULL,
			scope              TEXT NOT NULL,
			issued_at          TEXT NOT NULL,
			expires_at         TEXT NOT NULL,
			max_context_tokens INTEGER NOT NULL,
			revoked            INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_expires_at ON capability_tokens(expires_at)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       TEXT NOT NULL,
			event_kind      TEXT NOT NULL,
			client_id       TEXT NOT NULL,
			hashed_token_id TEXT NOT NULL,
			hashed_query    TEXT NOT NULL DEFAULT '',
			tokens_served   INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
