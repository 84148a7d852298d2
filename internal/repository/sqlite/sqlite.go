// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// We use modernc.org/sqlite rather than mattn/go-sqlite3: it is a pure Go
// translation of SQLite, so no C compiler is needed and cross-compilation
// just works. The driver registers itself with database/sql under the name
// "sqlite" via the blank import below.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository
// interfaces. The server owns the lifecycle: New opens and migrates,
// Close flushes the WAL and releases the file lock on shutdown.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
// Use ":memory:" in tests for a throwaway database.
//
// Pragmas go in the DSN, not a one-off Exec: database/sql pools
// connections, and a PRAGMA run on one connection leaves the others at
// SQLite defaults. The driver replays DSN pragmas on every new
// connection. WAL allows concurrent reads while a write is in flight;
// foreign keys are off by default and reminders cascade from events.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate applies the schema. CREATE TABLE IF NOT EXISTS keeps this safe to
// run on every startup.
//
// Ownership is canonical: watched_channels.user_id and events.user_id hold
// the internal user ID; the chat-platform ID lives only on users as a
// unique lookup key.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			platform_id    TEXT NOT NULL UNIQUE,
			username       TEXT NOT NULL,
			calendar_token TEXT NOT NULL UNIQUE,
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS watched_channels (
			id           TEXT PRIMARY KEY,
			community_id TEXT NOT NULL,
			channel_id   TEXT NOT NULL,
			channel_name TEXT NOT NULL DEFAULT '',
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(channel_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_watched_channels_channel_id
			ON watched_channels(channel_id);
		CREATE INDEX IF NOT EXISTS idx_watched_channels_user_id
			ON watched_channels(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating watched_channels table: %w", err)
	}

	// user_id is nullable: ingestion stores orphan events when no owner
	// can be resolved rather than dropping them.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT REFERENCES users(id),
			title                TEXT NOT NULL,
			description          TEXT NOT NULL DEFAULT '',
			location             TEXT NOT NULL DEFAULT '',
			start_time           DATETIME NOT NULL,
			end_time             DATETIME NOT NULL,
			source_url           TEXT NOT NULL DEFAULT '',
			external_calendar_id TEXT NOT NULL DEFAULT '',
			created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_events_user_id ON events(user_id);
		CREATE INDEX IF NOT EXISTS idx_events_start_time ON events(start_time);
	`)
	if err != nil {
		return fmt.Errorf("creating events table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS reminders (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id       TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			offset_seconds INTEGER NOT NULL,
			description    TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_reminders_event_id ON reminders(event_id);
	`)
	if err != nil {
		return fmt.Errorf("creating reminders table: %w", err)
	}

	return nil
}
