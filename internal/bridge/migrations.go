package bridge

import (
	"database/sql"
	"fmt"
	"time"
)

// migration is one embedded schema migration. The slice is append-only;
// versions are applied in order and recorded in schema_migrations.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	email TEXT NOT NULL,
	email_verified INTEGER NOT NULL DEFAULT 0,
	avatar_url TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chats_user_status ON chats(user_id, status);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_status ON messages(chat_id, status);

CREATE TABLE IF NOT EXISTS devices (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	fingerprint TEXT NOT NULL UNIQUE,
	last_sync_at INTEGER,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_config (
	user_id TEXT PRIMARY KEY,
	mode TEXT NOT NULL DEFAULT 'hybrid',
	auto_sync INTEGER NOT NULL DEFAULT 1,
	sync_interval INTEGER NOT NULL DEFAULT 300,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_events (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	snapshot TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	user_id TEXT NOT NULL,
	device_id TEXT NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sync_events_synced ON sync_events(synced, timestamp);
CREATE INDEX IF NOT EXISTS idx_sync_events_user ON sync_events(user_id, synced);
`,
	},
}

// migrate applies all pending migrations inside the runtime's connection.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL,
		description TEXT NOT NULL
	);`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration V%d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.Version, time.Now().Unix(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration V%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
