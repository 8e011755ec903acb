// Package db provides the database connection and schema for data buckets.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Owner columns default to 0; exactly one owner group is non-zero per row
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS data_buckets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key_ TEXT NOT NULL,
			value TEXT NOT NULL DEFAULT '',
			expires INTEGER NOT NULL DEFAULT 0,
			character_id INTEGER NOT NULL DEFAULT 0,
			account_id INTEGER NOT NULL DEFAULT 0,
			npc_id INTEGER NOT NULL DEFAULT 0,
			bot_id INTEGER NOT NULL DEFAULT 0,
			zone_id INTEGER NOT NULL DEFAULT 0,
			instance_id INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_data_buckets_scope
			ON data_buckets(key_, character_id, account_id, npc_id, bot_id, zone_id, instance_id);
		CREATE INDEX IF NOT EXISTS idx_data_buckets_character ON data_buckets(character_id) WHERE character_id > 0;
		CREATE INDEX IF NOT EXISTS idx_data_buckets_account ON data_buckets(account_id) WHERE account_id > 0;
		CREATE INDEX IF NOT EXISTS idx_data_buckets_bot ON data_buckets(bot_id) WHERE bot_id > 0;
		CREATE INDEX IF NOT EXISTS idx_data_buckets_zone ON data_buckets(zone_id, instance_id) WHERE zone_id > 0;
	`)
	if err != nil {
		return fmt.Errorf("failed to create data_buckets table: %w", err)
	}

	// Partial index for the expired-row sweep
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_data_buckets_expires
		ON data_buckets(expires) WHERE expires > 0;
	`)
	if err != nil {
		return fmt.Errorf("failed to create idx_data_buckets_expires index: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
