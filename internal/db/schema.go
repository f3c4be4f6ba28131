package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Items themselves live in the external
// record store; this database holds accounts, settings and auction state.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'staff' CHECK (role IN ('admin', 'staff', 'bidder')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS auctions (
    item_id      TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    ends_at      DATETIME NOT NULL,
    starting_bid REAL NOT NULL DEFAULT 0 CHECK (starting_bid >= 0),
    current_bid  REAL NOT NULL DEFAULT 0,
    bid_count    INTEGER NOT NULL DEFAULT 0,
    high_bidder  TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS bids (
    id        TEXT PRIMARY KEY,
    item_id   TEXT NOT NULL REFERENCES auctions(item_id) ON DELETE CASCADE,
    bidder    TEXT NOT NULL,
    amount    REAL NOT NULL CHECK (amount > 0),
    placed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_bids_item ON bids(item_id, placed_at);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{}

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
