// internal/db/migrations.go
package db

import "fmt"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS news_counters (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    title       TEXT UNIQUE NOT NULL,
    count       INTEGER NOT NULL DEFAULT 1 CHECK (count >= 1),
    visible     INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS oauth_request_tokens (
    token         TEXT PRIMARY KEY,
    secret        TEXT NOT NULL,
    callback_url  TEXT NOT NULL,
    created_at    TEXT NOT NULL,
    expires_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_oauth_request_tokens_expires_at ON oauth_request_tokens(expires_at);

CREATE TABLE IF NOT EXISTS app_settings (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS news_counters (
    id          BIGSERIAL PRIMARY KEY,
    title       TEXT UNIQUE NOT NULL,
    count       BIGINT NOT NULL DEFAULT 1 CHECK (count >= 1),
    visible     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS oauth_request_tokens (
    token         TEXT PRIMARY KEY,
    secret        TEXT NOT NULL,
    callback_url  TEXT NOT NULL,
    created_at    TEXT NOT NULL,
    expires_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_oauth_request_tokens_expires_at ON oauth_request_tokens(expires_at);

CREATE TABLE IF NOT EXISTS app_settings (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
`

func (db *DB) RunMigrations() error {
	schema := sqliteSchema
	if db.dialect == DialectPostgres {
		schema = postgresSchema
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to run %s migrations: %w", db.dialect, err)
	}
	return nil
}
