// Package settings persists small application values in the app_settings table.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/milckywayy/ISOD-NewsAnalytics/internal/db"
)

// Store handles key-value storage in app_settings.
type Store struct {
	db *db.DB
}

// NewStore creates a new Store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Get retrieves a value by key. Returns empty string if not found.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT value FROM app_settings WHERE key = ?"), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores a value by key (upsert).
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO app_settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`), key, value, now())
	return err
}

// GetOrCreate returns the stored value for key, storing generate()'s result
// first if the key is absent. Concurrent callers all observe the same value.
func (s *Store) GetOrCreate(ctx context.Context, key string, generate func() (string, error)) (string, bool, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if value != "" {
		return value, false, nil
	}

	candidate, err := generate()
	if err != nil {
		return "", false, err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO app_settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO NOTHING
	`), key, candidate, now())
	if err != nil {
		return "", false, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return candidate, true, nil
	}

	// Lost the race to another writer
	value, err = s.Get(ctx, key)
	return value, false, err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
