// Package counter stores per-title view counts and their dashboard visibility.
package counter

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("news counter not found")
	ErrEmptyTitle = errors.New("news title is empty")
	// ErrStorage wraps failures of the underlying database. Callers may retry.
	ErrStorage = errors.New("counter storage failure")
)

// NewsCounter is the stored telemetry for a single news item.
type NewsCounter struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Count     int64     `json:"count"`
	Show      bool      `json:"show"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the data-access interface the HTTP layer depends on.
type Store interface {
	// RecordHit creates the counter with count 1 or increments it atomically.
	RecordHit(ctx context.Context, title string) error

	// Hide marks the counter as hidden. It reports whether a counter existed.
	Hide(ctx context.Context, title string) (bool, error)

	// Get returns the counter for title or ErrNotFound.
	Get(ctx context.Context, title string) (*NewsCounter, error)

	// ListAll returns every counter, newest first, hidden ones included.
	ListAll(ctx context.Context) ([]NewsCounter, error)
}
