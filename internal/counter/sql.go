package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/milckywayy/ISOD-NewsAnalytics/internal/db"
)

// SQLStore implements Store on top of the news_counters table.
// It works against both sqlite and postgres handles.
type SQLStore struct {
	db  *db.DB
	now func() time.Time
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(database *db.DB) *SQLStore {
	return &SQLStore{
		db:  database,
		now: time.Now,
	}
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	return title, nil
}

func (s *SQLStore) RecordHit(ctx context.Context, title string) error {
	title, err := normalizeTitle(title)
	if err != nil {
		return err
	}

	// Single-statement upsert: the engine serializes concurrent hits on the
	// same title, so no increment is lost.
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO news_counters (title, count, visible, created_at)
		VALUES (?, 1, TRUE, ?)
		ON CONFLICT (title) DO UPDATE SET count = news_counters.count + 1`),
		title, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: record hit for %q: %w", ErrStorage, title, err)
	}
	return nil
}

func (s *SQLStore) Hide(ctx context.Context, title string) (bool, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE news_counters SET visible = FALSE WHERE title = ?`), title)
	if err != nil {
		return false, fmt.Errorf("%w: hide %q: %w", ErrStorage, title, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: hide %q: %w", ErrStorage, title, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Get(ctx context.Context, title string) (*NewsCounter, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT id, title, count, visible, created_at
		FROM news_counters
		WHERE title = ?`), title)

	c, err := scanCounter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %q: %w", ErrStorage, title, err)
	}
	return c, nil
}

func (s *SQLStore) ListAll(ctx context.Context) ([]NewsCounter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, count, visible, created_at
		FROM news_counters
		ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list counters: %w", ErrStorage, err)
	}
	defer rows.Close()

	counters := []NewsCounter{}
	for rows.Next() {
		c, err := scanCounter(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan counter: %w", ErrStorage, err)
		}
		counters = append(counters, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list counters: %w", ErrStorage, err)
	}
	return counters, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCounter(row scanner) (*NewsCounter, error) {
	var c NewsCounter
	var createdAt string
	if err := row.Scan(&c.ID, &c.Title, &c.Count, &c.Show, &createdAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	c.CreatedAt = t
	return &c, nil
}
