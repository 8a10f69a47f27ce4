package oauth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/milckywayy/ISOD-NewsAnalytics/internal/db"
)

// ErrStateNotFound is returned when a request token is not found or expired.
var ErrStateNotFound = errors.New("oauth request token not found or expired")

const defaultRequestTokenTTL = 10 * time.Minute

// RequestToken is the temporary credential held between BeginAuth and CompleteAuth.
type RequestToken struct {
	Token       string
	Secret      string
	CallbackURL string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// StateStore manages pending request tokens in the database.
type StateStore struct {
	db  *db.DB
	ttl time.Duration
	now func() time.Time
}

// NewStateStore creates a new state store.
func NewStateStore(database *db.DB) *StateStore {
	return &StateStore{
		db:  database,
		ttl: defaultRequestTokenTTL,
		now: time.Now,
	}
}

// Save stores a request token with a 10-minute expiry.
func (s *StateStore) Save(ctx context.Context, rt *RequestToken) error {
	now := s.now().UTC()
	rt.CreatedAt = now
	rt.ExpiresAt = now.Add(s.ttl)

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO oauth_request_tokens (token, secret, callback_url, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`),
		rt.Token, rt.Secret, rt.CallbackURL,
		rt.CreatedAt.Format(time.RFC3339), rt.ExpiresAt.Format(time.RFC3339))
	return err
}

// Take retrieves and deletes a request token in one statement, so a token
// can be redeemed at most once.
func (s *StateStore) Take(ctx context.Context, token string) (*RequestToken, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`
		DELETE FROM oauth_request_tokens
		WHERE token = ? AND expires_at > ?
		RETURNING token, secret, callback_url, created_at, expires_at`),
		token, s.now().UTC().Format(time.RFC3339))
	return scanRequestToken(row)
}

// CleanupExpired removes all expired request tokens and returns how many were removed.
func (s *StateStore) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM oauth_request_tokens WHERE expires_at <= ?"),
		s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRequestToken(row *sql.Row) (*RequestToken, error) {
	var rt RequestToken
	var createdAt, expiresAt string

	err := row.Scan(&rt.Token, &rt.Secret, &rt.CallbackURL, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, err
	}

	rt.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	rt.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	return &rt, nil
}
