// Package oauth implements the three-legged OAuth 1.0a login against the USOS API.
package oauth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrAuthorizationDenied means the provider rejected the token or verifier,
	// or the request token is unknown or expired. The user must start over.
	ErrAuthorizationDenied = errors.New("oauth authorization denied")
	// ErrUpstreamUnavailable means the provider could not be reached or answered
	// with something other than a usable response.
	ErrUpstreamUnavailable = errors.New("oauth provider unavailable")
	ErrInvalidProfile      = errors.New("invalid user profile from provider")
	// ErrStateStorage means the pending request token could not be persisted
	// or loaded. The provider itself is fine.
	ErrStateStorage = errors.New("oauth request token storage failure")
)

const defaultTimeout = 30 * time.Second

// Authenticator is the login flow the HTTP layer drives.
type Authenticator interface {
	// BeginAuth obtains a request token and returns the provider URL the
	// browser must visit. callbackURL is where the provider sends it back.
	BeginAuth(ctx context.Context, callbackURL string) (string, error)

	// CompleteAuth exchanges the request token and verifier for an access
	// credential and fetches the authenticated user's profile.
	CompleteAuth(ctx context.Context, token, verifier string) (*Profile, error)
}

// Profile is the subset of the provider's user record the service keeps.
type Profile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName joins the first and last name.
func (p *Profile) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// Validate checks that required fields are present.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return ErrInvalidProfile
	}
	return nil
}

// Config holds the provider credentials.
type Config struct {
	BaseAddress    string // e.g. https://apps.usos.pw.edu.pl/
	ConsumerKey    string
	ConsumerSecret string
	Scopes         string // optional, pipe separated
	// Timeout bounds every call to the provider. Zero means 30s.
	Timeout time.Duration
}
