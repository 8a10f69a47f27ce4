// Package session keeps the admin login state in signed, encrypted cookies.
package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"

	"github.com/milckywayy/ISOD-NewsAnalytics/internal/oauth"
)

const (
	CookieName = "newsanalytics_session"

	defaultMaxAge = 7 * 24 * 60 * 60 // 7 days

	keyUserID      = "user_id"
	keyDisplayName = "display_name"
	keyLoggedIn    = "logged_in"
)

var ErrSecretTooShort = errors.New("session secret must be at least 16 bytes")

// Identity is what a browser session knows about its user.
type Identity struct {
	UserID      string
	DisplayName string
	LoggedIn    bool
}

// Options configures a Manager.
type Options struct {
	Secret []byte
	Admins []string
	Secure bool // set the Secure cookie attribute
	MaxAge int  // seconds, defaults to 7 days
}

// Manager reads and writes per-browser sessions. The server keeps no
// session table; everything lives in the cookie.
type Manager struct {
	store  *sessions.CookieStore
	admins map[string]struct{}
}

// NewManager creates a Manager whose cookie keys are derived from opts.Secret.
func NewManager(opts Options) (*Manager, error) {
	if len(opts.Secret) < 16 {
		return nil, ErrSecretTooShort
	}

	hashKey, err := deriveKey(opts.Secret, "newsanalytics session hash key", 64)
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(opts.Secret, "newsanalytics session block key", 32)
	if err != nil {
		return nil, err
	}

	maxAge := opts.MaxAge
	if maxAge == 0 {
		maxAge = defaultMaxAge
	}

	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		// Lax so the cookie survives the provider's top-level redirect back to /login
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(maxAge)

	admins := make(map[string]struct{}, len(opts.Admins))
	for _, id := range opts.Admins {
		if id != "" {
			admins[id] = struct{}{}
		}
	}

	return &Manager{store: store, admins: admins}, nil
}

func deriveKey(secret []byte, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return key, nil
}

// session returns the request's session. An undecodable cookie yields a
// fresh, empty session.
func (m *Manager) session(r *http.Request) *sessions.Session {
	sess, err := m.store.Get(r, CookieName)
	if err != nil || sess == nil {
		sess = sessions.NewSession(m.store, CookieName)
		opts := *m.store.Options
		sess.Options = &opts
		sess.IsNew = true
	}
	return sess
}

// Login stores the profile's identity in the browser session.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, profile *oauth.Profile) error {
	sess := m.session(r)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Values[keyUserID] = profile.ID
	sess.Values[keyDisplayName] = profile.DisplayName()
	sess.Values[keyLoggedIn] = true
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Current returns the identity stored in the request's session.
func (m *Manager) Current(r *http.Request) Identity {
	sess := m.session(r)
	userID, _ := sess.Values[keyUserID].(string)
	displayName, _ := sess.Values[keyDisplayName].(string)
	loggedIn, _ := sess.Values[keyLoggedIn].(bool)
	return Identity{
		UserID:      userID,
		DisplayName: displayName,
		LoggedIn:    loggedIn && userID != "",
	}
}

// IsLoggedIn reports whether the request carries a logged-in session.
func (m *Manager) IsLoggedIn(r *http.Request) bool {
	return m.Current(r).LoggedIn
}

// IsAdmin reports whether userID is on the admin allow-list.
func (m *Manager) IsAdmin(userID string) bool {
	if userID == "" {
		return false
	}
	_, ok := m.admins[userID]
	return ok
}

// Logout clears the session and expires the cookie. Safe to call without a session.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess := m.session(r)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
