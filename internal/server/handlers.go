package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/milckywayy/ISOD-NewsAnalytics/internal/counter"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/log"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/oauth"
)

const (
	msgMissingTitle   = "No 'title' parameter was given."
	msgTrackFailed    = "Failed to record the view."
	msgAuthFailed     = "Authorization failed. Please try again."
	msgUpstreamFailed = "USOS is not responding right now. Please try again later."
	msgLoginFailed    = "Login is temporarily unavailable. Please try again later."
)

// handleTrack records one view of a news item.
// GET /track?title=... (id is accepted as an alias)
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if strings.TrimSpace(title) == "" {
		title = r.URL.Query().Get("id")
	}
	if strings.TrimSpace(title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgMissingTitle})
		return
	}

	if err := s.counters.RecordHit(r.Context(), title); err != nil {
		if errors.Is(err, counter.ErrEmptyTitle) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgMissingTitle})
			return
		}
		log.FromContext(r.Context()).Error("failed to record hit", "title", title, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgTrackFailed})
		return
	}

	s.telemetry.RecordTrackHit(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"message": "Success!"})
}

// handleIndex renders the dashboard for admins.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	news, err := s.counters.ListAll(r.Context())
	if err != nil {
		log.FromContext(r.Context()).Error("failed to list counters", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := identityFromContext(r.Context())
	render(w, r, http.StatusOK, "dashboard.html", dashboardPage{
		DisplayName: id.DisplayName,
		News:        news,
		Snippet:     trackingSnippet(s.baseURL(r) + "/track"),
	})
}

// handleHide hides a news item from the dashboard.
// GET /hide?title=... (key is accepted as an alias)
func (s *Server) handleHide(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if strings.TrimSpace(title) == "" {
		title = r.URL.Query().Get("key")
	}
	if strings.TrimSpace(title) == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	hidden, err := s.counters.Hide(r.Context(), title)
	if err != nil {
		log.FromContext(r.Context()).Error("failed to hide news", "title", title, "error", err)
	} else {
		s.telemetry.RecordHide(r.Context(), hidden)
		if !hidden {
			log.FromContext(r.Context()).Debug("hide requested for unknown news", "title", title)
		}
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleUSOSAuth starts the provider login.
func (s *Server) handleUSOSAuth(w http.ResponseWriter, r *http.Request) {
	redirectURL, err := s.auth.BeginAuth(r.Context(), s.callbackURL(r))
	switch {
	case errors.Is(err, oauth.ErrUpstreamUnavailable):
		log.FromContext(r.Context()).Error("USOS unavailable during authorization", "error", err)
		renderLogin(w, r, http.StatusBadGateway, msgUpstreamFailed)
		return
	case err != nil:
		log.FromContext(r.Context()).Error("failed to start USOS authorization", "error", err)
		renderLogin(w, r, http.StatusInternalServerError, msgLoginFailed)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// handleLogin shows the login page, or completes the provider callback
// when oauth_token and oauth_verifier are present.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("oauth_token")
	verifier := r.URL.Query().Get("oauth_verifier")
	if token == "" && verifier == "" {
		renderLogin(w, r, http.StatusOK, "")
		return
	}

	profile, err := s.auth.CompleteAuth(r.Context(), token, verifier)
	switch {
	case errors.Is(err, oauth.ErrUpstreamUnavailable):
		log.FromContext(r.Context()).Error("USOS unavailable during login", "error", err)
		renderLogin(w, r, http.StatusBadGateway, msgUpstreamFailed)
		return
	case errors.Is(err, oauth.ErrStateStorage):
		log.FromContext(r.Context()).Error("failed to load USOS request token", "error", err)
		renderLogin(w, r, http.StatusInternalServerError, msgLoginFailed)
		return
	case err != nil:
		log.FromContext(r.Context()).Warn("USOS authorization denied", "error", err)
		renderLogin(w, r, http.StatusOK, msgAuthFailed)
		return
	}

	if err := s.sessions.Login(w, r, profile); err != nil {
		log.FromContext(r.Context()).Error("failed to store session", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	log.FromContext(r.Context()).Info("user logged in",
		"user_id", profile.ID, "admin", s.sessions.IsAdmin(profile.ID))
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout ends the session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(w, r); err != nil {
		log.FromContext(r.Context()).Error("failed to clear session", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) callbackURL(r *http.Request) string {
	return s.baseURL(r) + "/login"
}
