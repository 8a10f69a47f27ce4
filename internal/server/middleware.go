package server

import (
	"context"
	"net/http"

	"github.com/go-chi/cors"

	"github.com/milckywayy/ISOD-NewsAnalytics/internal/log"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/session"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Decision is the outcome of a Guard. The zero value allows the request.
type Decision struct {
	Redirect     string // target route when denied
	ClearSession bool   // log the browser out before redirecting
}

// Allow lets the request through.
var Allow = Decision{}

// RedirectTo denies the request and sends the browser to route.
func RedirectTo(route string) Decision {
	return Decision{Redirect: route}
}

// AndClearSession returns d with session clearing enabled.
func (d Decision) AndClearSession() Decision {
	d.ClearSession = true
	return d
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Guard decides whether an identity may reach a route.
type Guard func(session.Identity) Decision

// RequireLogin sends anonymous browsers to the login page.
func RequireLogin(id session.Identity) Decision {
	if !id.LoggedIn {
		return RedirectTo("/login")
	}
	return Allow
}

// RequireAdmin logs out users that are not on the allow-list and sends
// them to /logout.
func RequireAdmin(isAdmin func(userID string) bool) Guard {
	return func(id session.Identity) Decision {
		if !isAdmin(id.UserID) {
			return RedirectTo("/logout").AndClearSession()
		}
		return Allow
	}
}

// guard runs guards in order; the first denial wins.
func (s *Server) guard(guards ...Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := s.sessions.Current(r)
			for _, g := range guards {
				d := g(id)
				if d.Allowed() {
					continue
				}
				if d.ClearSession {
					if err := s.sessions.Logout(w, r); err != nil {
						log.FromContext(r.Context()).Error("failed to clear session", "error", err)
					}
					log.FromContext(r.Context()).Warn("access denied, session cleared",
						"user_id", id.UserID, "path", r.URL.Path)
				}
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}
			ctx := context.WithValue(r.Context(), identityContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identityFromContext returns the identity a guard stored for the request.
func identityFromContext(ctx context.Context) session.Identity {
	id, _ := ctx.Value(identityContextKey).(session.Identity)
	return id
}

// trackCORS lets any origin call /track from the news pages.
func trackCORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
