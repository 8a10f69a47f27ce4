// Package server exposes the tracking endpoint and the admin dashboard over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/netutil"

	"github.com/milckywayy/ISOD-NewsAnalytics/internal/counter"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/db"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/log"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/oauth"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/observability"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/session"
)

// DefaultCleanupInterval is how often expired request tokens are purged.
const DefaultCleanupInterval = 10 * time.Minute

// Options tunes the HTTP layer. Zero values fall back to sensible defaults.
type Options struct {
	// PublicURL is the externally visible base URL, used for the OAuth
	// callback and the tracking snippet. Derived from the request when empty.
	PublicURL string

	Threads         int           // requests processed at once
	Backlog         int           // requests allowed to queue for a slot
	Timeout         time.Duration // read/write/idle and queue wait
	ConnectionLimit int           // open connections, 0 for unlimited
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Counters  counter.Store
	Auth      oauth.Authenticator
	Sessions  *session.Manager
	States    *oauth.StateStore // optional, enables request token cleanup
	DB        *db.DB            // optional, pinged by /health
	Telemetry *observability.Telemetry
}

type Server struct {
	router    *chi.Mux
	opts      Options
	counters  counter.Store
	auth      oauth.Authenticator
	sessions  *session.Manager
	states    *oauth.StateStore
	db        *db.DB
	telemetry *observability.Telemetry

	mu         sync.Mutex
	httpServer *http.Server
}

// New builds a Server and registers its routes.
func New(deps Deps, opts Options) (*Server, error) {
	if deps.Counters == nil || deps.Auth == nil || deps.Sessions == nil {
		return nil, errors.New("server: counters, auth and sessions are required")
	}
	if opts.Threads <= 0 {
		opts.Threads = 2
	}
	if opts.Backlog < 0 {
		opts.Backlog = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")

	s := &Server{
		router:    chi.NewRouter(),
		opts:      opts,
		counters:  deps.Counters,
		auth:      deps.Auth,
		sessions:  deps.Sessions,
		states:    deps.States,
		db:        deps.DB,
		telemetry: deps.Telemetry,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(log.RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(observability.HTTPMiddleware(s.telemetry, "newsanalytics"))
	s.router.Use(middleware.ThrottleBacklog(s.opts.Threads, s.opts.Backlog, s.opts.Timeout))

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/static/*", staticHandler())

	s.router.With(trackCORS()).Get("/track", s.handleTrack)
	s.router.With(trackCORS()).Options("/track", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.router.Get("/usos_auth", s.handleUSOSAuth)
	s.router.Get("/login", s.handleLogin)

	s.router.With(s.guard(RequireLogin, RequireAdmin(s.sessions.IsAdmin))).Get("/", s.handleIndex)

	s.router.Group(func(r chi.Router) {
		r.Use(s.guard(RequireLogin))
		r.Get("/logout", s.handleLogout)
		r.Get("/hide", s.handleHide)
	})
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln, capped at Options.ConnectionLimit.
func (s *Server) Serve(ln net.Listener) error {
	if s.opts.ConnectionLimit > 0 {
		ln = netutil.LimitListener(ln, s.opts.ConnectionLimit)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.opts.Timeout,
		ReadTimeout:       s.opts.Timeout,
		WriteTimeout:      s.opts.Timeout,
		IdleTimeout:       s.opts.Timeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	return srv.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}

// StartStateCleanup purges expired OAuth request tokens every interval
// until ctx is cancelled.
func (s *Server) StartStateCleanup(ctx context.Context, interval time.Duration) {
	if s.states == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupStates(ctx)
			}
		}
	}()
	log.Info("request token cleanup routine started", "interval", interval.String())
}

func (s *Server) cleanupStates(ctx context.Context) {
	n, err := s.states.CleanupExpired(ctx)
	if err != nil {
		log.Error("failed to purge expired request tokens", "error", err)
		return
	}
	if n > 0 {
		log.Debug("purged expired request tokens", "count", n)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			log.FromContext(r.Context()).Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// baseURL is PublicURL, or scheme://host of the incoming request.
func (s *Server) baseURL(r *http.Request) string {
	if s.opts.PublicURL != "" {
		return s.opts.PublicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
