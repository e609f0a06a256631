// Package api exposes the symptom intake over HTTP.
//
// Clients create a session, post one answer per turn, and finalize the
// session to receive the clinician report. Sessions live in the store, so
// any server instance sharing the store can serve any turn.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/ChatReport/internal/flow"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server serves the intake API.
type Server struct {
	router  *chi.Mux
	manager *flow.SessionManager
	addr    string
	httpSrv *http.Server
}

// NewServer builds the router over a session manager.
func NewServer(manager *flow.SessionManager, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		manager: manager,
		addr:    cfg.Addr,
		httpSrv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	router.Get("/health", s.healthHandler)
	router.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSessionHandler)
		r.Get("/", s.listSessionsHandler)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSessionHandler)
			r.Post("/answers", s.answerHandler)
			r.Post("/restart", s.restartHandler)
			r.Post("/finalize", s.finalizeHandler)
			r.Get("/report", s.reportHandler)
			r.Get("/transcript", s.transcriptHandler)
			r.Get("/export.xlsx", s.exportHandler)
		})
	})
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address. It returns nil after Shutdown.
func (s *Server) Start() error {
	slog.Info("API server starting", "addr", s.addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down")
	return s.httpSrv.Shutdown(ctx)
}
