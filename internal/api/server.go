package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flowdose/invite-dispatcher/internal/pkg/httputil"
)

// Server is the worker's ops HTTP server. It carries no business routes.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer creates an ops server over the given health checker.
func NewServer(hc *HealthChecker) *Server {
	return &Server{handler: SetupRoutes(hc)}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetupRoutes configures the ops routes.
func SetupRoutes(hc *HealthChecker) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Server-Binary", "cmd/worker")
			next.ServeHTTP(w, req)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.Error(w, http.StatusNotFound, "not found")
	})

	r.Get("/healthz", hc.HandleLiveness)
	r.Get("/readyz", hc.HandleReadiness)
	r.Get("/health", hc.HandleHealth)
	return r
}
