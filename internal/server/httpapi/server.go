// Package httpapi is the HTTP boundary of the server: routing, JSON
// encoding, the request-logging middleware, and the bearer-token gate in
// front of protected routes.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type Server struct {
	address    string
	logger     logging.Logger
	identities *services.IdentityService
	collector  *metrics.Collector
	db         *sql.DB
}

// NewServer wires the HTTP surface. db may be nil (in-memory runs); the
// health check then skips the store ping.
func NewServer(address string, l logging.Logger, svc *services.IdentityService, c *metrics.Collector, db *sql.DB) *Server {
	return &Server{
		address:    address,
		logger:     l.With("module", "httpapi"),
		identities: svc,
		collector:  c,
		db:         db,
	}
}

// Routes builds the chi router. Split out from Run so tests can drive the
// full middleware/handler stack through httptest.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.collector.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Get("/identities", s.handleList)

		// routes behind the bearer-token gate
		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/me", s.handleMe)
			r.Patch("/identities/{id}", s.handleUpdate)
			r.Delete("/identities/{id}", s.handleDelete)
		})
	})

	return r
}

// Run starts the HTTP server and shuts it down gracefully when ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
