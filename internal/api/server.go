// Package api exposes extraction, the transaction log and run management
// over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eshaffer321/cc-transaction-logger/internal/api/handlers"
	"github.com/eshaffer321/cc-transaction-logger/internal/api/middleware"
	"github.com/eshaffer321/cc-transaction-logger/internal/application/extraction"
	"github.com/eshaffer321/cc-transaction-logger/internal/application/service"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/metrics"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/storage"
	"github.com/eshaffer321/cc-transaction-logger/internal/registry"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns the defaults for local use.
func DefaultConfig() Config {
	return Config{
		Port:           8085,
		AllowedOrigins: middleware.DefaultCORSConfig().AllowedOrigins,
	}
}

// Deps are the services the routes are wired to. Runs may be nil, in which
// case the run job endpoints are not mounted.
type Deps struct {
	Repo       storage.Repository
	Registry   *registry.Registry
	Extraction *extraction.Service
	Runs       *service.RunService
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = DefaultConfig().AllowedOrigins
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		router: chi.NewRouter(),
		logger: logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = s.config.AllowedOrigins

	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.CORS(cors))
	s.router.Use(middleware.Logging(s.logger))
}

func (s *Server) setupRoutes() {
	// Health check and metrics (no /api prefix)
	s.router.Get("/health", handlers.NewHealthHandler().ServeHTTP)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		merchants := handlers.NewMerchantsHandler(s.deps.Registry)
		r.Get("/merchants", merchants.List)

		extract := handlers.NewExtractHandler(s.deps.Extraction)
		r.Post("/extract", extract.Extract)

		transactions := handlers.NewTransactionsHandler(s.deps.Repo)
		r.Get("/transactions", transactions.List)

		runs := handlers.NewRunsHandler(s.deps.Repo)
		r.Get("/runs", runs.List)
		r.Get("/runs/{id}", runs.Get)

		if s.deps.Runs != nil {
			jobs := handlers.NewJobsHandler(s.deps.Runs)
			r.Post("/runs", jobs.Start)
			r.Get("/jobs", jobs.List)
			r.Get("/jobs/{jobId}", jobs.Get)
			r.Delete("/jobs/{jobId}", jobs.Cancel)
		}
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
