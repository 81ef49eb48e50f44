// Package server exposes the pipeline steps and digest administration over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/core"
	"meridian/internal/ingest"
	"meridian/internal/persistence"
	"meridian/internal/pipeline"
	"meridian/internal/send"
)

// Runner is the pipeline surface the server triggers
type Runner interface {
	Today() string
	Ingest(ctx context.Context) (*ingest.Stats, error)
	Generate(ctx context.Context) (*core.Digest, error)
	Send(ctx context.Context, opts send.Options) (*send.Result, error)
	RunAll(ctx context.Context, opts pipeline.RunOptions) (*pipeline.RunResult, error)
	BackfillBriefs(ctx context.Context, limit int) (updated, skipped int, err error)
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	db         persistence.Database
	runner     Runner
	config     config.Server
	log        *zerolog.Logger
}

// New creates a new HTTP server instance
func New(db persistence.Database, runner Runner, cfg config.Server, log *zerolog.Logger) *Server {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	s := &Server{
		router: chi.NewRouter(),
		db:     db,
		runner: runner,
		config: cfg,
		log:    log,
	}

	if cfg.CronSecret == "" && !isLoopback(cfg.Host) {
		log.Warn().Str("host", cfg.Host).
			Msg("cron_secret is empty: manual runs and digest approval are open to anyone who can reach the server")
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  config.Duration(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout: config.Duration(cfg.WriteTimeout, 5*time.Minute),
	}
	return s
}

// isLoopback reports whether host only accepts local connections. An empty
// host binds every interface.
func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if len(s.config.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Public archive
		r.With(middleware.Timeout(30*time.Second)).Get("/issues", s.handleListIssues)
		r.With(middleware.Timeout(30*time.Second)).Get("/issues/search", s.handleSearchIssues)
		r.Post("/subscribe", s.handleSubscribe)

		// Scheduled triggers
		r.Route("/cron", func(r chi.Router) {
			r.Use(s.requireCronSecret)
			r.Get("/ingest", s.handleCronIngest)
			r.Get("/generate", s.handleCronGenerate)
			r.Get("/send", s.handleCronSend)
		})

		// Operator triggers
		r.Route("/manual", func(r chi.Router) {
			r.Use(s.requireCronSecret)
			r.Post("/run-all", s.handleRunAll)
			r.Post("/reset-and-run", s.handleResetAndRun)
			r.Post("/send-test", s.handleSendTest)
			r.Post("/backfill-summaries", s.handleBackfillSummaries)
		})

		r.Route("/digests", func(r chi.Router) {
			r.Use(s.requireCronSecret)
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/", s.handleListDigests)
			r.Get("/{date}", s.handleGetDigest)
			r.Post("/{id}/approve", s.handleApproveDigest)
			r.Post("/{id}/skip", s.handleSkipDigest)
		})

		r.Route("/subscribers", func(r chi.Router) {
			r.Use(s.requireCronSecret)
			r.Get("/", s.handleListSubscribers)
			r.Post("/unsubscribe", s.handleUnsubscribe)
			r.Delete("/{id}", s.handleRemoveSubscriber)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().
		Str("addr", s.httpServer.Addr).
		Dur("read_timeout", s.httpServer.ReadTimeout).
		Dur("write_timeout", s.httpServer.WriteTimeout).
		Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info().Msg("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
