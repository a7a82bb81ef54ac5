// Package server wires handlers, middleware and routes, and runs the HTTP
// server with graceful shutdown.
//
// It is the composition root: New opens the checklist database, builds the
// service and handler layers on top of it, and mounts them on a chi router.
// Each layer only receives what it needs; handlers never see the database
// and services never see HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/js-playground/internal/executor"
	"github.com/sakif/js-playground/internal/handler"
	"github.com/sakif/js-playground/internal/metrics"
	"github.com/sakif/js-playground/internal/middleware"
	sqliteRepo "github.com/sakif/js-playground/internal/repository/sqlite"
	"github.com/sakif/js-playground/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port      int
	DBPath    string
	QueueSize int // per-session worker queue
	Backend   string
}

// Server represents the HTTP server and all its dependencies. It owns the
// database connection and closes it on shutdown.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	exec    executor.Executor
	metrics *metrics.Collector
}

// New creates a Server. exec may be nil when no execution backend could be
// started; the execute endpoints then answer 503 and everything else works.
func New(cfg Config, logger *slog.Logger, exec executor.Executor, collector *metrics.Collector) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if exec == nil {
		cfg.Backend = ""
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		exec:    exec,
		metrics: collector,
	}
	s.setupRoutes()

	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures middleware and routes.
//
//	POST   /api/execute           → run code, reply with the result envelope
//	GET    /api/execute/ws        → WebSocket execution session
//	GET    /api/checklist         → list checklist items
//	GET    /api/checklist/{key}   → get one item
//	PUT    /api/checklist/{key}   → set an item's checked state
//	DELETE /api/checklist/{key}   → forget an item
//	GET    /healthz               → liveness
//	GET    /metrics               → Prometheus exposition
//
// Middleware order matters: the request id must exist before the logger
// reads it, and Recoverer sits inside the logger so panics are logged as 500.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	executeHandler := handler.NewExecuteHandler(s.exec, s.logger)
	sessionHandler := handler.NewSessionHandler(s.exec, s.config.QueueSize, s.metrics, s.logger)

	checklistService := service.NewChecklistService(s.db, s.logger)
	checklistHandler := handler.NewChecklistHandler(checklistService, s.logger)

	healthHandler := handler.NewHealthHandler(s.db, s.config.Backend, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/execute", executeHandler.HandleExecute)
		r.Get("/execute/ws", sessionHandler.HandleSession)

		r.Get("/checklist", checklistHandler.HandleList)
		r.Get("/checklist/{key}", checklistHandler.HandleGet)
		r.Put("/checklist/{key}", checklistHandler.HandlePut)
		r.Delete("/checklist/{key}", checklistHandler.HandleDelete)
	})

	s.router.Get("/healthz", healthHandler.HandleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
}

// Start runs the server until SIGINT or SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would cut off long-lived WebSocket sessions.
		// Execution itself is bounded by the executor timeout.
		IdleTimeout: 60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("executor", s.config.Backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
