// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects the credential store, the
// Google clients, the session manager, the handlers and the middleware, and
// decides which URL maps to which handler.
//
// DEPENDENCY INJECTION FLOW:
// main.go reads the environment into a Config, then:
//
//	Server.New() creates: sqlite.DB → metrics → people.Client + GoogleProvider
//	                       → session.Manager → handlers → routes
//
// This is the "composition root": all dependencies are wired here rather than
// scattered across the codebase.
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

	"github.com/sakif/contact-insight/internal/auth"
	"github.com/sakif/contact-insight/internal/handler"
	"github.com/sakif/contact-insight/internal/metrics"
	"github.com/sakif/contact-insight/internal/middleware"
	"github.com/sakif/contact-insight/internal/people"
	sqliteRepo "github.com/sakif/contact-insight/internal/repository/sqlite"
	"github.com/sakif/contact-insight/internal/session"
)

// Config holds server configuration.
type Config struct {
	Port   int
	DBPath string // SQLite file for credentials; ":memory:" keeps them in process

	// SessionSecret signs the browser session cookie (min 16 characters).
	SessionSecret string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	// MaxContactPages caps one contact aggregation. Zero means
	// people.DefaultMaxPages.
	MaxContactPages int
	// ViewTTL is how long an idle browser's view-model is kept. Zero means
	// session.DefaultViewTTL.
	ViewTTL time.Duration
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the session manager. On
// shutdown the manager's background fetches are cancelled first, then the
// database is closed.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	sessions *session.Manager
	metrics  *metrics.Metrics
	tokens   *auth.TokenService
}

// New creates a new Server with the given config.
//
// WIRING ORDER:
//  1. Token service for the session cookie (fails fast on a weak secret)
//  2. Database for credentials
//  3. Metrics registry, shared by every component that counts something
//  4. Google clients: OAuth provider and People API client
//  5. Session manager, which owns the per-browser view-models
//  6. Handlers and routes
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	// === SESSION COOKIES ===
	tokens, err := auth.NewTokenService(cfg.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	m := metrics.New()

	// === GOOGLE ===
	provider := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)

	peopleCfg := people.DefaultConfig()
	if cfg.MaxContactPages > 0 {
		peopleCfg.MaxPages = cfg.MaxContactPages
	}
	client := people.New(peopleCfg, logger, m)

	// === SESSIONS ===
	viewTTL := cfg.ViewTTL
	if viewTTL <= 0 {
		viewTTL = session.DefaultViewTTL
	}
	sessions := session.New(provider, client, db, viewTTL, logger, m)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		sessions: sessions,
		metrics:  m,
		tokens:   tokens,
	}

	if err := s.setupRoutes(); err != nil {
		sessions.Close()
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                → liveness probe
// GET    /metrics                → Prometheus exposition
// GET    /                       → the contact browser page (HTML)
// GET    /auth/google/login      → start Google sign-in
// GET    /auth/google/callback   → finish Google sign-in
// POST   /auth/logout            → sign out
// POST   /view/next|prev|toggle  → paging and show-all
// POST   /contacts/refresh       → retry profile and contact loading
// GET    /api/state              → view-model as JSON
// GET    /contacts.xlsx          → spreadsheet export
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, RealIP, Recoverer, Logger run on every request
// 2. auth.Session runs only on the browser routes, so probes and scrapes
// don't mint sessions
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID) // Adds X-Request-ID header
	s.router.Use(chimiddleware.RealIP)    // Extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // Recovers from panics, returns 500
	s.router.Use(middleware.Logger(s.logger))

	// === Operational Routes ===
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", s.metrics.Handler())

	// === Browser Routes ===
	pageHandler, err := handler.NewPageHandler(s.sessions, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	authHandler := handler.NewAuthHandler(s.sessions, s.logger)
	contactsHandler := handler.NewContactsHandler(s.sessions, s.metrics, s.logger)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.Session(s.tokens))

		r.Get("/", pageHandler.HandlePage)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/google/login", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
			r.Post("/logout", authHandler.HandleLogout)
		})

		r.Route("/view", func(r chi.Router) {
			r.Post("/next", contactsHandler.HandleNext)
			r.Post("/prev", contactsHandler.HandlePrev)
			r.Post("/toggle", contactsHandler.HandleToggle)
		})

		r.Post("/contacts/refresh", contactsHandler.HandleRefresh)
		r.Get("/api/state", contactsHandler.HandleState)
		r.Get("/contacts.xlsx", contactsHandler.HandleExport)
	})

	return nil
}

// Handler returns the fully wired router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close cancels background fetches and closes the database.
func (s *Server) Close() error {
	s.sessions.Close()
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Cancel contact aggregations still running in the background
// 4. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing server resources", slog.String("error", err.Error()))
		}
	}()

	// Export responses can be large for big address books, hence the
	// generous write timeout.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
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
