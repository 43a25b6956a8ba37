// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It decides:
// - Which URL patterns map to which handler functions
// - Which middleware (gate, policy) runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and a logger, then:
//
//	Server.New() creates: sqlstore.DB → AuthService, MessageService → handlers
//	                      TokenService ↗                 ↖ notify.Publisher
//
// This is the "composition root" pattern: all dependencies are wired in
// one place (New/setupRoutes), not scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/messagely/internal/auth"
	"github.com/sakif/messagely/internal/config"
	"github.com/sakif/messagely/internal/handler"
	"github.com/sakif/messagely/internal/middleware"
	"github.com/sakif/messagely/internal/notify"
	"github.com/sakif/messagely/internal/repository/sqlstore"
	"github.com/sakif/messagely/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database pool and, when configured, the Redis
// client. Both are released by Close, which Start calls on shutdown.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	db       *sqlstore.DB
	tokens   *auth.TokenService
	notifier notify.Publisher
	closers  []func() error
}

// New opens storage, builds the services and registers every route.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	// === CREATE DATABASE ===
	if err := ensureSQLiteDir(cfg.DBDriver, cfg.DatabaseURL); err != nil {
		return nil, err
	}
	db, err := sqlstore.New(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		tokens:   tokens,
		notifier: notify.Nop{},
		closers:  []func() error{db.Close},
	}

	// === OPTIONAL NOTIFICATIONS ===
	if cfg.RedisURL != "" {
		pub, closeRedis, err := notify.Dial(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.notifier = pub
		s.closers = append(s.closers, closeRedis)
		logger.Info("new-message notifications enabled")
	}

	s.setupRoutes()

	return s, nil
}

// ensureSQLiteDir creates the parent directory of a SQLite database file
// (like `mkdir -p`). Other drivers and in-memory databases need nothing.
func ensureSQLiteDir(driver, dsn string) error {
	if driver != sqlstore.DriverSQLite && driver != "sqlite3" {
		return nil
	}
	if dsn == ":memory:" || filepath.Dir(dsn) == "." {
		return nil
	}
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                      → public
// POST   /auth/login                   → public, issues a token
// POST   /auth/register                → public, issues a token
// GET    /users                        → LoggedIn
// GET    /users/{username}             → SameUser
// GET    /users/{username}/to          → SameUser
// GET    /users/{username}/from        → SameUser
// GET    /messages/{id}                → LoggedIn, then MessageParty in the service
// POST   /messages                     → LoggedIn
// POST   /messages/{id}/read           → LoggedIn, then Recipient in the service
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request
// 2. RealIP: extracts the client IP from proxy headers
// 3. Recoverer: turns panics into 500s
// 4. Authenticate: resolves the token into an identity, never rejects
// 5. Logger: logs each request, now that id and identity are known
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(auth.Authenticate(s.tokens))
	s.router.Use(middleware.Logger(s.logger))

	passwords := auth.NewPasswordService(s.config.BcryptCost)
	authService := service.NewAuthService(s.db, s.tokens, passwords, s.logger)
	messageService := service.NewMessageService(s.db, s.db, s.notifier, s.logger)

	healthHandler := handler.NewHealthHandler(s.db, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.logger)
	userHandler := handler.NewUserHandler(authService, messageService, s.logger)
	messageHandler := handler.NewMessageHandler(messageService, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/register", authHandler.HandleRegister)
	})

	s.router.Route("/users", func(r chi.Router) {
		r.With(auth.RequireLoggedIn).Get("/", userHandler.HandleList)

		// SameUser runs before any handler, so a stranger never triggers a
		// lookup of {username} and can't learn whether it exists.
		r.Route("/{username}", func(r chi.Router) {
			r.Use(auth.RequireSameUser("username"))
			r.Get("/", userHandler.HandleGet)
			r.Get("/to", userHandler.HandleMessagesTo)
			r.Get("/from", userHandler.HandleMessagesFrom)
		})
	})

	s.router.Route("/messages", func(r chi.Router) {
		r.Use(auth.RequireLoggedIn)
		r.Post("/", messageHandler.HandleCreate)
		r.Get("/{id}", messageHandler.HandleGet)
		r.Post("/{id}/read", messageHandler.HandleMarkRead)
	})
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and any broker connection.
func (s *Server) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database pool and Redis client
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("driver", s.db.Driver()),
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
