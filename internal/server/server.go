// Package server wires the application together: database, services,
// handlers, middleware, and routes, plus startup and graceful shutdown.
//
// Everything is assembled in New — the composition root. main.go only
// loads configuration and calls Start.
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
	"github.com/go-chi/cors"

	"github.com/calsync/calsync/internal/auth"
	"github.com/calsync/calsync/internal/extract"
	"github.com/calsync/calsync/internal/feed"
	"github.com/calsync/calsync/internal/gcal"
	"github.com/calsync/calsync/internal/handler"
	"github.com/calsync/calsync/internal/middleware"
	sqliteRepo "github.com/calsync/calsync/internal/repository/sqlite"
	"github.com/calsync/calsync/internal/service"
)

// Config holds everything the server needs from the environment.
//
// Extract and Google are optional feature blocks: an empty Extract.APIKey
// disables ingestion (503 from /api/ingest), missing Google credentials
// disable the external-calendar backfill. The core API works without
// either.
type Config struct {
	Port           int
	DBPath         string
	JWTSecret      string
	BaseURL        string // public address used in calendar feed URLs
	AllowedOrigins []string

	Extract extract.Config
	Google  gcal.Config
}

// Server owns the router and the resources that need closing on shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and assembles the full dependency chain. On any
// failure the database is closed before returning.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes builds the middleware stack, the optional collaborators, and
// the route table.
//
// ROUTES:
//
//	POST   /api/auth/login            → sign in / sign up by platform identity
//	GET    /api/auth/me               → profile of the bearer-token user
//	GET    /api/events                → list events (optionally by platform_id)
//	POST   /api/events                → manual event add (auth)
//	DELETE /api/events/{id}           → delete an event (auth)
//	POST   /api/ingest                → bot: run a message through extraction
//	POST   /api/watch                 → bot: subscribe a user to a channel
//	POST   /api/unwatch               → bot: remove a subscription
//	GET    /api/watch                 → bot: list a user's subscriptions
//	GET    /api/watched               → bot: is anyone watching a channel
//	GET    /api/calendar/{token}.ics  → iCalendar feed (token is the credential)
//	GET    /healthz                   → liveness probe
func (s *Server) setupRoutes(ctx context.Context) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// The dashboard is served from a different origin in development.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// Optional collaborators. A disabled feature is a nil interface value
	// handed to the event service, not an error.
	var extractor service.Extractor
	if s.config.Extract.APIKey != "" {
		ex, err := extract.New(s.config.Extract, s.logger)
		if err != nil {
			return fmt.Errorf("creating extractor: %w", err)
		}
		extractor = ex
	} else {
		s.logger.Warn("no extraction API key configured, /api/ingest will report unavailable")
	}

	var syncer service.CalendarSyncer
	if s.config.Google.ClientID != "" && s.config.Google.ClientSecret != "" {
		client, err := gcal.New(ctx, s.config.Google, s.logger)
		if err != nil {
			// The core product works without the backfill; keep booting.
			s.logger.Warn("external calendar sync disabled", slog.String("error", err.Error()))
		} else {
			syncer = client
		}
	} else {
		s.logger.Info("external calendar sync not configured")
	}

	authService := service.NewAuthService(s.db, tokens, s.config.BaseURL, s.logger)
	watchService := service.NewWatchService(s.db, s.db, s.logger)
	eventService := service.NewEventService(s.db, s.db, s.db, extractor, syncer, s.logger)
	feedGenerator := feed.NewGenerator(s.db, s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	eventHandler := handler.NewEventHandler(eventService, s.logger)
	ingestHandler := handler.NewIngestHandler(eventService, s.logger)
	watchHandler := handler.NewWatchHandler(watchService, authService, s.logger)
	calendarHandler := handler.NewCalendarHandler(feedGenerator, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.HandleLogin)

		r.Get("/events", eventHandler.HandleList)
		r.Post("/ingest", ingestHandler.HandleIngest)

		r.Post("/watch", watchHandler.HandleWatch)
		r.Post("/unwatch", watchHandler.HandleUnwatch)
		r.Get("/watch", watchHandler.HandleList)
		r.Get("/watched", watchHandler.HandleWatched)

		r.Get("/calendar/{token}.ics", calendarHandler.HandleFeed)

		// Dashboard routes behind the bearer token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/auth/me", authHandler.HandleMe)
			r.Post("/events", eventHandler.HandleCreate)
			r.Delete("/events/{id}", eventHandler.HandleDelete)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // extraction calls can be slow
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("baseURL", s.config.BaseURL),
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
