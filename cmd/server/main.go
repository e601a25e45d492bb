// Ideation study server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/ideation-study/internal/api"
	"github.com/ashureev/ideation-study/internal/assignment"
	"github.com/ashureev/ideation-study/internal/config"
	"github.com/ashureev/ideation-study/internal/dialogue"
	"github.com/ashureev/ideation-study/internal/eligibility"
	"github.com/ashureev/ideation-study/internal/identity"
	"github.com/ashureev/ideation-study/internal/metrics"
	"github.com/ashureev/ideation-study/internal/middleware"
	"github.com/ashureev/ideation-study/internal/shared"
	"github.com/ashureev/ideation-study/internal/store"
	"github.com/ashureev/ideation-study/internal/study"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server",
		"port", cfg.Port,
		"max_turns", cfg.Study.MaxTurns,
		"stage1_threshold", cfg.Study.Stage1Threshold,
		"followup_delay", cfg.Study.FollowUpDelay,
		"export_protected", cfg.ExportProtected())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	if !cfg.ExportProtected() {
		slog.Warn("EXPORT_TOKEN not set, export endpoints are open")
	}

	// Initialize services.
	m := metrics.New()
	assigner := assignment.NewEngine(repo,
		assignment.WithRetryPolicy(shared.RetryPolicy{
			MaxRetries: cfg.Retry.DatabaseMaxRetries,
			BaseDelay:  cfg.Retry.DatabaseRetryBaseDelay,
		}),
		assignment.WithRecorder(m))
	script := dialogue.NewEngine(cfg.Study.MaxTurns, cfg.Study.Stage1Threshold)
	gate := eligibility.NewGate(repo, cfg.Study.FollowUpDelay, eligibility.WithRecorder(m))
	svc := study.NewService(repo, assigner, script, gate, study.WithRecorder(m))

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(svc, cfg.Timeout.HealthCheck)
	studyHandler := api.NewStudyHandler(svc, cfg.CookieSecure)
	adminHandler := api.NewAdminHandler(repo, cfg.ExportToken)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(m.Middleware)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware)

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", m.Handler())

	studyHandler.RegisterRoutes(r)
	adminHandler.RegisterRoutes(r)

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
