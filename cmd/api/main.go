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

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/aiservices/internal/api"
	"github.com/nikhilbhutani/aiservices/internal/api/handlers"
	"github.com/nikhilbhutani/aiservices/internal/bootstrap"
	"github.com/nikhilbhutani/aiservices/internal/cache"
	"github.com/nikhilbhutani/aiservices/internal/config"
	"github.com/nikhilbhutani/aiservices/internal/database"
	"github.com/nikhilbhutani/aiservices/internal/llm"
	"github.com/nikhilbhutani/aiservices/internal/personality"
	"github.com/nikhilbhutani/aiservices/internal/queue"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	checks := map[string]handlers.Pinger{}

	// Service database (optional; training jobs bring their own connection)
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without DB", "error", err)
		} else {
			defer db.Close()
			checks["database"] = db

			applied, err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath)
			if err != nil {
				slog.Warn("migrations failed", "error", err)
			} else if len(applied) > 0 {
				slog.Info("migrations applied", "files", applied)
			}
		}
	}

	// Redis backs the training queue and its progress fan-out
	rdb := cache.NewClient(cfg.Redis)
	defer rdb.Close()
	checks["redis"] = cache.NewCache(rdb)

	queueClient := queue.NewClient(cfg.Redis, cfg.Training.EventTTL)
	defer queueClient.Close()

	personalities, err := personality.NewStore(cfg.Personality.Dir)
	if err != nil {
		slog.Error("failed to open personality store", "error", err)
		os.Exit(1)
	}

	gw := llm.NewGateway(cfg.LLM)
	orchestrator, err := bootstrap.Orchestrator(cfg, gw)
	if err != nil {
		slog.Error("failed to build training pipeline", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(cfg, api.Deps{
		Gateway:       gw,
		Personalities: personalities,
		Runner:        orchestrator,
		Queue:         queueClient,
		Progress:      cache.NewProgressBus(rdb, cfg.Training.EventTTL),
		Checks:        checks,
	})
	handler := router.Setup()

	done := make(chan struct{})
	defer close(done)
	go router.RateLimiter().Run(done, time.Minute)

	// Streaming responses (training SSE, chat relays) run far longer than a
	// regular request, so there is no write timeout.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
