package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/aiservices/internal/bootstrap"
	"github.com/nikhilbhutani/aiservices/internal/cache"
	"github.com/nikhilbhutani/aiservices/internal/config"
	"github.com/nikhilbhutani/aiservices/internal/llm"
	"github.com/nikhilbhutani/aiservices/internal/queue"
	"github.com/nikhilbhutani/aiservices/internal/queue/workers"
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

	orchestrator, err := bootstrap.Orchestrator(cfg, llm.NewGateway(cfg.LLM))
	if err != nil {
		slog.Error("failed to build training pipeline", "error", err)
		os.Exit(1)
	}

	rdb := cache.NewClient(cfg.Redis)
	defer rdb.Close()
	bus := cache.NewProgressBus(rdb, cfg.Training.EventTTL)

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Training.WorkerConcurrency,
			Queues: map[string]int{
				queue.QueueTraining: 1,
			},
		},
	)

	mux := queue.NewServeMux(workers.NewTrainingWorker(orchestrator, bus.Sink))

	slog.Info("starting worker", "concurrency", cfg.Training.WorkerConcurrency)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
