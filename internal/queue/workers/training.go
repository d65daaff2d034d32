package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/aiservices/internal/queue"
	"github.com/nikhilbhutani/aiservices/internal/training"
)

type Runner interface {
	Run(ctx context.Context, job training.Job, sink training.Sink) error
}

// SinkFactory returns where a job's events go.
type SinkFactory func(jobID string) training.Sink

type TrainingWorker struct {
	runner Runner
	sinks  SinkFactory
}

func NewTrainingWorker(runner Runner, sinks SinkFactory) *TrainingWorker {
	return &TrainingWorker{runner: runner, sinks: sinks}
}

func (w *TrainingWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.TrainingRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	slog.Info("running training job",
		"task_id", payload.TaskID,
		"job_id", payload.JobID,
		"files", len(payload.Job.Files),
	)

	if err := w.runner.Run(ctx, payload.Job, w.sinks(payload.JobID)); err != nil {
		return fmt.Errorf("training job %s: %w: %w", payload.JobID, err, asynq.SkipRetry)
	}

	slog.Info("training job finished", "job_id", payload.JobID)
	return nil
}
