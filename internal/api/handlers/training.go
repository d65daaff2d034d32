package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/aiservices/internal/cache"
	"github.com/nikhilbhutani/aiservices/internal/queue"
	"github.com/nikhilbhutani/aiservices/internal/relay"
	"github.com/nikhilbhutani/aiservices/internal/training"
)

type TrainingRunner interface {
	Run(ctx context.Context, job training.Job, sink training.Sink) error
}

type TrainingQueue interface {
	EnqueueTrainingRun(ctx context.Context, payload queue.TrainingRunPayload) (string, error)
}

type ProgressSource interface {
	Subscribe(ctx context.Context, jobID string) (<-chan training.Event, error)
	Latest(ctx context.Context, jobID string) (training.Event, error)
}

type TrainingHandler struct {
	runner   TrainingRunner
	queue    TrainingQueue
	progress ProgressSource
	maxFiles int
}

// NewTrainingHandler serves inline runs through runner and queued runs
// through q and progress. q and progress may be nil when no queue is
// configured.
func NewTrainingHandler(runner TrainingRunner, q TrainingQueue, progress ProgressSource, maxFiles int) *TrainingHandler {
	return &TrainingHandler{runner: runner, queue: q, progress: progress, maxFiles: maxFiles}
}

type queuedJob struct {
	JobID     string `json:"job_id"`
	JobIndex  int    `json:"job_index"`
	TotalJobs int    `json:"total_jobs"`
	QueueID   string `json:"queue_id"`
	Files     int    `json:"files"`
}

type startResponse struct {
	TaskID  string      `json:"task_id"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Jobs    []queuedJob `json:"jobs"`
}

func decodeJob(r *http.Request) (training.Job, error) {
	var job training.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		return job, fmt.Errorf("invalid request body: %w", err)
	}
	return job, nil
}

// Stream runs the job on this request and relays every progress event as
// SSE. A failing job still ends the stream with its terminal event.
func (h *TrainingHandler) Stream(w http.ResponseWriter, r *http.Request) {
	job, err := decodeJob(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	relay.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	sink := training.SinkFunc(func(_ context.Context, e training.Event) error {
		return relay.WriteEvent(w, e)
	})
	if err := h.runner.Run(r.Context(), job, sink); err != nil {
		slog.Warn("inline training ended with error",
			"knowledge_base_id", job.KnowledgeBaseID,
			"version_id", job.VersionID,
			"error", err,
		)
	}
}

// Start splits the job into batches and queues one task per batch.
func (h *TrainingHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "training queue not configured")
		return
	}

	job, err := decodeJob(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := job.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(job.Files) == 0 {
		writeError(w, http.StatusBadRequest, "files required")
		return
	}

	taskID := fmt.Sprintf("%d_%d", job.KnowledgeBaseID, job.VersionID)
	resp := startResponse{
		TaskID:  taskID,
		Status:  "started",
		Message: "Training process started",
	}
	for _, batch := range training.Split(job, h.maxFiles) {
		g := batch.Grouping()
		payload := queue.TrainingRunPayload{TaskID: taskID, JobID: string(g.JobID), Job: batch}

		queueID, err := h.queue.EnqueueTrainingRun(r.Context(), payload)
		if err != nil {
			slog.Error("enqueue training batch", "task_id", taskID, "job_id", g.JobID, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Jobs = append(resp.Jobs, queuedJob{
			JobID:     payload.JobID,
			JobIndex:  *g.JobIndex,
			TotalJobs: *g.TotalJobs,
			QueueID:   queueID,
			Files:     len(batch.Files),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Events relays a queued job's progress until its terminal event.
func (h *TrainingHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.progress == nil {
		writeError(w, http.StatusServiceUnavailable, "training queue not configured")
		return
	}

	jobID := chi.URLParam(r, "jobID")
	events, err := h.progress.Subscribe(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	relay.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	for e := range events {
		if err := relay.WriteEvent(w, e); err != nil {
			slog.Debug("training events client gone", "job_id", jobID, "error", err)
			return
		}
	}
}

func (h *TrainingHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.progress == nil {
		writeError(w, http.StatusServiceUnavailable, "training queue not configured")
		return
	}

	jobID := chi.URLParam(r, "jobID")
	e, err := h.progress.Latest(r.Context(), jobID)
	if errors.Is(err, cache.ErrMiss) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, e)
}
