package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/aiservices/internal/config"
)

type Client struct {
	client    *asynq.Client
	retention time.Duration
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig, retention time.Duration) *Client {
	return &Client{
		client:    asynq.NewClient(RedisOpt(cfg)),
		retention: retention,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueTrainingRun queues one batch under its job id. Training tasks are
// never retried: a rerun would repeat every progress event.
func (c *Client) EnqueueTrainingRun(ctx context.Context, payload TrainingRunPayload) (string, error) {
	return c.enqueue(ctx, TypeTrainingRun, payload,
		asynq.TaskID(payload.JobID),
		asynq.Queue(QueueTraining),
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Hour),
		asynq.Retention(c.retention),
	)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(taskType, data), opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return info.ID, nil
}
