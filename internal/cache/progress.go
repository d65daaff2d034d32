package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/aiservices/internal/training"
)

func eventsChannel(jobID string) string { return "training:events:" + jobID }

func latestKey(jobID string) string { return "training:latest:" + jobID }

// ProgressBus carries training events from workers to HTTP subscribers.
// Every event is published on the job's channel and kept as the job's
// latest event for status polling.
type ProgressBus struct {
	client *redis.Client
	cache  *Cache
	ttl    time.Duration
}

func NewProgressBus(client *redis.Client, ttl time.Duration) *ProgressBus {
	return &ProgressBus{client: client, cache: NewCache(client), ttl: ttl}
}

// Sink returns a training sink that publishes jobID's events.
func (b *ProgressBus) Sink(jobID string) training.Sink {
	return training.SinkFunc(func(ctx context.Context, e training.Event) error {
		return b.Publish(ctx, jobID, e)
	})
}

func (b *ProgressBus) Publish(ctx context.Context, jobID string, e training.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, latestKey(jobID), data, b.ttl)
	pipe.Publish(ctx, eventsChannel(jobID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event for %s: %w", jobID, err)
	}
	return nil
}

// Latest returns the most recent event of jobID, or ErrMiss.
func (b *ProgressBus) Latest(ctx context.Context, jobID string) (training.Event, error) {
	var e training.Event
	err := b.cache.Get(ctx, latestKey(jobID), &e)
	return e, err
}

// Subscribe streams jobID's events until a terminal event or ctx ends.
// The current latest event, if any, is delivered first so late subscribers
// see where the job stands; it may repeat the first live event.
func (b *ProgressBus) Subscribe(ctx context.Context, jobID string) (<-chan training.Event, error) {
	sub := b.client.Subscribe(ctx, eventsChannel(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", jobID, err)
	}

	latest, err := b.Latest(ctx, jobID)
	hasLatest := err == nil
	if err != nil && !errors.Is(err, ErrMiss) {
		slog.Warn("load latest training event", "job_id", jobID, "error", err)
	}

	out := make(chan training.Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		deliver := func(e training.Event) bool {
			select {
			case out <- e:
				return !e.Terminal()
			case <-ctx.Done():
				return false
			}
		}

		if hasLatest && !deliver(latest) {
			return
		}

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e training.Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					slog.Warn("skipping undecodable training event", "job_id", jobID, "error", err)
					continue
				}
				if !deliver(e) {
					return
				}
			}
		}
	}()

	return out, nil
}
