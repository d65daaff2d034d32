package training

import (
	"context"
	"sync"
)

// Sink receives a job's events in order. An error from Emit stops the job.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Emit(ctx context.Context, e Event) error { return f(ctx, e) }

// MultiSink fans each event out to every sink in order and stops at the
// first failure.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, e Event) error {
		for _, s := range sinks {
			if err := s.Emit(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
