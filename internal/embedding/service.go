package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nikhilbhutani/aiservices/internal/llm"
	"github.com/nikhilbhutani/aiservices/internal/monitoring"
)

var (
	ErrEmbeddingService  = errors.New("embedding service error")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Backend is the part of llm.Gateway the service needs.
type Backend interface {
	Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error)
}

type Service struct {
	backend    Backend
	model      string
	dimensions int
}

// NewService returns a service for model. A positive dimensions value is
// requested from the backend and enforced on every returned vector.
func NewService(backend Backend, model string, dimensions int) *Service {
	return &Service{backend: backend, model: model, dimensions: dimensions}
}

func (s *Service) Model() string { return s.model }

// Embed makes one backend call for text. Every failure, including a
// response without a vector, wraps ErrEmbeddingService.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()

	resp, err := s.backend.Embed(ctx, llm.EmbeddingRequest{
		Model:      s.model,
		Input:      text,
		Dimensions: s.dimensions,
	})
	switch {
	case err != nil:
	case resp == nil || len(resp.Embedding) == 0:
		err = llm.ErrNoEmbedding
	case s.dimensions > 0 && len(resp.Embedding) != s.dimensions:
		err = fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(resp.Embedding), s.dimensions)
	}

	provider := "unknown"
	if resp != nil && resp.Provider != "" {
		provider = resp.Provider
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	monitoring.EmbeddingRequestDuration.WithLabelValues(provider, outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingService, err)
	}
	return resp.Embedding, nil
}
