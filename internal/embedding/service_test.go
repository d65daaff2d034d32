package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/aiservices/internal/llm"
)

type fakeBackend struct {
	resp *llm.EmbeddingResponse
	err  error
	got  []llm.EmbeddingRequest
}

func (f *fakeBackend) Embed(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	f.got = append(f.got, req)
	return f.resp, f.err
}

func TestEmbed_OneCallPerText(t *testing.T) {
	b := &fakeBackend{resp: &llm.EmbeddingResponse{Provider: "ollama", Embedding: []float32{0.5, 0.25}}}
	svc := NewService(b, "nomic-embed-text", 2)

	vec, err := svc.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)

	require.Len(t, b.got, 1)
	assert.Equal(t, "nomic-embed-text", b.got[0].Model)
	assert.Equal(t, "hello", b.got[0].Input)
	assert.Equal(t, 2, b.got[0].Dimensions)
}

func TestEmbed_Failures(t *testing.T) {
	transport := errors.New("connection refused")

	tests := []struct {
		name    string
		backend *fakeBackend
		cause   error
	}{
		{name: "transport", backend: &fakeBackend{err: transport}, cause: transport},
		{name: "nil response", backend: &fakeBackend{}, cause: llm.ErrNoEmbedding},
		{name: "empty vector", backend: &fakeBackend{resp: &llm.EmbeddingResponse{}}, cause: llm.ErrNoEmbedding},
		{
			name:    "wrong width",
			backend: &fakeBackend{resp: &llm.EmbeddingResponse{Embedding: []float32{1, 2, 3}}},
			cause:   ErrDimensionMismatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewService(tc.backend, "m", 2).Embed(context.Background(), "x")
			assert.ErrorIs(t, err, ErrEmbeddingService)
			assert.ErrorIs(t, err, tc.cause)
		})
	}
}

func TestEmbed_ZeroDimensionsAcceptsAnyWidth(t *testing.T) {
	b := &fakeBackend{resp: &llm.EmbeddingResponse{Embedding: []float32{1, 2, 3}}}

	vec, err := NewService(b, "m", 0).Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.Zero(t, b.got[0].Dimensions)
}
