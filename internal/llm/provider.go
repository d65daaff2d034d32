package llm

import (
	"context"
	"errors"
)

var (
	ErrProviderNotConfigured = errors.New("llm provider not configured")
	ErrEmbeddingUnsupported  = errors.New("provider does not support embeddings")
	ErrNoEmbedding           = errors.New("response carried no embedding")
)

// Provider abstracts an inference backend (Ollama, OpenAI, Anthropic).
type Provider interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatCompletionStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
	Name() string
}

// Gateway routes chat and embedding calls to the configured providers.
// Calls are made once; failures are returned to the caller as is.
type Gateway interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
	Provider(name string) (Provider, error)
	ChatModel() string
	EmbeddingModel() string
}

type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

type ChatRequest struct {
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type ChatResponse struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	LatencyMs    int64  `json:"latency_ms"`
}

// StreamChunk is a single delta from a streaming response. The channel
// carrying it is closed after a chunk with Done set.
type StreamChunk struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done"`
	Error   error  `json:"-"`
}

type EmbeddingRequest struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model"`
	Input    string `json:"input"`

	// Dimensions asks providers that can shorten vectors for this width.
	Dimensions int `json:"dimensions,omitempty"`
}

type EmbeddingResponse struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Embedding []float32 `json:"embedding"`
}

// send delivers c unless ctx is done first.
func send(ctx context.Context, ch chan<- StreamChunk, c StreamChunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
