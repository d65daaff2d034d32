package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/aiservices/internal/config"
)

type stubProvider struct {
	name      string
	lastChat  ChatRequest
	lastEmbed EmbeddingRequest
	chatCalls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) ChatCompletion(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	s.chatCalls++
	s.lastChat = req
	return &ChatResponse{Provider: s.name, Content: "ok"}, nil
}

func (s *stubProvider) ChatCompletionStream(_ context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	s.lastChat = req
	ch := make(chan StreamChunk, 2)
	ch <- StreamChunk{Content: "x"}
	ch <- StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (s *stubProvider) GenerateEmbedding(_ context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	s.lastEmbed = req
	return &EmbeddingResponse{Provider: s.name, Embedding: []float32{1}}, nil
}

func TestGateway_RoutesByConfiguredProviders(t *testing.T) {
	chat := &stubProvider{name: "anthropic"}
	embed := &stubProvider{name: "ollama"}
	g := NewGatewayWithProviders(config.LLMConfig{
		ChatProvider:      "anthropic",
		Model:             "claude-test",
		EmbeddingProvider: "ollama",
		EmbeddingModel:    "nomic-embed-text",
	}, chat, embed)

	resp, err := g.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", resp.Provider)
	assert.Equal(t, "claude-test", chat.lastChat.Model)

	_, err = g.Embed(context.Background(), EmbeddingRequest{Input: "text"})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", embed.lastEmbed.Model)

	ch, err := g.ChatStream(context.Background(), ChatRequest{Model: "explicit"})
	require.NoError(t, err)
	for range ch {
	}
	assert.Equal(t, "explicit", chat.lastChat.Model)
}

func TestGateway_EmbedCarriesDimensions(t *testing.T) {
	tests := []struct {
		name string
		req  EmbeddingRequest
		want int
	}{
		{name: "configured default", req: EmbeddingRequest{Input: "x"}, want: 768},
		{name: "explicit override", req: EmbeddingRequest{Input: "x", Dimensions: 256}, want: 256},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubProvider{name: "openai"}
			g := NewGatewayWithProviders(config.LLMConfig{
				EmbeddingProvider:   "openai",
				EmbeddingModel:      "text-embedding-3-small",
				EmbeddingDimensions: 768,
			}, p)

			_, err := g.Embed(context.Background(), tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.lastEmbed.Dimensions)
			assert.Equal(t, "text-embedding-3-small", p.lastEmbed.Model)
		})
	}
}

func TestGateway_UnknownProvider(t *testing.T) {
	g := NewGatewayWithProviders(config.LLMConfig{ChatProvider: "openai", EmbeddingProvider: "openai"})

	_, err := g.Chat(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	_, err = g.Embed(context.Background(), EmbeddingRequest{Input: "x"})
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestGateway_CallsProviderOnce(t *testing.T) {
	p := &stubProvider{name: "ollama"}
	g := NewGatewayWithProviders(config.LLMConfig{ChatProvider: "ollama"}, p)

	_, err := g.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.chatCalls)
}

func TestAnthropic_EmbeddingUnsupported(t *testing.T) {
	_, err := NewAnthropicProvider("key").GenerateEmbedding(context.Background(), EmbeddingRequest{Input: "x"})
	assert.ErrorIs(t, err, ErrEmbeddingUnsupported)
}
