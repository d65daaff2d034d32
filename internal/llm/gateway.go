package llm

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/aiservices/internal/config"
)

type gateway struct {
	providers           map[string]Provider
	chatProvider        string
	chatModel           string
	embeddingProvider   string
	embeddingModel      string
	embeddingDimensions int
}

func NewGateway(cfg config.LLMConfig) Gateway {
	g := newGateway(cfg)

	if cfg.OllamaURL != "" {
		g.providers["ollama"] = NewOllamaProvider(cfg.OllamaURL, cfg.Timeout)
	}
	if cfg.OpenAIKey != "" {
		if cfg.OpenAIBaseURL != "" {
			g.providers["openai"] = NewOpenAIProviderWithBaseURL(cfg.OpenAIKey, cfg.OpenAIBaseURL)
		} else {
			g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
		}
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}

	return g
}

// NewGatewayWithProviders builds a gateway over an explicit provider set.
func NewGatewayWithProviders(cfg config.LLMConfig, providers ...Provider) Gateway {
	g := newGateway(cfg)
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func newGateway(cfg config.LLMConfig) *gateway {
	return &gateway{
		providers:           make(map[string]Provider),
		chatProvider:        cfg.ChatProvider,
		chatModel:           cfg.Model,
		embeddingProvider:   cfg.EmbeddingProvider,
		embeddingModel:      cfg.EmbeddingModel,
		embeddingDimensions: cfg.EmbeddingDimensions,
	}
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotConfigured, name)
	}
	return p, nil
}

func (g *gateway) ChatModel() string { return g.chatModel }

func (g *gateway) EmbeddingModel() string { return g.embeddingModel }

func (g *gateway) resolveChat(req ChatRequest) (Provider, ChatRequest, error) {
	name := req.Provider
	if name == "" {
		name = g.chatProvider
	}
	if req.Model == "" {
		req.Model = g.chatModel
	}
	p, err := g.Provider(name)
	return p, req, err
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p, req, err := g.resolveChat(req)
	if err != nil {
		return nil, err
	}
	return p.ChatCompletion(ctx, req)
}

func (g *gateway) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	p, req, err := g.resolveChat(req)
	if err != nil {
		return nil, err
	}
	return p.ChatCompletionStream(ctx, req)
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	name := req.Provider
	if name == "" {
		name = g.embeddingProvider
	}
	if req.Model == "" {
		req.Model = g.embeddingModel
	}
	if req.Dimensions == 0 {
		req.Dimensions = g.embeddingDimensions
	}

	p, err := g.Provider(name)
	if err != nil {
		return nil, err
	}
	return p.GenerateEmbedding(ctx, req)
}
