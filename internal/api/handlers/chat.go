package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/aiservices/internal/llm"
	"github.com/nikhilbhutani/aiservices/internal/personality"
	"github.com/nikhilbhutani/aiservices/internal/relay"
)

const defaultMaxTokens = 512

type PersonalityStore interface {
	List() ([]string, error)
	Load(id string) (personality.Personality, error)
	Save(id string, p personality.Personality) error
}

type ChatHandler struct {
	gateway       llm.Gateway
	personalities PersonalityStore
}

func NewChatHandler(gw llm.Gateway, ps PersonalityStore) *ChatHandler {
	return &ChatHandler{gateway: gw, personalities: ps}
}

type chatRequest struct {
	Messages    []llm.Message `json:"messages"`
	Personality string        `json:"personality,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// build resolves the personality into a system message. It writes the
// error response itself and reports false when the request cannot go on.
func (h *ChatHandler) build(w http.ResponseWriter, r *http.Request) (chatRequest, llm.ChatRequest, bool) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return body, llm.ChatRequest{}, false
	}
	if len(body.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages required")
		return body, llm.ChatRequest{}, false
	}

	req := llm.ChatRequest{MaxTokens: defaultMaxTokens}
	if body.MaxTokens != nil {
		req.MaxTokens = *body.MaxTokens
	}

	if body.Personality != "" {
		p, err := h.personalities.Load(body.Personality)
		if errors.Is(err, personality.ErrNotFound) || errors.Is(err, personality.ErrInvalidID) {
			writeError(w, http.StatusNotFound, "Personality not found")
			return body, req, false
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return body, req, false
		}
		if prompt := p.SystemPrompt(); prompt != "" {
			req.Messages = append(req.Messages, llm.Message{Role: "system", Content: prompt})
		}
	}
	req.Messages = append(req.Messages, body.Messages...)

	return body, req, true
}

// Chat answers with {"response": ...}, or streams plain text when the body
// asks for it.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	body, req, ok := h.build(w, r)
	if !ok {
		return
	}
	if body.Stream {
		h.stream(w, r, relay.Plain, req)
		return
	}

	resp, err := h.gateway.Chat(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"response": resp.Content})
}

func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	_, req, ok := h.build(w, r)
	if !ok {
		return
	}
	h.stream(w, r, relay.SSE, req)
}

type legacyChatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
}

// LegacyChatStream takes the model from the body and streams plain text.
func (h *ChatHandler) LegacyChatStream(w http.ResponseWriter, r *http.Request) {
	var body legacyChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.stream(w, r, relay.Plain, llm.ChatRequest{Model: body.Model, Messages: body.Messages})
}

func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, rl relay.Relay, req llm.ChatRequest) {
	ch, err := h.gateway.ChatStream(r.Context(), req)
	if err != nil {
		slog.Warn("chat stream failed to start", "relay", rl.Name(), "error", err)
		rl.Fail(w, err)
		return
	}
	if err := rl.Stream(r.Context(), w, ch); err != nil {
		slog.Warn("chat stream ended with error", "relay", rl.Name(), "error", err)
	}
}
