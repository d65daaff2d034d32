package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/aiservices/internal/cache"
	"github.com/nikhilbhutani/aiservices/internal/llm"
	"github.com/nikhilbhutani/aiservices/internal/personality"
	"github.com/nikhilbhutani/aiservices/internal/queue"
	"github.com/nikhilbhutani/aiservices/internal/training"
)

type stubGateway struct {
	lastReq  llm.ChatRequest
	reply    string
	chatErr  error
	chunks   []llm.StreamChunk
	startErr error
}

func (g *stubGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	g.lastReq = req
	if g.chatErr != nil {
		return nil, g.chatErr
	}
	return &llm.ChatResponse{Content: g.reply}, nil
}

func (g *stubGateway) ChatStream(_ context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	g.lastReq = req
	if g.startErr != nil {
		return nil, g.startErr
	}
	ch := make(chan llm.StreamChunk, len(g.chunks))
	for _, c := range g.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (g *stubGateway) Embed(context.Context, llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return nil, llm.ErrEmbeddingUnsupported
}

func (g *stubGateway) Provider(string) (llm.Provider, error) { return nil, llm.ErrProviderNotConfigured }

func (g *stubGateway) ChatModel() string { return "mistral" }

func (g *stubGateway) EmbeddingModel() string { return "nomic-embed-text" }

func newPersonalities(t *testing.T) *personality.Store {
	t.Helper()
	s, err := personality.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Save("pirate", personality.Personality{"id": "pirate", "system_prompt": "Talk like a pirate."}))
	return s
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func chatRouter(gw llm.Gateway, ps PersonalityStore) http.Handler {
	h := NewChatHandler(gw, ps)
	p := NewPersonalityHandler(ps)
	r := chi.NewRouter()
	r.Post("/chat", h.Chat)
	r.Post("/chat/stream", h.ChatStream)
	r.Post("/api/chat/stream", h.LegacyChatStream)
	r.Get("/personalities", p.List)
	r.Post("/personalities", p.Save)
	r.Get("/personalities/{id}", p.Get)
	return r
}

func TestChat_NonStreamingWithPersonality(t *testing.T) {
	gw := &stubGateway{reply: "Arr!"}
	rec := do(chatRouter(gw, newPersonalities(t)), http.MethodPost, "/chat",
		`{"messages":[{"role":"user","content":"hi"}],"personality":"pirate"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"Arr!"}`, rec.Body.String())

	require.Len(t, gw.lastReq.Messages, 2)
	assert.Equal(t, llm.Message{Role: "system", Content: "Talk like a pirate."}, gw.lastReq.Messages[0])
	assert.Equal(t, "hi", gw.lastReq.Messages[1].Content)
	assert.Equal(t, 512, gw.lastReq.MaxTokens)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name     string
		gw       *stubGateway
		body     string
		expected int
		contains string
	}{
		{name: "unknown personality", gw: &stubGateway{}, body: `{"messages":[{"role":"user","content":"hi"}],"personality":"ghost"}`, expected: http.StatusNotFound, contains: "Personality not found"},
		{name: "no messages", gw: &stubGateway{}, body: `{"messages":[]}`, expected: http.StatusBadRequest, contains: "messages required"},
		{name: "bad json", gw: &stubGateway{}, body: `{`, expected: http.StatusBadRequest, contains: "invalid request body"},
		{name: "upstream failure", gw: &stubGateway{chatErr: errors.New("ollama down")}, body: `{"messages":[{"role":"user","content":"hi"}]}`, expected: http.StatusBadGateway, contains: "ollama down"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(chatRouter(tc.gw, newPersonalities(t)), http.MethodPost, "/chat", tc.body)
			assert.Equal(t, tc.expected, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.contains)
		})
	}
}

func TestChat_StreamFlagRelaysPlainText(t *testing.T) {
	gw := &stubGateway{chunks: []llm.StreamChunk{{Content: "Hel"}, {Content: "lo"}, {Done: true}}}
	rec := do(chatRouter(gw, newPersonalities(t)), http.MethodPost, "/chat",
		`{"messages":[{"role":"user","content":"hi"}],"stream":true,"max_tokens":64}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hel\nlo\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, 64, gw.lastReq.MaxTokens)
}

func TestChatStream_SSE(t *testing.T) {
	gw := &stubGateway{chunks: []llm.StreamChunk{{Content: "a"}, {Content: "b"}, {Done: true}}}
	rec := do(chatRouter(gw, newPersonalities(t)), http.MethodPost, "/chat/stream",
		`{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "data: {\"content\":\"a\"}\n\ndata: {\"content\":\"b\"}\n\ndata: [DONE]\n\n", rec.Body.String())
}

func TestChatStream_StartFailureUsesErrorFrame(t *testing.T) {
	gw := &stubGateway{startErr: errors.New("connection refused")}
	rec := do(chatRouter(gw, newPersonalities(t)), http.MethodPost, "/chat/stream",
		`{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, "data: {\"error\":\"connection refused\"}\n\n", rec.Body.String())
}

func TestLegacyChatStream_UsesBodyModel(t *testing.T) {
	gw := &stubGateway{chunks: []llm.StreamChunk{{Content: "x"}, {Done: true}}}
	rec := do(chatRouter(gw, newPersonalities(t)), http.MethodPost, "/api/chat/stream",
		`{"model":"llama3","messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, "x\n", rec.Body.String())
	assert.Equal(t, "llama3", gw.lastReq.Model)
}

func TestPersonalities(t *testing.T) {
	h := chatRouter(&stubGateway{}, newPersonalities(t))

	rec := do(h, http.MethodPost, "/personalities", `{"id":"tutor","system_prompt":"Explain simply."}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"message":"Personality 'tutor' saved."}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/personalities", "")
	assert.JSONEq(t, `["pirate","tutor"]`, rec.Body.String())

	rec = do(h, http.MethodGet, "/personalities/tutor", "")
	assert.JSONEq(t, `{"id":"tutor","system_prompt":"Explain simply."}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/personalities/nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodPost, "/personalities", `{"system_prompt":"no id"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "`id` field is required")
}

type fakeRunner struct{ events []training.Event }

func (f *fakeRunner) Run(ctx context.Context, _ training.Job, sink training.Sink) error {
	for _, e := range f.events {
		if err := sink.Emit(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

type fakeQueue struct{ payloads []queue.TrainingRunPayload }

func (q *fakeQueue) EnqueueTrainingRun(_ context.Context, p queue.TrainingRunPayload) (string, error) {
	q.payloads = append(q.payloads, p)
	return "q-" + p.JobID, nil
}

type fakeProgress struct{ events map[string][]training.Event }

func (p *fakeProgress) Subscribe(_ context.Context, jobID string) (<-chan training.Event, error) {
	ch := make(chan training.Event, len(p.events[jobID]))
	for _, e := range p.events[jobID] {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func (p *fakeProgress) Latest(_ context.Context, jobID string) (training.Event, error) {
	events := p.events[jobID]
	if len(events) == 0 {
		return training.Event{}, cache.ErrMiss
	}
	return events[len(events)-1], nil
}

func trainingRouter(h *TrainingHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/training/stream", h.Stream)
	r.Post("/training/start", h.Start)
	r.Get("/training/{jobID}/events", h.Events)
	r.Get("/training/{jobID}/status", h.Status)
	return r
}

func sseEvents(t *testing.T, body string) []training.Event {
	t.Helper()
	var events []training.Event
	for _, frame := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var e training.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &e))
		events = append(events, e)
	}
	return events
}

func TestTrainingStream(t *testing.T) {
	runner := &fakeRunner{events: []training.Event{
		{Type: training.EventProgress, CurrentFile: 1, TotalFiles: 1, Percentage: 0, Message: "Processing a.txt (5 bytes)..."},
		{Type: training.EventComplete, Status: training.StatusCompleted, Percentage: 100, Message: "Training completed successfully"},
	}}
	rec := do(trainingRouter(NewTrainingHandler(runner, nil, nil, 5)), http.MethodPost, "/training/stream",
		`{"knowledge_base_id":1,"version_id":2,"files":[{"id":3,"name":"a.txt","path":"/a.txt"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	events := sseEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, training.EventComplete, events[1].Type)
	assert.Equal(t, 100, events[1].Percentage)
}

func TestTrainingStart_BatchesFiles(t *testing.T) {
	q := &fakeQueue{}
	h := NewTrainingHandler(&fakeRunner{}, q, &fakeProgress{}, 5)

	var files []string
	for i := 1; i <= 7; i++ {
		files = append(files, `{"id":`+strconv.Itoa(i)+`,"name":"f","path":"/f"}`)
	}
	body := `{"knowledge_base_id":4,"version_id":9,"files":[` + strings.Join(files, ",") + `]}`

	rec := do(trainingRouter(h), http.MethodPost, "/training/start", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "4_9", resp.TaskID)
	assert.Equal(t, "started", resp.Status)
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, 5, resp.Jobs[0].Files)
	assert.Equal(t, 2, resp.Jobs[1].Files)
	assert.Equal(t, 2, resp.Jobs[1].JobIndex)
	assert.Equal(t, "q-"+resp.Jobs[0].JobID, resp.Jobs[0].QueueID)

	require.Len(t, q.payloads, 2)
	assert.Equal(t, "4_9", q.payloads[0].TaskID)
	assert.Equal(t, training.Label(resp.Jobs[1].JobID), q.payloads[1].Job.Files[0].JobID)
}

func TestTrainingStart_Rejects(t *testing.T) {
	h := trainingRouter(NewTrainingHandler(&fakeRunner{}, &fakeQueue{}, &fakeProgress{}, 5))

	rec := do(h, http.MethodPost, "/training/start", `{"knowledge_base_id":1,"version_id":1,"files":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/training/start", `{"version_id":1,"files":[{"path":"/x"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(trainingRouter(NewTrainingHandler(&fakeRunner{}, nil, nil, 5)), http.MethodPost, "/training/start", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTrainingEventsAndStatus(t *testing.T) {
	progress := &fakeProgress{events: map[string][]training.Event{
		"job-1": {
			{Type: training.EventProgress, Percentage: 50},
			{Type: training.EventComplete, Percentage: 100},
		},
	}}
	h := trainingRouter(NewTrainingHandler(&fakeRunner{}, &fakeQueue{}, progress, 5))

	rec := do(h, http.MethodGet, "/training/job-1/events", "")
	events := sseEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, 50, events[0].Percentage)

	rec = do(h, http.MethodGet, "/training/job-1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"complete"`)

	rec = do(h, http.MethodGet, "/training/missing/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	healthy := NewHealthHandler(map[string]Pinger{"redis": pingFunc(func(context.Context) error { return nil }), "database": nil})
	rec := httptest.NewRecorder()
	healthy.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"redis":"ok"}}`, rec.Body.String())

	broken := NewHealthHandler(map[string]Pinger{"redis": pingFunc(func(context.Context) error { return errors.New("refused") })})
	rec = httptest.NewRecorder()
	broken.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy: refused")

	rec = httptest.NewRecorder()
	healthy.Banner(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"message":"AI Service running successfully 🚀"}`, rec.Body.String())
}
