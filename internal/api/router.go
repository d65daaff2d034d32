package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/aiservices/internal/api/handlers"
	"github.com/nikhilbhutani/aiservices/internal/api/middleware"
	"github.com/nikhilbhutani/aiservices/internal/auth"
	"github.com/nikhilbhutani/aiservices/internal/config"
	"github.com/nikhilbhutani/aiservices/internal/llm"
	"github.com/nikhilbhutani/aiservices/internal/monitoring"
)

// Deps are the services the router exposes. Queue and Progress may be nil,
// which disables the queued training endpoints.
type Deps struct {
	Gateway       llm.Gateway
	Personalities handlers.PersonalityStore
	Runner        handlers.TrainingRunner
	Queue         handlers.TrainingQueue
	Progress      handlers.ProgressSource
	Checks        map[string]handlers.Pinger
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
	jwt  *auth.JWTMiddleware
	rl   *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
		jwt:  auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		rl:   middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	}
}

// RateLimiter exposes the limiter so callers can run its sweeper.
func (rt *Router) RateLimiter() *middleware.RateLimiter { return rt.rl }

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/", health.Banner)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Method(http.MethodGet, "/metrics", monitoring.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rt.rl.Limit)
		r.Use(rt.jwt.Authenticate)

		trainingH := handlers.NewTrainingHandler(rt.deps.Runner, rt.deps.Queue, rt.deps.Progress, rt.cfg.Training.MaxFilesPerJob)
		r.Route("/training", func(r chi.Router) {
			r.Post("/stream", trainingH.Stream)
			r.Post("/start", trainingH.Start)
			r.Get("/{jobID}/events", trainingH.Events)
			r.Get("/{jobID}/status", trainingH.Status)
		})

		chatH := handlers.NewChatHandler(rt.deps.Gateway, rt.deps.Personalities)
		r.Post("/chat", chatH.Chat)
		r.Post("/chat/stream", chatH.ChatStream)
		r.Post("/api/chat/stream", chatH.LegacyChatStream)

		personalityH := handlers.NewPersonalityHandler(rt.deps.Personalities)
		r.Route("/personalities", func(r chi.Router) {
			r.Get("/", personalityH.List)
			r.Post("/", personalityH.Save)
			r.Get("/{id}", personalityH.Get)
		})
	})

	return r
}
