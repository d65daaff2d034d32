package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nikhilbhutani/aiservices/pkg/chunker"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	LLM         LLMConfig
	Training    TrainingConfig
	Personality PersonalityConfig
	RateLimit   RateLimitConfig
}

type ServerConfig struct {
	Host string
	Port int

	// NodeID distinguishes processes that generate record ids.
	NodeID      int
	CORSOrigins []string
}

// DatabaseConfig is the service's own database, used for migrations and
// readiness. Training jobs connect with the parameters carried in the job.
type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	OllamaURL         string
	OpenAIKey         string
	OpenAIBaseURL     string
	AnthropicKey      string
	ChatProvider      string
	Model             string
	EmbeddingProvider string
	EmbeddingModel    string

	// EmbeddingDimensions must match the width of the embedding column.
	EmbeddingDimensions int
	Timeout             time.Duration
}

type TrainingConfig struct {
	ChunkSize         int
	ChunkOverlap      int
	ChunkPause        time.Duration
	MaxFilesPerJob    int
	EventTTL          time.Duration
	WorkerConcurrency int
}

type PersonalityConfig struct {
	Dir string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func Load() (*Config, error) {
	var errs []string
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	durationVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 20)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RATE_LIMIT_RPS: %v", err))
	}

	embeddingProvider := getEnv("EMBEDDING_PROVIDER", "ollama")

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        intVar("SERVER_PORT", 8080),
			NodeID:      intVar("NODE_ID", 1),
			CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       intVar("DB_MAX_CONNS", 10),
			MinConns:       intVar("DB_MIN_CONNS", 1),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("SERVICE_JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OllamaURL:           getEnv("OLLAMA_URL", "http://localhost:11434"),
			OpenAIKey:           getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
			AnthropicKey:        getEnv("ANTHROPIC_API_KEY", ""),
			ChatProvider:        getEnv("LLM_CHAT_PROVIDER", "ollama"),
			Model:               getEnv("MODEL", "mistral"),
			EmbeddingProvider:   embeddingProvider,
			EmbeddingModel:      getEnv("EMBEDDING_MODEL", defaultEmbeddingModel(embeddingProvider)),
			EmbeddingDimensions: intVar("EMBEDDING_DIMENSIONS", 768),
			Timeout:             durationVar("LLM_TIMEOUT", 5*time.Minute),
		},
		Training: TrainingConfig{
			ChunkSize:         intVar("CHUNK_SIZE", 1000),
			ChunkOverlap:      intVar("CHUNK_OVERLAP", 200),
			ChunkPause:        durationVar("TRAINING_CHUNK_PAUSE", 100*time.Millisecond),
			MaxFilesPerJob:    intVar("TRAINING_MAX_FILES_PER_JOB", 5),
			EventTTL:          durationVar("TRAINING_EVENT_TTL", 24*time.Hour),
			WorkerConcurrency: intVar("WORKER_CONCURRENCY", 4),
		},
		Personality: PersonalityConfig{
			Dir: getEnv("PERSONALITIES_DIR", "personalities"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: rps,
			Burst:             intVar("RATE_LIMIT_BURST", 40),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("load config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ChunkerConfig returns the chunk window configured for training.
func (c *Config) ChunkerConfig() chunker.Config {
	return chunker.Config{Size: c.Training.ChunkSize, Overlap: c.Training.ChunkOverlap}
}

func (c *Config) Validate() error {
	if err := c.ChunkerConfig().Validate(); err != nil {
		return fmt.Errorf("CHUNK_SIZE/CHUNK_OVERLAP: %w", err)
	}

	var problems []string
	if c.Training.MaxFilesPerJob <= 0 {
		problems = append(problems, "TRAINING_MAX_FILES_PER_JOB must be positive")
	}
	if c.Training.ChunkPause < 0 {
		problems = append(problems, "TRAINING_CHUNK_PAUSE must not be negative")
	}
	switch c.LLM.ChatProvider {
	case "ollama", "openai", "anthropic":
	default:
		problems = append(problems, fmt.Sprintf("LLM_CHAT_PROVIDER %q is not one of ollama, openai, anthropic", c.LLM.ChatProvider))
	}
	switch c.LLM.EmbeddingProvider {
	case "ollama", "openai":
	default:
		problems = append(problems, fmt.Sprintf("EMBEDDING_PROVIDER %q is not one of ollama, openai", c.LLM.EmbeddingProvider))
	}
	if (c.LLM.ChatProvider == "openai" || c.LLM.EmbeddingProvider == "openai") && c.LLM.OpenAIKey == "" {
		problems = append(problems, "OPENAI_API_KEY is required for the openai provider")
	}
	if c.LLM.EmbeddingDimensions <= 0 {
		problems = append(problems, "EMBEDDING_DIMENSIONS must be positive")
	}
	if c.LLM.EmbeddingProvider == "openai" && c.LLM.OpenAIBaseURL == "" {
		switch {
		case !strings.HasPrefix(c.LLM.EmbeddingModel, "text-embedding-"):
			problems = append(problems, fmt.Sprintf("EMBEDDING_MODEL %q is not an OpenAI embedding model", c.LLM.EmbeddingModel))
		case c.LLM.EmbeddingModel == "text-embedding-ada-002" && c.LLM.EmbeddingDimensions != 1536:
			problems = append(problems, "text-embedding-ada-002 only produces 1536 dimensions")
		}
	}
	if c.LLM.ChatProvider == "anthropic" && c.LLM.AnthropicKey == "" {
		problems = append(problems, "ANTHROPIC_API_KEY is required for the anthropic provider")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, ", "))
	}
	return nil
}

func defaultEmbeddingModel(provider string) string {
	if provider == "openai" {
		return "text-embedding-3-small"
	}
	return "nomic-embed-text"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
