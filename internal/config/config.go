// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/pagetree/internal/llm"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Index storage
	StoreDir       string
	IndexCacheSize int

	// Model endpoints
	LLMBaseURL      string
	LLMAPIKey       string
	LLMModel        string
	LLMMaxTokens    int
	LLMContextLimit int
	LLMTimeout      time.Duration
	GeminiAPIKey    string
	GeminiModel     string

	// Worker pool
	WorkerCount          int
	MaxQueueSize         int
	MaxConcurrentWindows int

	// Upload limits
	MaxUploadBytes int64

	// Index build bounds
	MaxNodePages   int
	LookaheadPages int
	MaxAttempts    int

	// Retrieval
	SearchSeed uint64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("PAGETREE_API_KEY"),

		StoreDir:       envOr("INDEX_DIR", "./indexes"),
		IndexCacheSize: envInt("INDEX_CACHE_SIZE", 64),

		LLMBaseURL:      envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:       os.Getenv("LLM_API_KEY"),
		LLMModel:        envOr("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:    envInt("LLM_MAX_TOKENS", 4096),
		LLMContextLimit: envInt("LLM_CONTEXT_LIMIT", 128000),
		LLMTimeout:      envDuration("LLM_TIMEOUT", 120*time.Second),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     envOr("GEMINI_MODEL", "gemini-2.0-flash"),

		WorkerCount:          envInt("WORKER_COUNT", 2),
		MaxQueueSize:         envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentWindows: envInt("MAX_CONCURRENT_WINDOWS", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		MaxNodePages:   envInt("MAX_NODE_PAGES", 3),
		LookaheadPages: envInt("LOOKAHEAD_PAGES", 0), // 0 = derive from context limit
		MaxAttempts:    envInt("ANALYSIS_MAX_ATTEMPTS", 3),

		SearchSeed: uint64(envInt64("SEARCH_SEED", 1)),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentWindows <= 0 {
		cfg.MaxConcurrentWindows = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MaxNodePages <= 0 {
		cfg.MaxNodePages = 3
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("PAGETREE_API_KEY is required")
	}
	if c.LLMAPIKey == "" && c.GeminiAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY or GEMINI_API_KEY is required")
	}
	return nil
}

// ModelConfigs builds the registry configs from the configured endpoints.
// The OpenAI-compatible endpoint, when configured, is the default model.
func (c Config) ModelConfigs() []llm.ModelConfig {
	var out []llm.ModelConfig
	if c.LLMAPIKey != "" {
		out = append(out, llm.ModelConfig{
			ID:           "default",
			Name:         c.LLMModel,
			Kind:         "openai",
			BaseURL:      c.LLMBaseURL,
			APIKey:       c.LLMAPIKey,
			MaxTokens:    c.LLMMaxTokens,
			ContextLimit: c.LLMContextLimit,
			Timeout:      c.LLMTimeout,
		})
	}
	if c.GeminiAPIKey != "" {
		out = append(out, llm.ModelConfig{
			ID:           "gemini",
			Name:         c.GeminiModel,
			Kind:         "gemini",
			APIKey:       c.GeminiAPIKey,
			ContextLimit: c.LLMContextLimit,
			Timeout:      c.LLMTimeout,
		})
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
