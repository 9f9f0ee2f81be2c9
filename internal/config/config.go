// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/malaga-quest/internal/sweeper"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	Store       string
	KeyPrefix   string

	Anthropic  AnthropicConfig
	RateLimit  RateLimitConfig
	Sweep      SweepConfig
	Transcript TranscriptConfig

	RelayTimeout       time.Duration
	MaxRequestBodySize int64
	RevealInterval     time.Duration
}

// AnthropicConfig configures the Puzzle Master model. An empty APIKey runs
// the scripted Puzzle Master.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	MaxRetries int
}

// RateLimitConfig controls per-client request throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// SweepConfig controls removal of abandoned sessions.
type SweepConfig struct {
	Retention time.Duration
	Schedule  string
}

// TranscriptConfig controls NDJSON transcript logging.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	apiKey := getEnv("ANTHROPIC_API_KEY", "")
	if strings.TrimSpace(apiKey) == "" {
		apiKey = getEnv("CLAUDE_API_KEY", "")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/quest.db"),
		Store:       strings.ToLower(getEnv("STORE", StoreSQLite)),
		KeyPrefix:   getEnv("KEY_PREFIX", "malaga-quest-vialia"),
		Anthropic: AnthropicConfig{
			APIKey:     strings.TrimSpace(apiKey),
			BaseURL:    getEnv("ANTHROPIC_BASE_URL", ""),
			Model:      getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			MaxTokens:  getEnvInt("ANTHROPIC_MAX_TOKENS", 1024),
			MaxRetries: getEnvInt("ANTHROPIC_MAX_RETRIES", 2),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Sweep: SweepConfig{
			Retention: getEnvDuration("SESSION_RETENTION", 720*time.Hour),
			Schedule:  getEnv("SWEEP_SCHEDULE", "@hourly"),
		},
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_LOG_ENABLED", false),
			Dir:       getEnv("TRANSCRIPT_LOG_DIR", "./data/logs/transcripts"),
			QueueSize: getEnvInt("TRANSCRIPT_LOG_QUEUE_SIZE", 1000),
		},
		RelayTimeout:       getEnvDuration("RELAY_TIMEOUT", 30*time.Second),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		RevealInterval:     getEnvDuration("REVEAL_INTERVAL", 15*time.Millisecond),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StoreSQLite, StoreMemory, c.Store)
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("KEY_PREFIX cannot be empty")
	}
	if c.Anthropic.APIKey != "" && c.Anthropic.Model == "" {
		return fmt.Errorf("ANTHROPIC_MODEL cannot be empty")
	}
	if c.Anthropic.MaxTokens <= 0 {
		return fmt.Errorf("ANTHROPIC_MAX_TOKENS must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.RelayTimeout <= 0 {
		return fmt.Errorf("RELAY_TIMEOUT must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.RevealInterval < 0 {
		return fmt.Errorf("REVEAL_INTERVAL cannot be negative")
	}
	if c.Sweep.Retention > 0 {
		if err := sweeper.ValidateSchedule(c.Sweep.Schedule); err != nil {
			return fmt.Errorf("SWEEP_SCHEDULE: %w", err)
		}
	}
	if c.Transcript.Enabled {
		if c.Transcript.Dir == "" {
			return fmt.Errorf("TRANSCRIPT_LOG_DIR cannot be empty")
		}
		if c.Transcript.QueueSize <= 0 {
			return fmt.Errorf("TRANSCRIPT_LOG_QUEUE_SIZE must be > 0")
		}
	}
	return nil
}

// LLMEnabled reports whether a model credential is configured.
func (c *Config) LLMEnabled() bool {
	return c.Anthropic.APIKey != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for FRONTEND_URL.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
