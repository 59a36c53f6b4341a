// Package config provides configuration management for the enrichment
// worker. It loads settings from environment variables with no shared
// prefix (BROKER_*, QUEUE_*, LLM_*, ROBO_*) and applies sensible defaults
// for everything except secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for a worker process.
type Config struct {
	Database DatabaseConfig
	Broker   BrokerConfig
	Queue    QueueConfig
	LLM      LLMConfig
}

// DatabaseConfig is the Postgres connection used for entity persistence.
type DatabaseConfig struct {
	DSN string // DATABASE_URL
}

// BrokerConfig is the Redis connection used for durable queues.
type BrokerConfig struct {
	Host     string // BROKER_HOST (default: localhost)
	Port     int    // BROKER_PORT (default: 6379)
	DB       int    // BROKER_DB (default: 0)
	Password string // BROKER_PASSWORD (default: "")
	SSL      bool   // BROKER_SSL (default: false)
	Timeout  time.Duration
}

// Addr returns the host:port dial address for the broker.
func (b BrokerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// QueueConfig controls per-job timing shared across all queues.
type QueueConfig struct {
	JobTimeout time.Duration // QUEUE_JOB_TIMEOUT seconds (default: 600)
	JobTTL     time.Duration // QUEUE_JOB_TTL seconds (default: 3600)
}

// LLMConfig configures the LLM port, its rate limiter, and retry policy.
type LLMConfig struct {
	APIKey                string        // LLM_API_KEY
	ModelName             string        // LLM_MODEL_NAME
	MaxTokensPerMinute    int           // LLM_MAX_TOKENS_PER_MINUTE (default: 100000)
	MaxRequestsPerMinute  int           // LLM_MAX_REQUESTS_PER_MINUTE (default: 50)
	Timeout               time.Duration // LLM_TIMEOUT_SECONDS
	MaxRetries            int           // LLM_MAX_RETRIES (default: 3)
	RetryBaseDelay        time.Duration // LLM_RETRY_BASE_DELAY
	RetryMaxDelay         time.Duration // LLM_RETRY_MAX_DELAY
	RetryJitter           float64       // LLM_RETRY_JITTER (fraction, default: 0.2)
	NoteEnrichmentPrompt  string        // ROBO_NOTE_ENRICHMENT_PROMPT override
	TaskEnrichmentPrompt  string        // ROBO_TASK_ENRICHMENT_PROMPT override
	ActivitySchemaPrompt  string        // ROBO_ACTIVITY_SCHEMA_PROMPT override
}

// Load reads configuration from the environment, applying defaults for
// every field except LLM.APIKey, which must be set explicitly.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			DSN: getEnv("DATABASE_URL", "postgres://localhost:5432/robo?sslmode=disable"),
		},
		Broker: BrokerConfig{
			Host:     getEnv("BROKER_HOST", "localhost"),
			Port:     getEnvInt("BROKER_PORT", 6379),
			DB:       getEnvInt("BROKER_DB", 0),
			Password: getEnv("BROKER_PASSWORD", ""),
			SSL:      getEnvBool("BROKER_SSL", false),
			Timeout:  getEnvSeconds("BROKER_TIMEOUT", 5*time.Second),
		},
		Queue: QueueConfig{
			JobTimeout: getEnvSeconds("QUEUE_JOB_TIMEOUT", 600*time.Second),
			JobTTL:     getEnvSeconds("QUEUE_JOB_TTL", 3600*time.Second),
		},
		LLM: LLMConfig{
			APIKey:               getEnv("LLM_API_KEY", ""),
			ModelName:            getEnv("LLM_MODEL_NAME", "claude-haiku-4-5-20251001"),
			MaxTokensPerMinute:   getEnvInt("LLM_MAX_TOKENS_PER_MINUTE", 100000),
			MaxRequestsPerMinute: getEnvInt("LLM_MAX_REQUESTS_PER_MINUTE", 50),
			Timeout:              getEnvSeconds("LLM_TIMEOUT_SECONDS", 60*time.Second),
			MaxRetries:           getEnvInt("LLM_MAX_RETRIES", 3),
			RetryBaseDelay:       getEnvSeconds("LLM_RETRY_BASE_DELAY", 2*time.Second),
			RetryMaxDelay:        getEnvSeconds("LLM_RETRY_MAX_DELAY", 60*time.Second),
			RetryJitter:          getEnvFloat("LLM_RETRY_JITTER", 0.2),
			NoteEnrichmentPrompt: os.Getenv("ROBO_NOTE_ENRICHMENT_PROMPT"),
			TaskEnrichmentPrompt: os.Getenv("ROBO_TASK_ENRICHMENT_PROMPT"),
			ActivitySchemaPrompt: os.Getenv("ROBO_ACTIVITY_SCHEMA_PROMPT"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural invariants that defaults alone cannot
// guarantee: a missing API key is a configuration error, not a zero value.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("config: LLM_API_KEY is required")
	}
	if c.LLM.MaxTokensPerMinute <= 0 {
		return fmt.Errorf("config: LLM_MAX_TOKENS_PER_MINUTE must be positive")
	}
	if c.LLM.MaxRequestsPerMinute <= 0 {
		return fmt.Errorf("config: LLM_MAX_REQUESTS_PER_MINUTE must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("config: LLM_MAX_RETRIES must not be negative")
	}
	if c.Queue.JobTimeout <= 0 {
		return fmt.Errorf("config: QUEUE_JOB_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvSeconds parses key as a plain integer count of seconds (per the
// env vars' documented unit), falling back to defaultValue on absence or
// parse failure.
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
