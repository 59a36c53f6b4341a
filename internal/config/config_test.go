package config_test

import (
	"testing"
	"time"

	"github.com/codevalley/robo-worker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LLM_API_KEY", "test-key")
}

func TestLoad_DefaultsAppliedWhenUnset(t *testing.T) {
	withRequiredEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Broker.Host)
	assert.Equal(t, 6379, cfg.Broker.Port)
	assert.Equal(t, false, cfg.Broker.SSL)
	assert.Equal(t, 600*time.Second, cfg.Queue.JobTimeout)
	assert.Equal(t, 3600*time.Second, cfg.Queue.JobTTL)
	assert.Equal(t, 100000, cfg.LLM.MaxTokensPerMinute)
	assert.Equal(t, 50, cfg.LLM.MaxRequestsPerMinute)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 0.2, cfg.LLM.RetryJitter)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	withRequiredEnv(t)
	t.Setenv("BROKER_HOST", "redis.internal")
	t.Setenv("BROKER_PORT", "16379")
	t.Setenv("BROKER_SSL", "true")
	t.Setenv("QUEUE_JOB_TIMEOUT", "30")
	t.Setenv("LLM_MAX_REQUESTS_PER_MINUTE", "5")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal", cfg.Broker.Host)
	assert.Equal(t, 16379, cfg.Broker.Port)
	assert.Equal(t, "redis.internal:16379", cfg.Broker.Addr())
	assert.True(t, cfg.Broker.SSL)
	assert.Equal(t, 30*time.Second, cfg.Queue.JobTimeout)
	assert.Equal(t, 5, cfg.LLM.MaxRequestsPerMinute)
}

func TestLoad_MissingAPIKeyIsAnError(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_MalformedIntFallsBackToDefault(t *testing.T) {
	withRequiredEnv(t)
	t.Setenv("BROKER_PORT", "not-a-number")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 6379, cfg.Broker.Port)
}

func TestValidate_RejectsNonPositiveLimits(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			APIKey:               "k",
			MaxTokensPerMinute:   0,
			MaxRequestsPerMinute: 1,
		},
		Queue: config.QueueConfig{JobTimeout: time.Second},
	}
	assert.Error(t, cfg.Validate())
}
