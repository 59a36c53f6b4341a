package llm_test

import (
	"testing"

	"github.com/codevalley/robo-worker/internal/config"
	"github.com/codevalley/robo-worker/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPort_TestProviderReturnsTestPort(t *testing.T) {
	port, err := llm.NewPort(llm.ProviderTest, config.LLMConfig{}, nil)
	require.NoError(t, err)
	_, ok := port.(*llm.TestPort)
	assert.True(t, ok)
}

func TestNewPort_EmptyProviderDefaultsToTestPort(t *testing.T) {
	port, err := llm.NewPort("", config.LLMConfig{}, nil)
	require.NoError(t, err)
	_, ok := port.(*llm.TestPort)
	assert.True(t, ok)
}

func TestNewPort_AnthropicProviderReturnsAnthropicPort(t *testing.T) {
	port, err := llm.NewPort(llm.ProviderAnthropic, config.LLMConfig{APIKey: "k"}, newTestLimiter())
	require.NoError(t, err)
	_, ok := port.(*llm.AnthropicPort)
	assert.True(t, ok)
}

func TestNewPort_UnsupportedProviderIsAnError(t *testing.T) {
	_, err := llm.NewPort("bogus", config.LLMConfig{}, nil)
	assert.Error(t, err)
}
