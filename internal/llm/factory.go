package llm

import (
	"fmt"

	"github.com/codevalley/robo-worker/internal/config"
	"github.com/codevalley/robo-worker/internal/ratelimit"
)

// Provider selects which Port implementation NewPort constructs.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderTest      Provider = "test"
)

// NewPort constructs the Port for the given provider. "test" (or empty,
// to keep local development frictionless) returns a TestPort; "anthropic"
// builds an AnthropicPort wired to the supplied rate limiter; any other
// provider is an error.
func NewPort(provider Provider, cfg config.LLMConfig, limiter *ratelimit.Limiter) (Port, error) {
	switch provider {
	case ProviderTest, "":
		return NewTestPort(), nil
	case ProviderAnthropic:
		prompts, err := LoadPromptSet("")
		if err != nil {
			return nil, fmt.Errorf("llm: load prompts: %w", err)
		}
		if cfg.NoteEnrichmentPrompt != "" {
			prompts.NoteEnrichment = cfg.NoteEnrichmentPrompt
		}
		if cfg.TaskEnrichmentPrompt != "" {
			prompts.TaskEnrichment = cfg.TaskEnrichmentPrompt
		}
		if cfg.ActivitySchemaPrompt != "" {
			prompts.ActivitySchema = cfg.ActivitySchemaPrompt
		}
		return NewAnthropicPort(AnthropicConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.ModelName,
			Timeout: cfg.Timeout,
		}, limiter, prompts), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", provider)
	}
}
