package providers

import (
	"fmt"

	"ops_gateway/internal/config"
	"ops_gateway/internal/dispatch"
)

// FromConfig builds the dispatcher from process configuration. A backend
// whose credential is absent is simply not configured; selection failures
// are then reported per request by the dispatcher.
func FromConfig(cfg config.DispatchConfig) (*dispatch.Dispatcher, error) {
	var anthropic, openai dispatch.Backend

	if cfg.AnthropicAPIKey != "" {
		b, err := NewAnthropicBackend(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to build anthropic backend: %w", err)
		}
		anthropic = b
	}

	if cfg.OpenAIAPIKey != "" {
		b, err := NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to build openai backend: %w", err)
		}
		openai = b
	}

	return dispatch.NewDispatcher(cfg.DefaultModel, anthropic, openai), nil
}
