package dispatch

import (
	"context"
	"fmt"
	"strings"
)

// Model family substrings used to infer a backend from a model name.
const (
	anthropicModelFamily = "claude"
	openaiModelFamily    = "gpt"
)

// Dispatcher routes a generation request to one of two backends and
// normalizes the response. It holds no mutable state after construction
// and is safe for concurrent use.
type Dispatcher struct {
	anthropic    Backend // nil when no credential is configured
	openai       Backend // nil when no credential is configured
	defaultModel string
}

// NewDispatcher builds a dispatcher over the given backends. A nil backend
// means that provider is not configured. defaultModel is used when a
// request omits the model field.
func NewDispatcher(defaultModel string, anthropic, openai Backend) *Dispatcher {
	return &Dispatcher{
		anthropic:    anthropic,
		openai:       openai,
		defaultModel: defaultModel,
	}
}

// Generate validates the request, selects a backend, and performs a single
// outbound call. On failure it returns one of the dispatch error kinds and
// no partial result.
func (d *Dispatcher) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	inv, err := d.resolve(req)
	if err != nil {
		return nil, err
	}

	backend, err := d.selectBackend(req.Provider, inv.Model)
	if err != nil {
		return nil, err
	}

	result, err := backend.Invoke(ctx, *inv)
	if err != nil {
		// Caller cancellation surfaces as-is so it is not mistaken for an
		// upstream fault.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrUpstream, backend.Name(), err.Error())
	}

	result.Provider = backend.Name()
	result.Model = inv.Model
	return result, nil
}

// resolve validates the request and applies defaults, producing the exact
// invocation parameters a backend will receive.
func (d *Dispatcher) resolve(req GenerationRequest) (*Invocation, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt must not be empty", ErrInvalidRequest)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	} else if maxTokens < 0 {
		return nil, fmt.Errorf("%w: max_tokens must be positive", ErrInvalidRequest)
	}

	temperature := DefaultTemperature
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 1 {
			return nil, fmt.Errorf("%w: temperature must be in [0,1]", ErrInvalidRequest)
		}
		temperature = *req.Temperature
	}

	model := req.Model
	if model == "" {
		model = d.defaultModel
	}

	return &Invocation{
		Model:        model,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    maxTokens,
		Temperature:  temperature,
	}, nil
}

// selectBackend is the single decision point for backend selection.
//
// Precedence: explicit hint, then model family substring, then whichever
// backend is enabled (anthropic first), then failure.
func (d *Dispatcher) selectBackend(hint ProviderName, model string) (Backend, error) {
	switch hint {
	case ProviderAnthropic:
		if d.anthropic == nil {
			return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, ProviderAnthropic)
		}
		return d.anthropic, nil
	case ProviderOpenAI:
		if d.openai == nil {
			return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, ProviderOpenAI)
		}
		return d.openai, nil
	case ProviderAuto, "":
		// fall through to model inspection
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidRequest, hint)
	}

	if d.anthropic != nil && strings.Contains(model, anthropicModelFamily) {
		return d.anthropic, nil
	}
	if d.openai != nil && strings.Contains(model, openaiModelFamily) {
		return d.openai, nil
	}

	// Model matches neither family: fall back to whatever is enabled,
	// preferring anthropic.
	if d.anthropic != nil {
		return d.anthropic, nil
	}
	if d.openai != nil {
		return d.openai, nil
	}
	return nil, ErrNoProviderConfigured
}
