package dispatch

import "context"

// ProviderName identifies a text-generation backend. The set is closed:
// the gateway speaks to exactly two providers.
type ProviderName string

const (
	ProviderAnthropic ProviderName = "anthropic"
	ProviderOpenAI    ProviderName = "openai"

	// ProviderAuto lets the dispatcher pick a backend from the model name.
	ProviderAuto ProviderName = "auto"
)

// Defaults applied when the caller omits a field.
const (
	DefaultMaxTokens   = 4000
	DefaultTemperature = 0.7
)

// GenerationRequest is a uniform text-generation request. It is built per
// call and never mutated by the dispatcher.
type GenerationRequest struct {
	Prompt       string       `json:"prompt"`
	Model        string       `json:"model,omitempty"`
	MaxTokens    int          `json:"max_tokens,omitempty"`
	Temperature  *float64     `json:"temperature,omitempty"` // nil = use default
	SystemPrompt string       `json:"system_prompt,omitempty"`
	Provider     ProviderName `json:"provider,omitempty"` // empty = auto
}

// GenerationResult is the uniform response shape for both backends.
// Provider always names the backend that was actually invoked, and Model
// the model string that was sent to it.
type GenerationResult struct {
	Content  string         `json:"content"`
	Model    string         `json:"model"`
	Usage    map[string]int `json:"usage,omitempty"`
	Provider ProviderName   `json:"provider"`
}

// Invocation is a fully resolved request handed to a backend: defaults
// applied, model resolved. Backends adapt it to their own wire shape.
type Invocation struct {
	Model        string
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Backend is the capability interface implemented by each provider client.
// Invoke performs exactly one outbound call; retries are the caller's
// concern.
type Backend interface {
	Name() ProviderName
	Invoke(ctx context.Context, inv Invocation) (*GenerationResult, error)
}
