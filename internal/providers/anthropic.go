package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ops_gateway/internal/dispatch"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicAPIVersion     = "2023-06-01"
)

// AnthropicBackend implements dispatch.Backend against the Anthropic
// Messages API. The system prompt is a top-level field.
type AnthropicBackend struct {
	auth    Authenticator
	client  *http.Client
	baseURL string
}

// NewAnthropicBackend creates a new Anthropic backend client.
func NewAnthropicBackend(apiKey, baseURL string, timeout time.Duration) (*AnthropicBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required for anthropic backend")
	}
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}

	return &AnthropicBackend{
		auth:    NewSimpleAPIKeyAuth(apiKey, "x-api-key", ""),
		client:  newBackendHTTPClient(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Name returns the provider identifier
func (b *AnthropicBackend) Name() dispatch.ProviderName {
	return dispatch.ProviderAnthropic
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

// Invoke sends a single messages request and normalizes the response.
func (b *AnthropicBackend) Invoke(ctx context.Context, inv dispatch.Invocation) (*dispatch.GenerationResult, error) {
	payload := anthropicRequest{
		Model:       inv.Model,
		MaxTokens:   inv.MaxTokens,
		Temperature: inv.Temperature,
		System:      inv.SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: inv.Prompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := b.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	authCtx, err := b.auth.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if err := authCtx.ApplyToRequest(ctx, httpReq); err != nil {
		return nil, fmt.Errorf("failed to apply auth: %w", err)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" || block.Text != "" {
			text.WriteString(block.Text)
		}
	}

	return &dispatch.GenerationResult{
		Content: text.String(),
		Usage: map[string]int{
			"input_tokens":  parsed.Usage.InputTokens,
			"output_tokens": parsed.Usage.OutputTokens,
		},
	}, nil
}

// newBackendHTTPClient builds the pooled HTTP client shared by backends.
func newBackendHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
