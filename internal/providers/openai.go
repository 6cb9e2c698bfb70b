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

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIBackend implements dispatch.Backend against the chat completions
// API. The system prompt travels as a role-"system" message prepended to
// the conversation.
type OpenAIBackend struct {
	auth    Authenticator
	client  *http.Client
	baseURL string
}

// NewOpenAIBackend creates a new OpenAI backend client.
func NewOpenAIBackend(apiKey, baseURL string, timeout time.Duration) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required for openai backend")
	}
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}

	return &OpenAIBackend{
		auth:    NewSimpleAPIKeyAuth(apiKey, "Authorization", "Bearer "),
		client:  newBackendHTTPClient(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Name returns the provider identifier
func (b *OpenAIBackend) Name() dispatch.ProviderName {
	return dispatch.ProviderOpenAI
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

// Invoke sends a single chat completion request and normalizes the response.
func (b *OpenAIBackend) Invoke(ctx context.Context, inv dispatch.Invocation) (*dispatch.GenerationResult, error) {
	messages := make([]openAIMessage, 0, 2)
	if inv.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: inv.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: inv.Prompt})

	payload := openAIRequest{
		Model:       inv.Model,
		Messages:    messages,
		MaxTokens:   inv.MaxTokens,
		Temperature: inv.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := b.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	return &dispatch.GenerationResult{
		Content: parsed.Choices[0].Message.Content,
		Usage: map[string]int{
			"prompt_tokens":     parsed.Usage.PromptTokens,
			"completion_tokens": parsed.Usage.CompletionTokens,
			"total_tokens":      parsed.Usage.TotalTokens,
		},
	}, nil
}
