package logging

import (
	"context"
	"time"
)

// LogRecord is the audit record exported for each automation run.
type LogRecord struct {
	Timestamp    time.Time         `json:"timestamp"`
	RequestID    string            `json:"request_id"`
	APIKeyID     string            `json:"api_key_id"`
	APIKeyName   string            `json:"api_key_name,omitempty"`
	Action       string            `json:"action"`
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	Tags         map[string]string `json:"tags,omitempty"`
	ProviderMs   int64             `json:"provider_ms"`
	GatewayMs    int64             `json:"gateway_ms"`
	InputTokens  int               `json:"input_tokens"`
	OutputTokens int               `json:"output_tokens"`
	Error        string            `json:"error,omitempty"`
}

// Sink receives audit records from the gateway.
type Sink interface {
	Enqueue(rec *LogRecord) error
	Shutdown(ctx context.Context) error
}

// NoopSink discards audit records. Used when S3 export is disabled.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(rec *LogRecord) error {
	return nil
}

func (s *NoopSink) Shutdown(ctx context.Context) error {
	return nil
}
