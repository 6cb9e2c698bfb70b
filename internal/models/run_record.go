package models

import (
	"time"

	"github.com/google/uuid"
)

// Automation actions recorded by the gateway.
const (
	ActionGenerate     = "generate"
	ActionCodeReview   = "code_review"
	ActionDeploy       = "deploy"
	ActionRollback     = "rollback"
	ActionMonitor      = "monitor"
	ActionSecurityScan = "security_scan"
)

// Run statuses.
const (
	RunStatusOK    = "ok"
	RunStatusError = "error"
)

// RunRecord is the audit record for a single automation run
type RunRecord struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RequestID    uuid.UUID `db:"request_id" json:"request_id"`
	APIKeyID     uuid.UUID `db:"api_key_id" json:"api_key_id"`
	Action       string    `db:"action" json:"action"`
	Provider     string    `db:"provider" json:"provider"`
	Model        string    `db:"model" json:"model"`
	InputTokens  int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	DurationMS   int       `db:"duration_ms" json:"duration_ms"`
	Status       string    `db:"status" json:"status"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Succeeded reports whether the run completed without error
func (r *RunRecord) Succeeded() bool {
	return r.Status == RunStatusOK
}
