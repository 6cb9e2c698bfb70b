package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notification is a message queued for webhook delivery after an
// automation run. It is an explicit, tracked task rather than an
// unawaited side effect.
type Notification struct {
	ID        uuid.UUID      `json:"id"`
	RequestID uuid.UUID      `json:"request_id"`
	Action    string         `json:"action"`
	Severity  string         `json:"severity"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	Fields    map[string]any `json:"fields,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
