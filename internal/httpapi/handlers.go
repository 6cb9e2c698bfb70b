package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ops_gateway/internal/auth"
	"ops_gateway/internal/dispatch"
	"ops_gateway/internal/logging"
	"ops_gateway/internal/middleware"
	"ops_gateway/internal/models"
	"ops_gateway/internal/notify"
	"ops_gateway/internal/ops"
	"ops_gateway/internal/ratelimit"
	"ops_gateway/internal/storage"
	"ops_gateway/internal/utils"
)

// runRecorder is the slice of the run queue worker handlers need
type runRecorder interface {
	Enqueue(ctx context.Context, record *models.RunRecord) error
}

// runLister is the slice of the run repository the admin API needs
type runLister interface {
	List(ctx context.Context, filter storage.RunFilter) ([]*models.RunRecord, error)
	Count(ctx context.Context, filter storage.RunFilter) (int, error)
}

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	APIKeys       auth.APIKeyStore
	AdminStore    auth.AdminStore
	Dispatcher    *dispatch.Dispatcher
	RateLimit     ratelimit.Limiter
	Sim           *ops.Simulator
	Audit         logging.Sink
	Notifier      *notify.Notifier
	RequestLogger *logging.RequestLogger
	Runs          runLister
	RunRecorder   runRecorder

	// Background workers, owned here so main can stop them on shutdown
	RunWorker    *storage.RunQueueWorker
	NotifyWorker *notify.NotifyWorker
}

var apiLogger = utils.NewLogger("httpapi")

// runOutcome captures everything recorded after an automation run.
// providerMS times the upstream LLM call alone; gatewayMS is the full
// handler duration including parsing and simulation.
type runOutcome struct {
	action     string
	provider   string
	model      string
	usage      map[string]int
	providerMS int
	gatewayMS  int
	err        error
}

// tokenCounts reads token usage regardless of upstream naming.
// Anthropic reports input_tokens/output_tokens, OpenAI reports
// prompt_tokens/completion_tokens.
func tokenCounts(usage map[string]int) (inputTokens, outputTokens int) {
	inputTokens = usage["input_tokens"]
	if inputTokens == 0 {
		inputTokens = usage["prompt_tokens"]
	}
	outputTokens = usage["output_tokens"]
	if outputTokens == 0 {
		outputTokens = usage["completion_tokens"]
	}
	return inputTokens, outputTokens
}

// recordRun enqueues the audit trail for a finished run: a run record
// for Postgres and an audit log record for S3 export. Both are
// best-effort and never block the response.
func (d *Dependencies) recordRun(r *http.Request, outcome runOutcome) {
	requestID := parseRequestID(r.Context())

	var apiKeyID uuid.UUID
	var apiKeyName string
	if record, ok := middleware.GetAPIKeyRecord(r.Context()); ok {
		if id, err := uuid.Parse(record.ID); err == nil {
			apiKeyID = id
		}
		apiKeyName = record.Name
	}

	status := models.RunStatusOK
	errMsg := ""
	if outcome.err != nil {
		status = models.RunStatusError
		errMsg = outcome.err.Error()
	}

	inputTokens, outputTokens := tokenCounts(outcome.usage)

	run := &models.RunRecord{
		RequestID:    requestID,
		APIKeyID:     apiKeyID,
		Action:       outcome.action,
		Provider:     outcome.provider,
		Model:        outcome.model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		DurationMS:   outcome.gatewayMS,
		Status:       status,
		ErrorMessage: errMsg,
	}

	// Detach from the request context so enqueueing survives client disconnects
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if d.RunRecorder != nil {
		if err := d.RunRecorder.Enqueue(ctx, run); err != nil {
			apiLogger.Error("Failed to enqueue run record", "request_id", requestID, "error", err)
		}
	}

	if d.Audit != nil {
		_ = d.Audit.Enqueue(&logging.LogRecord{
			Timestamp:    time.Now(),
			RequestID:    requestID.String(),
			APIKeyID:     apiKeyID.String(),
			APIKeyName:   apiKeyName,
			Action:       outcome.action,
			Provider:     outcome.provider,
			Model:        outcome.model,
			ProviderMs:   int64(outcome.providerMS),
			GatewayMs:    int64(outcome.gatewayMS),
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			Error:        errMsg,
		})
	}
}

// sendNotification queues an operator notification for async delivery
func (d *Dependencies) sendNotification(r *http.Request, action, severity, subject, body string, fields map[string]any) {
	if d.Notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	notification := &models.Notification{
		RequestID: parseRequestID(r.Context()),
		Action:    action,
		Severity:  severity,
		Subject:   subject,
		Body:      body,
		Fields:    fields,
	}
	if err := d.Notifier.Send(ctx, notification); err != nil {
		apiLogger.Error("Failed to enqueue notification", "action", action, "error", err)
	}
}

// requireAction verifies the authenticated key may invoke the action.
// Returns false after writing the error response.
func (d *Dependencies) requireAction(w http.ResponseWriter, r *http.Request, action string) (*auth.APIKeyRecord, bool) {
	record, ok := middleware.GetAPIKeyRecord(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing API key")
		return nil, false
	}
	if !record.AllowsAction(action) {
		writeJSONError(w, http.StatusForbidden, "API key not permitted to run "+action)
		return nil, false
	}
	return record, true
}

// parseRequestID converts the middleware correlation ID into a UUID,
// minting a fresh one for caller-supplied non-UUID values
func parseRequestID(ctx context.Context) uuid.UUID {
	if raw := middleware.GetRequestID(ctx); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return uuid.New()
}
