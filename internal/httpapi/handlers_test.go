package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"ops_gateway/internal/auth"
	"ops_gateway/internal/config"
	"ops_gateway/internal/dispatch"
	"ops_gateway/internal/logging"
	"ops_gateway/internal/middleware"
	"ops_gateway/internal/models"
	"ops_gateway/internal/notify"
	"ops_gateway/internal/ops"
	"ops_gateway/internal/queue"
	"ops_gateway/internal/ratelimit"
	"ops_gateway/internal/storage"
	"ops_gateway/internal/utils"
)

// stubBackend returns a canned result or error for every invocation
type stubBackend struct {
	name   dispatch.ProviderName
	result *dispatch.GenerationResult
	delay  time.Duration
	err    error
}

func (b *stubBackend) Name() dispatch.ProviderName {
	return b.name
}

func (b *stubBackend) Invoke(ctx context.Context, inv dispatch.Invocation) (*dispatch.GenerationResult, error) {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.err != nil {
		return nil, b.err
	}
	result := *b.result
	return &result, nil
}

// capturedRuns collects run records enqueued by handlers
type capturedRuns struct {
	mu   sync.Mutex
	runs []*models.RunRecord
}

func (c *capturedRuns) Enqueue(ctx context.Context, record *models.RunRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, record)
	return nil
}

func (c *capturedRuns) all() []*models.RunRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.RunRecord(nil), c.runs...)
}

// fakeRunLister serves a fixed run history
type fakeRunLister struct {
	runs []*models.RunRecord
}

func (f *fakeRunLister) List(ctx context.Context, filter storage.RunFilter) ([]*models.RunRecord, error) {
	return f.runs, nil
}

func (f *fakeRunLister) Count(ctx context.Context, filter storage.RunFilter) (int, error) {
	return len(f.runs), nil
}

func newTestBackend() *stubBackend {
	return &stubBackend{
		name: dispatch.ProviderAnthropic,
		result: &dispatch.GenerationResult{
			Content: "generated text",
			Usage:   map[string]int{"input_tokens": 12, "output_tokens": 34},
		},
	}
}

// captureSink collects audit records instead of exporting them
type captureSink struct {
	mu      sync.Mutex
	records []*logging.LogRecord
}

func (s *captureSink) Enqueue(rec *logging.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *captureSink) Shutdown(ctx context.Context) error {
	return nil
}

func (s *captureSink) all() []*logging.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*logging.LogRecord(nil), s.records...)
}

type testEnv struct {
	deps        *Dependencies
	runs        *capturedRuns
	notifyQueue queue.Queue[*models.Notification]
}

func newTestEnv(backend dispatch.Backend) *testEnv {
	store := auth.NewInMemoryAPIKeyStore()
	store.Add("review-only-key", &auth.APIKeyRecord{
		ID:             uuid.NewString(),
		Name:           "Review Only",
		AllowedActions: []string{models.ActionCodeReview},
	})

	notifyQueue := queue.NewMemoryQueue[*models.Notification](queue.DefaultConfig("notifications"))
	runs := &capturedRuns{}

	deps := &Dependencies{
		APIKeys:     store,
		Dispatcher:  dispatch.NewDispatcher("claude-3-sonnet", backend, nil),
		RateLimit:   ratelimit.NewNoopLimiter(),
		Sim:         ops.NewSimulator(42),
		Audit:       logging.NewNoopSink(),
		Notifier:    notify.NewNotifier(notifyQueue),
		Runs:        &fakeRunLister{},
		RunRecorder: runs,
	}

	return &testEnv{deps: deps, runs: runs, notifyQueue: notifyQueue}
}

// serve runs the request through the same middleware chain the router uses
func (env *testEnv) serve(handler http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	requestID := middleware.RequestIDMiddleware()
	apiKey := middleware.APIKeyMiddleware(env.deps.APIKeys)
	rateLimit := middleware.RateLimitMiddleware(env.deps.RateLimit)

	w := httptest.NewRecorder()
	requestID(apiKey(rateLimit(handler))).ServeHTTP(w, r)
	return w
}

func postJSON(t *testing.T, path, apiKey string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		r.Header.Set("X-API-Key", apiKey)
	}
	return r
}

func TestHandleGenerate_Success(t *testing.T) {
	env := newTestEnv(newTestBackend())

	r := postJSON(t, "/v1/generate", "demo-key", map[string]any{
		"prompt": "write a haiku about pipelines",
	})
	w := env.serve(env.deps.handleGenerate, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result dispatch.GenerationResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Content != "generated text" {
		t.Errorf("expected stub content, got %q", result.Content)
	}
	if result.Provider != dispatch.ProviderAnthropic {
		t.Errorf("expected provider anthropic, got %q", result.Provider)
	}
	if result.Model != "claude-3-sonnet" {
		t.Errorf("expected default model echoed, got %q", result.Model)
	}

	runs := env.runs.all()
	if len(runs) != 1 {
		t.Fatalf("expected 1 run record, got %d", len(runs))
	}
	if runs[0].Action != models.ActionGenerate {
		t.Errorf("expected action %q, got %q", models.ActionGenerate, runs[0].Action)
	}
	if runs[0].Status != models.RunStatusOK {
		t.Errorf("expected status ok, got %q", runs[0].Status)
	}
	if runs[0].InputTokens != 12 || runs[0].OutputTokens != 34 {
		t.Errorf("expected stub usage on run record, got %d/%d", runs[0].InputTokens, runs[0].OutputTokens)
	}
}

func TestHandleGenerate_OpenAIUsageKeysRecorded(t *testing.T) {
	backend := &stubBackend{
		name: dispatch.ProviderOpenAI,
		result: &dispatch.GenerationResult{
			Content: "generated text",
			Usage:   map[string]int{"prompt_tokens": 12, "completion_tokens": 34, "total_tokens": 46},
		},
	}
	env := newTestEnv(backend)
	env.deps.Dispatcher = dispatch.NewDispatcher("gpt-4o", nil, backend)

	r := postJSON(t, "/v1/generate", "demo-key", map[string]any{
		"prompt":   "summarize the incident",
		"provider": "openai",
	})
	w := env.serve(env.deps.handleGenerate, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// OpenAI reports usage as prompt/completion tokens; the run record
	// must still carry the counts
	runs := env.runs.all()
	if len(runs) != 1 {
		t.Fatalf("expected 1 run record, got %d", len(runs))
	}
	if runs[0].InputTokens != 12 || runs[0].OutputTokens != 34 {
		t.Errorf("expected token counts 12/34 on run record, got %d/%d", runs[0].InputTokens, runs[0].OutputTokens)
	}
}

func TestHandleGenerate_SplitsProviderAndGatewayTime(t *testing.T) {
	backend := newTestBackend()
	backend.delay = 20 * time.Millisecond
	env := newTestEnv(backend)

	sink := &captureSink{}
	env.deps.Audit = sink

	r := postJSON(t, "/v1/generate", "demo-key", map[string]any{
		"prompt": "write a haiku about pipelines",
	})
	w := env.serve(env.deps.handleGenerate, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	recs := sink.all()
	if len(recs) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(recs))
	}
	if recs[0].ProviderMs < 20 {
		t.Errorf("expected provider time to cover the upstream call, got %dms", recs[0].ProviderMs)
	}
	if recs[0].GatewayMs < recs[0].ProviderMs {
		t.Errorf("gateway time %dms should include provider time %dms", recs[0].GatewayMs, recs[0].ProviderMs)
	}
}

func TestHandleGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		backend    dispatch.Backend
		payload    map[string]any
		wantStatus int
	}{
		{
			name:       "empty prompt is a bad request",
			backend:    newTestBackend(),
			payload:    map[string]any{"prompt": "   "},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "explicit hint to disabled provider",
			backend:    newTestBackend(),
			payload:    map[string]any{"prompt": "hello", "provider": "openai"},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "upstream failure",
			backend:    &stubBackend{name: dispatch.ProviderAnthropic, err: context.DeadlineExceeded},
			payload:    map[string]any{"prompt": "hello"},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(tt.backend)

			r := postJSON(t, "/v1/generate", "demo-key", tt.payload)
			w := env.serve(env.deps.handleGenerate, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleGenerate_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(newTestBackend())

	r := httptest.NewRequest(http.MethodGet, "/v1/generate", nil)
	r.Header.Set("X-API-Key", "demo-key")
	w := env.serve(env.deps.handleGenerate, r)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestActionPermissions(t *testing.T) {
	env := newTestEnv(newTestBackend())

	// The review-only key may review code
	r := postJSON(t, "/v1/code/review", "review-only-key", map[string]any{
		"repository": "payments",
		"diff":       "+ fixed the rounding bug",
	})
	w := env.serve(env.deps.handleCodeReview, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for permitted action, got %d: %s", w.Code, w.Body.String())
	}

	// But it may not deploy
	r = postJSON(t, "/v1/deploy", "review-only-key", map[string]any{
		"service":     "payments",
		"environment": "staging",
	})
	w = env.serve(env.deps.handleDeploy, r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for forbidden action, got %d", w.Code)
	}
}

func TestHandleCodeReview_Validation(t *testing.T) {
	env := newTestEnv(newTestBackend())

	r := postJSON(t, "/v1/code/review", "demo-key", map[string]any{
		"repository": "payments",
	})
	w := env.serve(env.deps.handleCodeReview, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing diff, got %d", w.Code)
	}
}

func TestHandleDeploy_ResponseShape(t *testing.T) {
	env := newTestEnv(newTestBackend())

	r := postJSON(t, "/v1/deploy", "demo-key", map[string]any{
		"service":     "payments",
		"environment": "staging",
		"ref":         "v1.4.2",
	})
	w := env.serve(env.deps.handleDeploy, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp deployResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Service != "payments" || resp.Environment != "staging" {
		t.Errorf("request fields not echoed: %+v", resp)
	}
	if resp.Build.BuildID == "" {
		t.Error("expected a simulated build ID")
	}
	if !strings.HasPrefix(resp.Build.ImageTag, "staging-") {
		t.Errorf("expected image tag derived from environment, got %q", resp.Build.ImageTag)
	}
	if resp.Summary != "generated text" {
		t.Errorf("expected model summary, got %q", resp.Summary)
	}

	// Every deploy queues an operator notification
	length, err := env.notifyQueue.Length(context.Background())
	if err != nil {
		t.Fatalf("failed to read queue length: %v", err)
	}
	if length != 1 {
		t.Errorf("expected 1 queued notification, got %d", length)
	}
}

func TestHandleMonitorAnalyze_ResponseShape(t *testing.T) {
	env := newTestEnv(newTestBackend())

	r := postJSON(t, "/v1/monitor/analyze", "demo-key", map[string]any{
		"cluster": "prod-east",
	})
	w := env.serve(env.deps.handleMonitorAnalyze, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp monitorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Cluster != "prod-east" {
		t.Errorf("expected cluster echoed, got %q", resp.Cluster)
	}
	if resp.Health.HealthyPods <= 0 {
		t.Errorf("expected simulated pod counts, got %+v", resp.Health)
	}
	if resp.Cost.MonthlyUSD <= 0 {
		t.Errorf("expected simulated cost figures, got %+v", resp.Cost)
	}
	if resp.Assessment != "generated text" {
		t.Errorf("expected model assessment, got %q", resp.Assessment)
	}
}

func TestHandleSecurityScan_ResponseShape(t *testing.T) {
	env := newTestEnv(newTestBackend())

	r := postJSON(t, "/v1/security/scan", "demo-key", map[string]any{
		"target": "payments",
	})
	w := env.serve(env.deps.handleSecurityScan, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp scanResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Compliance.Score < 60 || resp.Compliance.Score > 100 {
		t.Errorf("compliance score out of range: %f", resp.Compliance.Score)
	}
	if resp.Compliance.Passed != (resp.Compliance.Score >= 75) {
		t.Errorf("passed flag inconsistent with score: %+v", resp.Compliance)
	}
	if resp.Findings != "generated text" {
		t.Errorf("expected model findings, got %q", resp.Findings)
	}
}

// mockAdminStore backs admin login tests without a database
type mockAdminStore struct {
	users map[string]*models.AdminUser
}

func (m *mockAdminStore) GetAdminUserByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	user, ok := m.users[email]
	if !ok {
		return nil, storage.ErrAdminUserNotFound
	}
	return user, nil
}

func (m *mockAdminStore) UpdateAdminUserLastLogin(ctx context.Context, id uuid.UUID) error {
	return nil
}

func newLoginTestHandler(t *testing.T) (*AdminAuthHandler, *config.Config) {
	t.Helper()
	hash, err := utils.HashPasswordArgon2("correct horse battery staple")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	cfg := &config.Config{JWTSecret: []byte("test-secret-key-for-testing")}
	store := &mockAdminStore{users: map[string]*models.AdminUser{
		"ops@example.com": {
			ID:           uuid.New(),
			Email:        "ops@example.com",
			PasswordHash: hash,
			Roles:        []string{"admin"},
			Enabled:      true,
		},
	}}
	return NewAdminAuthHandler(store, cfg), cfg
}

func TestAdminLogin(t *testing.T) {
	handler, cfg := newLoginTestHandler(t)

	t.Run("valid credentials return a token", func(t *testing.T) {
		r := postJSON(t, "/admin/auth/login", "", map[string]any{
			"email":    "ops@example.com",
			"password": "correct horse battery staple",
		})
		w := httptest.NewRecorder()
		handler.Login(w, r)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp loginResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Token == "" {
			t.Fatal("expected a token")
		}
		if resp.ExpiresAt <= time.Now().Unix() {
			t.Errorf("expected a future expiry, got %d", resp.ExpiresAt)
		}

		claims, err := auth.ValidateAdminJWT(resp.Token, cfg)
		if err != nil {
			t.Fatalf("issued token failed validation: %v", err)
		}
		if claims.Email != "ops@example.com" {
			t.Errorf("expected email claim, got %q", claims.Email)
		}
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		r := postJSON(t, "/admin/auth/login", "", map[string]any{
			"email":    "ops@example.com",
			"password": "nope",
		})
		w := httptest.NewRecorder()
		handler.Login(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("missing fields are a bad request", func(t *testing.T) {
		r := postJSON(t, "/admin/auth/login", "", map[string]any{
			"email": "ops@example.com",
		})
		w := httptest.NewRecorder()
		handler.Login(w, r)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestHandleAdminRuns(t *testing.T) {
	env := newTestEnv(newTestBackend())
	env.deps.Runs = &fakeRunLister{runs: []*models.RunRecord{
		{
			ID:        uuid.New(),
			RequestID: uuid.New(),
			Action:    models.ActionDeploy,
			Provider:  "anthropic",
			Status:    models.RunStatusOK,
			CreatedAt: time.Now(),
		},
	}}

	t.Run("lists runs", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/admin/runs?action=deploy&limit=10", nil)
		w := httptest.NewRecorder()
		env.deps.handleAdminRuns(w, r)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp runListResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Total != 1 || len(resp.Runs) != 1 {
			t.Fatalf("expected 1 run, got total=%d len=%d", resp.Total, len(resp.Runs))
		}
		if resp.Runs[0].Action != models.ActionDeploy {
			t.Errorf("expected deploy run, got %q", resp.Runs[0].Action)
		}
	})

	t.Run("rejects bad filter parameters", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/admin/runs?api_key_id=not-a-uuid", nil)
		w := httptest.NewRecorder()
		env.deps.handleAdminRuns(w, r)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestHandleAdminStats(t *testing.T) {
	env := newTestEnv(newTestBackend())

	runCfg := queue.DefaultConfig("runs-stats")
	runQueue := queue.NewMemoryQueue[*models.RunRecord](runCfg)
	runDLQ := queue.NewMemoryDeadLetterQueue[*models.RunRecord]()
	env.deps.RunWorker = storage.NewRunQueueWorker(runQueue, runDLQ, nil, runCfg)

	notifyCfg := queue.DefaultConfig("notifications-stats")
	nq := queue.NewMemoryQueue[*models.Notification](notifyCfg)
	ndlq := queue.NewMemoryDeadLetterQueue[*models.Notification]()
	env.deps.NotifyWorker = notify.NewNotifyWorker(nq, ndlq, "http://hooks.internal/ops", time.Second, notifyCfg)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := runQueue.Enqueue(ctx, &models.RunRecord{RequestID: uuid.New()}); err != nil {
			t.Fatalf("failed to enqueue run record: %v", err)
		}
	}
	if err := runDLQ.Add(ctx, &models.RunRecord{RequestID: uuid.New()}, errors.New("insert failed")); err != nil {
		t.Fatalf("failed to park run record: %v", err)
	}
	if err := nq.Enqueue(ctx, &models.Notification{ID: uuid.New()}); err != nil {
		t.Fatalf("failed to enqueue notification: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	w := httptest.NewRecorder()
	env.deps.handleAdminStats(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp queueStatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Runs == nil || resp.Notifications == nil {
		t.Fatalf("expected stats for both pipelines: %+v", resp)
	}
	if resp.Runs.QueueLength != 2 || resp.Runs.DeadLetterCount != 1 {
		t.Errorf("run pipeline stats = %+v, want length 2 and 1 dead letter", resp.Runs)
	}
	if resp.Notifications.QueueLength != 1 || resp.Notifications.DeadLetterCount != 0 {
		t.Errorf("notification pipeline stats = %+v, want length 1 and no dead letters", resp.Notifications)
	}
}

func TestMissingAPIKeyRejected(t *testing.T) {
	env := newTestEnv(newTestBackend())

	r := postJSON(t, "/v1/generate", "", map[string]any{"prompt": "hello"})
	w := env.serve(env.deps.handleGenerate, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
