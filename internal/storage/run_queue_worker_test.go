package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"ops_gateway/internal/models"
	"ops_gateway/internal/queue"
)

// mockRunRepository simulates database operations for testing
type mockRunRepository struct {
	mu         sync.Mutex
	records    []*models.RunRecord
	failBatch  bool
	failCount  int
	maxFails   int
	batchCalls int
}

func newMockRunRepository() *mockRunRepository {
	return &mockRunRepository{
		records: make([]*models.RunRecord, 0),
	}
}

func (m *mockRunRepository) Create(ctx context.Context, record *models.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCount < m.maxFails {
		m.failCount++
		return fmt.Errorf("simulated database error")
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now()

	m.records = append(m.records, record)
	return nil
}

func (m *mockRunRepository) CreateBatch(ctx context.Context, records []*models.RunRecord) error {
	m.mu.Lock()
	m.batchCalls++
	failBatch := m.failBatch
	m.mu.Unlock()

	if failBatch {
		return fmt.Errorf("simulated batch insert error")
	}

	for _, record := range records {
		if err := m.Create(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockRunRepository) getRecordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func testWorkerConfig() *queue.Config {
	config := queue.DefaultConfig("runs-test")
	config.BatchSize = 10
	config.BatchTimeout = 50 * time.Millisecond
	config.MaxRetries = 2
	config.RetryBackoff = 10 * time.Millisecond
	return config
}

func sampleRunRecord(action string) *models.RunRecord {
	return &models.RunRecord{
		RequestID:    uuid.New(),
		APIKeyID:     uuid.New(),
		Action:       action,
		Provider:     "anthropic",
		Model:        "claude-3-sonnet-20240229",
		InputTokens:  120,
		OutputTokens: 450,
		DurationMS:   830,
		Status:       models.RunStatusOK,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestRunQueueWorker_BatchInsert(t *testing.T) {
	config := testWorkerConfig()
	q := queue.NewMemoryQueue[*models.RunRecord](config)
	dlq := queue.NewMemoryDeadLetterQueue[*models.RunRecord]()
	repo := newMockRunRepository()

	worker := NewRunQueueWorker(q, dlq, repo, config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)
	defer worker.Stop()

	for i := 0; i < 5; i++ {
		if err := worker.Enqueue(ctx, sampleRunRecord(models.ActionDeploy)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	waitFor(t, 2*time.Second, func() bool {
		return repo.getRecordCount() == 5
	})
}

func TestRunQueueWorker_FallbackToIndividualInserts(t *testing.T) {
	config := testWorkerConfig()
	q := queue.NewMemoryQueue[*models.RunRecord](config)
	dlq := queue.NewMemoryDeadLetterQueue[*models.RunRecord]()
	repo := newMockRunRepository()
	repo.failBatch = true

	worker := NewRunQueueWorker(q, dlq, repo, config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)
	defer worker.Stop()

	for i := 0; i < 3; i++ {
		if err := worker.Enqueue(ctx, sampleRunRecord(models.ActionGenerate)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	// Batch path fails, individual inserts still land every record
	waitFor(t, 2*time.Second, func() bool {
		return repo.getRecordCount() == 3
	})
}

func TestRunQueueWorker_DeadLetterOnExhaustedRetries(t *testing.T) {
	config := testWorkerConfig()
	q := queue.NewMemoryQueue[*models.RunRecord](config)
	dlq := queue.NewMemoryDeadLetterQueue[*models.RunRecord]()
	repo := newMockRunRepository()
	repo.failBatch = true
	repo.maxFails = 100 // Individual inserts keep failing too

	worker := NewRunQueueWorker(q, dlq, repo, config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)
	defer worker.Stop()

	record := sampleRunRecord(models.ActionSecurityScan)
	if err := worker.Enqueue(ctx, record); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		items, err := worker.DeadLetterItems(context.Background(), 10)
		return err == nil && len(items) == 1
	})

	items, err := worker.DeadLetterItems(context.Background(), 10)
	if err != nil {
		t.Fatalf("DeadLetterItems failed: %v", err)
	}
	if items[0].Item.RequestID != record.RequestID {
		t.Errorf("Parked record request_id mismatch: got %s, want %s", items[0].Item.RequestID, record.RequestID)
	}

	if repo.getRecordCount() != 0 {
		t.Errorf("Expected no records inserted, got %d", repo.getRecordCount())
	}
}

func TestRunQueueWorker_StopDrainsCleanly(t *testing.T) {
	config := testWorkerConfig()
	q := queue.NewMemoryQueue[*models.RunRecord](config)
	repo := newMockRunRepository()

	worker := NewRunQueueWorker(q, nil, repo, config)

	ctx := context.Background()
	worker.Start(ctx)

	done := make(chan struct{})
	go func() {
		worker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}
}
