package storage

import (
	"context"
	"fmt"
	"time"

	"ops_gateway/internal/models"
	"ops_gateway/internal/queue"
	"ops_gateway/internal/utils"
)

// runInserter is the slice of RunRepository the worker needs
type runInserter interface {
	Create(ctx context.Context, record *models.RunRecord) error
	CreateBatch(ctx context.Context, records []*models.RunRecord) error
}

// RunQueueWorker drains completed automation runs off the queue and
// persists them in batches
type RunQueueWorker struct {
	queue       queue.Queue[*models.RunRecord]
	dlq         queue.DeadLetterQueue[*models.RunRecord]
	repo        runInserter
	config      *queue.Config
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewRunQueueWorker creates a new run queue worker
func NewRunQueueWorker(q queue.Queue[*models.RunRecord], dlq queue.DeadLetterQueue[*models.RunRecord], repo runInserter, config *queue.Config) *RunQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("runs")
	}

	return &RunQueueWorker{
		queue:       q,
		dlq:         dlq,
		repo:        repo,
		config:      config,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *RunQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *RunQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue adds a run record to the queue
func (w *RunQueueWorker) Enqueue(ctx context.Context, record *models.RunRecord) error {
	return w.queue.Enqueue(ctx, record)
}

// run is the main worker loop
func (w *RunQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	logger := utils.NewLogger("run-worker")

	for {
		select {
		case <-w.stopChan:
			logger.Info("Run worker stopping")
			return
		case <-ctx.Done():
			logger.Info("Run worker context cancelled")
			return
		default:
			w.processBatch(ctx, logger)
		}
	}
}

// processBatch processes a batch of run records
func (w *RunQueueWorker) processBatch(ctx context.Context, logger *utils.Logger) {
	records, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		logger.Error("Failed to dequeue run records", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	if len(records) == 0 {
		return
	}

	logger.Debug("Processing run batch", "count", len(records))

	if err := w.repo.CreateBatch(ctx, records); err != nil {
		logger.Error("Failed to insert batch, falling back to individual inserts", "error", err)
		// Fall back to individual inserts with retries
		for _, record := range records {
			if err := w.processItem(ctx, record, logger); err != nil {
				logger.Error("Failed to process run record", "error", err)
			}
		}
	}
}

// processItem processes a single run record with retries
func (w *RunQueueWorker) processItem(ctx context.Context, record *models.RunRecord, logger *utils.Logger) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			logger.Debug("Retrying run record", "attempt", attempt, "backoff", backoff)
			time.Sleep(backoff)
		}

		if err := w.repo.Create(ctx, record); err != nil {
			lastErr = err
			logger.Error("Failed to insert run record", "attempt", attempt, "error", err)
			continue
		}

		logger.Debug("Run record inserted", "request_id", record.RequestID)
		return nil
	}

	// Retry budget spent - park in the dead letter queue
	if w.dlq != nil {
		if err := w.dlq.Add(ctx, record, lastErr); err != nil {
			logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			logger.Warn("Run record moved to DLQ", "request_id", record.RequestID, "error", lastErr)
		}
	}

	return fmt.Errorf("%w: %s", queue.ErrRetriesExhausted, lastErr.Error())
}

// QueueLength returns the current queue depth
func (w *RunQueueWorker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetterItems returns parked run records, up to maxItems
func (w *RunQueueWorker) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem[*models.RunRecord], error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}
