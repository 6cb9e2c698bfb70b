package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ops_gateway/internal/models"
	"ops_gateway/internal/queue"
	"ops_gateway/internal/utils"
)

// NotifyWorker drains queued notifications and delivers them to the
// configured webhook
type NotifyWorker struct {
	queue       queue.Queue[*models.Notification]
	dlq         queue.DeadLetterQueue[*models.Notification]
	webhookURL  string
	client      *http.Client
	config      *queue.Config
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewNotifyWorker creates a new notification delivery worker
func NewNotifyWorker(q queue.Queue[*models.Notification], dlq queue.DeadLetterQueue[*models.Notification], webhookURL string, timeout time.Duration, config *queue.Config) *NotifyWorker {
	if config == nil {
		config = queue.DefaultConfig("notifications")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &NotifyWorker{
		queue:      q,
		dlq:        dlq,
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: timeout,
		},
		config:      config,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *NotifyWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *NotifyWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// run is the main worker loop
func (w *NotifyWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	logger := utils.NewLogger("notify-worker")

	for {
		select {
		case <-w.stopChan:
			logger.Info("Notify worker stopping")
			return
		case <-ctx.Done():
			logger.Info("Notify worker context cancelled")
			return
		default:
			w.processBatch(ctx, logger)
		}
	}
}

// processBatch delivers a batch of notifications
func (w *NotifyWorker) processBatch(ctx context.Context, logger *utils.Logger) {
	notifications, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		logger.Error("Failed to dequeue notifications", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	for _, notification := range notifications {
		if err := w.deliverWithRetries(ctx, notification, logger); err != nil {
			logger.Error("Failed to deliver notification", "id", notification.ID, "error", err)
		}
	}
}

// deliverWithRetries posts a notification, retrying with exponential
// backoff and parking it in the DLQ when retries run out
func (w *NotifyWorker) deliverWithRetries(ctx context.Context, notification *models.Notification, logger *utils.Logger) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			logger.Debug("Retrying notification", "id", notification.ID, "attempt", attempt, "backoff", backoff)
			time.Sleep(backoff)
		}

		if err := w.deliver(ctx, notification); err != nil {
			lastErr = err
			if !utils.IsRecoverableError(err) {
				break
			}
			continue
		}

		logger.Debug("Notification delivered", "id", notification.ID, "action", notification.Action)
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, notification, lastErr); err != nil {
			logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			logger.Warn("Notification moved to DLQ", "id", notification.ID, "error", lastErr)
		}
	}

	return fmt.Errorf("%w: %s", queue.ErrRetriesExhausted, lastErr.Error())
}

// deliver performs a single webhook POST
func (w *NotifyWorker) deliver(ctx context.Context, notification *models.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// QueueLength returns the current queue depth
func (w *NotifyWorker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetterItems returns parked notifications, up to maxItems
func (w *NotifyWorker) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem[*models.Notification], error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}
