// Package notify delivers run notifications to an operator webhook.
// Every notification is an explicit queue item with retry and
// dead-letter handling, so no delivery happens as an unobserved
// background call.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ops_gateway/internal/models"
	"ops_gateway/internal/queue"
)

// Notifier enqueues notifications for async webhook delivery
type Notifier struct {
	queue queue.Queue[*models.Notification]
}

// NewNotifier creates a notifier backed by the given queue
func NewNotifier(q queue.Queue[*models.Notification]) *Notifier {
	return &Notifier{queue: q}
}

// Send queues a notification for delivery. It returns once the item is
// accepted by the queue; delivery itself happens in the NotifyWorker.
func (n *Notifier) Send(ctx context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	if notification.Severity == "" {
		notification.Severity = models.SeverityInfo
	}
	return n.queue.Enqueue(ctx, notification)
}
