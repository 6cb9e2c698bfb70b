// Package queue provides the async processing backbone of the gateway.
// Two pipelines ride on it: completed automation runs queued for batch
// insertion into Postgres, and notifications queued for webhook
// delivery. Queues are typed per pipeline and come in two backends: an
// in-memory channel queue for standalone deployments and a Redis list
// queue that survives restarts and supports distributed workers. Both
// workers batch their reads, retry with exponential backoff, and park
// permanently failing items in a dead-letter queue.
package queue

import (
	"context"
	"time"
)

// Queue carries one pipeline's items between producers and its worker.
type Queue[T any] interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item T) error

	// Dequeue retrieves up to maxItems, blocking until at least one
	// item is available or the context is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]T, error)

	// DequeueWithTimeout retrieves up to maxItems, returning an empty
	// batch if nothing arrives before the timeout
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]T, error)

	// Length returns the current queue depth
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue
	Close() error
}

// DeadLetterQueue parks items whose processing retries ran out.
type DeadLetterQueue[T any] interface {
	// Add parks a failed item together with its final error
	Add(ctx context.Context, item T, cause error) error

	// List retrieves parked items, up to maxItems (0 = all)
	List(ctx context.Context, maxItems int) ([]DeadLetterItem[T], error)

	// Remove deletes a parked item by ID
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem is a parked item with the error that exhausted it.
type DeadLetterItem[T any] struct {
	ID       string    `json:"id"`
	Item     T         `json:"item"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// Config holds queue and worker tuning shared by both pipelines.
type Config struct {
	// BatchSize is the maximum number of items a worker takes per read
	BatchSize int

	// BatchTimeout is how long a worker waits before processing a
	// partial batch
	BatchTimeout time.Duration

	// MaxRetries is the retry budget per item before it is parked
	MaxRetries int

	// RetryBackoff is the initial backoff duration between retries
	RetryBackoff time.Duration

	// QueueName names the pipeline; Redis keys derive from it
	QueueName string
}

// DefaultConfig returns the tuning both pipelines start from
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		QueueName:    queueName,
	}
}
