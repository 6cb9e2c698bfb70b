package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is a channel-backed queue for single-process deployments.
// Items never leave the process, so nothing survives a restart.
type MemoryQueue[T any] struct {
	items  chan T
	mu     sync.RWMutex
	closed bool
	config *Config
}

// NewMemoryQueue creates an in-memory queue sized to hold ten batches
func NewMemoryQueue[T any](config *Config) *MemoryQueue[T] {
	return &MemoryQueue[T]{
		items:  make(chan T, config.BatchSize*10),
		config: config,
	}
}

func (q *MemoryQueue[T]) Enqueue(ctx context.Context, item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue[T]) Dequeue(ctx context.Context, maxItems int) ([]T, error) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return nil, ErrQueueClosed
	}
	q.mu.RUnlock()

	items := make([]T, 0, maxItems)

	// Block for the first item, then drain whatever else is ready
	select {
	case item, ok := <-q.items:
		if !ok {
			return nil, ErrQueueClosed
		}
		items = append(items, item)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(items) < maxItems {
		select {
		case item, ok := <-q.items:
			if !ok {
				return items, nil
			}
			items = append(items, item)
		default:
			return items, nil
		}
	}

	return items, nil
}

func (q *MemoryQueue[T]) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]T, error) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return nil, ErrQueueClosed
	}
	q.mu.RUnlock()

	items := make([]T, 0, maxItems)
	deadline := time.After(timeout)

	select {
	case item, ok := <-q.items:
		if !ok {
			return nil, ErrQueueClosed
		}
		items = append(items, item)
	case <-deadline:
		return items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(items) < maxItems {
		select {
		case item, ok := <-q.items:
			if !ok {
				return items, nil
			}
			items = append(items, item)
		case <-deadline:
			return items, nil
		default:
			return items, nil
		}
	}

	return items, nil
}

func (q *MemoryQueue[T]) Length(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}
	return len(q.items), nil
}

func (q *MemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.items)
	return nil
}

// MemoryDeadLetterQueue parks failed items in process memory.
type MemoryDeadLetterQueue[T any] struct {
	mu    sync.RWMutex
	items []DeadLetterItem[T]
}

func NewMemoryDeadLetterQueue[T any]() *MemoryDeadLetterQueue[T] {
	return &MemoryDeadLetterQueue[T]{}
}

func (d *MemoryDeadLetterQueue[T]) Add(ctx context.Context, item T, cause error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.items = append(d.items, DeadLetterItem[T]{
		ID:       uuid.NewString(),
		Item:     item,
		Error:    cause.Error(),
		FailedAt: time.Now(),
	})
	return nil
}

func (d *MemoryDeadLetterQueue[T]) List(ctx context.Context, maxItems int) ([]DeadLetterItem[T], error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := len(d.items)
	if maxItems > 0 && maxItems < n {
		n = maxItems
	}
	out := make([]DeadLetterItem[T], n)
	copy(out, d.items[:n])
	return out, nil
}

func (d *MemoryDeadLetterQueue[T]) Remove(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, item := range d.items {
		if item.ID == id {
			d.items = append(d.items[:i], d.items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

func (d *MemoryDeadLetterQueue[T]) Close() error {
	return nil
}
