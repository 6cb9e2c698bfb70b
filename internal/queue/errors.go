package queue

import "errors"

var (
	// ErrQueueClosed is returned by operations on a closed queue
	ErrQueueClosed = errors.New("queue closed")

	// ErrItemNotFound is returned when a dead letter item ID is unknown
	ErrItemNotFound = errors.New("dead letter item not found")

	// ErrRetriesExhausted wraps the final error once an item's retry
	// budget runs out
	ErrRetriesExhausted = errors.New("retry budget exhausted")
)
