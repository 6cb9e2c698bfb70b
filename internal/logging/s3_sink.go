package logging

import (
	"context"
	"errors"
	"sync"
	"time"

	"ops_gateway/internal/utils"
)

// batchWriter abstracts the S3 upload so the sink can be tested without AWS
type batchWriter interface {
	WriteBatch(ctx context.Context, records []*LogRecord) (string, error)
}

// S3SinkConfig configures the buffered S3 audit sink
type S3SinkConfig struct {
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	PodName       string
}

// S3Sink buffers audit records in memory and flushes them to S3 in
// batches, either when FlushSize records accumulate or FlushInterval
// elapses, whichever comes first.
type S3Sink struct {
	config  S3SinkConfig
	writer  batchWriter
	records chan *LogRecord
	logger  *utils.Logger

	mu       sync.Mutex
	closed   bool
	stopped  chan struct{}
	shutdown chan struct{}
}

// NewS3Sink creates a buffered sink that uploads to S3
func NewS3Sink(ctx context.Context, config S3SinkConfig) (*S3Sink, error) {
	writer, err := NewS3Writer(ctx, config.S3Bucket, config.S3Region, config.S3Prefix, config.PodName)
	if err != nil {
		return nil, err
	}
	return newS3SinkWithWriter(config, writer), nil
}

func newS3SinkWithWriter(config S3SinkConfig, writer batchWriter) *S3Sink {
	if config.BufferSize <= 0 {
		config.BufferSize = 10000
	}
	if config.FlushSize <= 0 {
		config.FlushSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Minute
	}

	s := &S3Sink{
		config:   config,
		writer:   writer,
		records:  make(chan *LogRecord, config.BufferSize),
		logger:   utils.NewLogger("audit-sink"),
		stopped:  make(chan struct{}),
		shutdown: make(chan struct{}),
	}

	go s.flushLoop()
	return s
}

// Enqueue buffers a record for export. Records are dropped rather than
// blocking the request path when the buffer is full.
func (s *S3Sink) Enqueue(rec *LogRecord) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("audit sink is shut down")
	}
	s.mu.Unlock()

	select {
	case s.records <- rec:
		return nil
	default:
		s.logger.Warn("Audit buffer full, dropping record", "request_id", rec.RequestID)
		return errors.New("audit buffer full")
	}
}

// Shutdown stops the flush loop and drains remaining records to S3
func (s *S3Sink) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)

	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *S3Sink) flushLoop() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*LogRecord, 0, s.config.FlushSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := s.writer.WriteBatch(ctx, batch); err != nil {
			s.logger.Error("Failed to flush audit batch", "error", err, "count", len(batch))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.records:
			batch = append(batch, rec)
			if len(batch) >= s.config.FlushSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.shutdown:
			// Drain whatever is still buffered, then do a final flush
			for {
				select {
				case rec := <-s.records:
					batch = append(batch, rec)
					if len(batch) >= s.config.FlushSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
