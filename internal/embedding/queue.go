package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/smartreceipts/internal/metrics"
	"github.com/MrJamesThe3rd/smartreceipts/internal/receipt"
)

const (
	defaultQueueSize  = 256
	defaultJobTimeout = 30 * time.Second
	errBufferSize     = 16
)

// RowIndexer is the work a Queue performs per job.
type RowIndexer interface {
	Index(ctx context.Context, r *receipt.Receipt) error
}

// Queue runs embedding jobs in the background. Jobs never run on the caller's
// goroutine or context; their failures go to a dedicated error channel that is
// drained by a logger and otherwise dropped.
type Queue struct {
	indexer RowIndexer
	timeout time.Duration
	metrics *metrics.Metrics
	onError func(error)

	jobs chan *receipt.Receipt
	errs chan error

	mu     sync.RWMutex
	closed bool

	workers   sync.WaitGroup
	drain     sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

type QueueOption func(*Queue)

func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.jobs = make(chan *receipt.Receipt, n)
		}
	}
}

func WithJobTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) QueueOption {
	return func(q *Queue) { q.metrics = m }
}

// WithErrorHandler replaces the default logging of failed jobs.
func WithErrorHandler(fn func(error)) QueueOption {
	return func(q *Queue) {
		if fn != nil {
			q.onError = fn
		}
	}
}

func NewQueue(indexer RowIndexer, opts ...QueueOption) *Queue {
	q := &Queue{
		indexer: indexer,
		timeout: defaultJobTimeout,
		jobs:    make(chan *receipt.Receipt, defaultQueueSize),
		errs:    make(chan error, errBufferSize),
		onError: func(err error) {
			slog.Warn("embedding job failed", "error", err)
		},
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Start launches the worker and the error drain. Calling it twice is a no-op.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.drain.Add(1)

		go func() {
			defer q.drain.Done()

			for err := range q.errs {
				q.onError(err)
			}
		}()

		q.workers.Add(1)

		go func() {
			defer q.workers.Done()

			for r := range q.jobs {
				q.process(r)
			}
		}()
	})
}

// Enqueue schedules a row for indexing. It never blocks: when the queue is
// full or closed the job is dropped and false is returned.
func (q *Queue) Enqueue(r *receipt.Receipt) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.metrics.EmbeddingDropped()
		return false
	}

	select {
	case q.jobs <- r:
		return true
	default:
		q.metrics.EmbeddingDropped()
		slog.Warn("embedding queue full, dropping job", "receipt_id", r.ID)

		return false
	}
}

// Close stops accepting jobs, finishes the queued ones and waits for the
// worker and the error drain to exit.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()

		q.workers.Wait()
		close(q.errs)
		q.drain.Wait()
	})
}

func (q *Queue) process(r *receipt.Receipt) {
	if Content(r) == "" {
		q.metrics.EmbeddingJob("skipped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.indexer.Index(ctx, r); err != nil {
		q.metrics.EmbeddingJob("failed")
		q.errs <- fmt.Errorf("index receipt %s: %w", r.ID, err)

		return
	}

	q.metrics.EmbeddingJob("indexed")
}
