// Package queue holds accepted sync jobs until a worker picks them up.
package queue

import (
	"context"
	"sync"

	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Queue provides non-blocking enqueue and blocking dequeue.
type Queue interface {
	// Enqueue adds a job. Returns ErrFull when at capacity and ErrClosed
	// after Close.
	Enqueue(ctx context.Context, job model.SyncJob) error

	// Next blocks until a job is available. ok is false once the queue is
	// closed and drained, or ctx is done.
	Next(ctx context.Context) (job model.SyncJob, ok bool)

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Already queued jobs can still be drained.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan model.SyncJob
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan model.SyncJob, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// Enqueue adds a job to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, job model.SyncJob) error { //nolint:gocritic // hugeParam: jobs travel by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.jobs <- job:
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return nil
	default:
		metrics.RecordQueueRejected()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Next blocks until a job is available, the queue is drained after Close, or
// ctx is done.
func (q *InMemoryQueue) Next(ctx context.Context) (model.SyncJob, bool) {
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return model.SyncJob{}, false
		}
		metrics.RecordQueueDequeue()
		q.updateGauges()
		return job, true
	case <-ctx.Done():
		return model.SyncJob{}, false
	}
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.jobs)
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops accepting new jobs.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) updateGauges() {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
