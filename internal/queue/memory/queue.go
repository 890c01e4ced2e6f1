// Package memory provides the bounded in-process job queue used between
// discovery and the worker pool.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan harvest.Job
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan harvest.Job, capacity),
	}
}

// Enqueue pushes a job into the queue or returns if the context ends.
// Enqueueing on a closed queue returns harvest.ErrQueueClosed.
func (q *Queue) Enqueue(ctx context.Context, job harvest.Job) error {
	q.closeMu.Lock()
	closed := q.closed
	q.closeMu.Unlock()
	if closed {
		return harvest.ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- job:
		return nil
	}
}

// Dequeue pops the next job, respecting context cancellation. Buffered jobs
// are still handed out after Close; once drained, harvest.ErrQueueClosed is
// returned.
func (q *Queue) Dequeue(ctx context.Context) (harvest.Job, error) {
	if err := ctx.Err(); err != nil {
		return harvest.Job{}, fmt.Errorf("dequeue canceled: %w", err)
	}
	select {
	case <-ctx.Done():
		return harvest.Job{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job, ok := <-q.ch:
		if !ok {
			return harvest.Job{}, harvest.ErrQueueClosed
		}
		return job, nil
	}
}

// Close marks the end of discovery. Only the producer may call it, after
// its final Enqueue has returned.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
