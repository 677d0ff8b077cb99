// Package memory provides the in-process queue of site tasks for one search.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/product-search-crawler/internal/product"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan product.SiteTask
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan product.SiteTask, capacity),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task product.SiteTask) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return product.ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation. Once the queue
// is closed and drained it returns product.ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (product.SiteTask, error) {
	select {
	case <-ctx.Done():
		return product.SiteTask{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return product.SiteTask{}, product.ErrQueueClosed
		}
		return task, nil
	}
}

// Close stops further enqueues. Tasks already queued can still be dequeued.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	return len(q.ch)
}
