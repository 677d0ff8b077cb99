// Package dispatcher fans the site tasks of one search out to a fixed pool
// of workers.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/product-search-crawler/internal/product"
	"github.com/JakeFAU/product-search-crawler/internal/worker"
)

// Runner processes tasks from a queue until it is drained.
type Runner interface {
	Run(ctx context.Context, search *worker.Search, queue product.Queue)
}

// Dispatcher runs a pool of identical workers over one queue.
type Dispatcher struct {
	worker      Runner
	concurrency int
}

// New creates a Dispatcher running concurrency copies of w.
func New(w Runner, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Dispatcher{worker: w, concurrency: concurrency}
}

// Concurrency reports the pool size.
func (d *Dispatcher) Concurrency() int {
	return d.concurrency
}

// Run starts the pool and blocks until every worker has returned, which
// happens once the queue is closed and drained or ctx ends.
func (d *Dispatcher) Run(ctx context.Context, search *worker.Search, queue product.Queue) {
	var wg sync.WaitGroup
	for range d.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker.Run(ctx, search, queue)
		}()
	}
	wg.Wait()
}

// Submit enqueues every task and closes the queue so workers exit once it
// drains.
func Submit(ctx context.Context, queue product.Queue, tasks []product.SiteTask) error {
	defer queue.Close()
	for _, task := range tasks {
		if err := queue.Enqueue(ctx, task); err != nil {
			return fmt.Errorf("queue enqueue: %w", err)
		}
	}
	return nil
}
