// Package concurrency provides the cooperative, bounded-parallelism task
// runtime described in spec §4.8: a single process with separate semaphores
// for Git operations and filesystem writes, and cancellation of outstanding
// tasks on the first fatal error. It wraps github.com/sourcegraph/conc/pool,
// the teacher's own concurrency dependency (used for bounded parallel
// downloads in pkg/cli/logs.go).
package concurrency

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// TaskPool runs fallible tasks with bounded parallelism, canceling
// outstanding tasks as soon as one returns an error (spec §4.8
// "Cancellation: if any task fails, outstanding tasks are cooperatively
// canceled").
type TaskPool struct {
	p *pool.ContextPool
}

// NewTaskPool builds a TaskPool bounded at maxGoroutines concurrent tasks,
// deriving cancellation from ctx.
func NewTaskPool(ctx context.Context, maxGoroutines int) *TaskPool {
	if maxGoroutines < 1 {
		maxGoroutines = 1
	}
	p := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(maxGoroutines)
	return &TaskPool{p: p}
}

// Go schedules fn to run, subject to the pool's goroutine limit. fn
// receives a context that is canceled once any scheduled task fails.
func (t *TaskPool) Go(fn func(ctx context.Context) error) {
	t.p.Go(fn)
}

// Wait blocks until every scheduled task has completed, returning the first
// error encountered (if any).
func (t *TaskPool) Wait() error {
	return t.p.Wait()
}

// Map runs fn over every item with bounded parallelism, canceling
// outstanding work on the first error and returning results in input order.
func Map[T, R any](ctx context.Context, maxGoroutines int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	if maxGoroutines < 1 {
		maxGoroutines = 1
	}
	p := pool.NewWithResults[R]().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(maxGoroutines)
	for _, item := range items {
		item := item
		p.Go(func(ctx context.Context) (R, error) {
			return fn(ctx, item)
		})
	}
	return p.Wait()
}
