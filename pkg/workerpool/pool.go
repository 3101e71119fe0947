// Package workerpool runs independent facet loads with bounded parallelism.
package workerpool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent is used when Config.MaxConcurrent is not positive.
const DefaultMaxConcurrent = 4

// Config configures the pool.
type Config struct {
	MaxConcurrent int
}

// Pool limits how many work items run at once. A single Pool may be shared by
// concurrent Process calls; the limit applies across all of them.
type Pool struct {
	sem           *semaphore.Weighted
	maxConcurrent int
	logger        *zap.Logger
}

// New creates a pool.
func New(cfg Config, logger *zap.Logger) *Pool {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Pool{
		sem:           semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		maxConcurrent: cfg.MaxConcurrent,
		logger:        logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the configured parallelism.
func (p *Pool) MaxConcurrent() int { return p.maxConcurrent }

// Item is one unit of work.
type Item[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// Result is the outcome of one Item.
type Result[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process runs every item and returns results in submission order. A failing
// or panicking item does not stop the others. Items still waiting for a slot
// when ctx is cancelled report ctx.Err().
func Process[T any](ctx context.Context, pool *Pool, items []Item[T]) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		results[i].ID = item.ID

		if err := pool.sem.Acquire(ctx, 1); err != nil {
			results[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, item Item[T]) {
			defer wg.Done()
			defer pool.sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					pool.logger.Error("Work item panicked", zap.String("id", item.ID), zap.Any("panic", r))
					results[i].Err = fmt.Errorf("work item %s panicked: %v", item.ID, r)
				}
			}()
			results[i].Result, results[i].Err = item.Execute(ctx)
		}(i, item)
	}
	wg.Wait()
	return results
}
