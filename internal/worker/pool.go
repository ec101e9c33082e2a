// Package worker provides a generic bounded worker pool for fan-out/fan-in
// processing. The CLI uses it to read and decode delta and outcome files
// concurrently while still applying them in input order.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Result pairs a processed value with its original index to preserve ordering.
type Result[In, Out any] struct {
	Index int
	Input In
	Value Out
	Err   error
}

// PanicError is the error recorded for a unit whose function panicked.
type PanicError struct {
	Index int
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker: unit %d panicked: %v", e.Index, e.Value)
}

// Pool fans out work items to a fixed number of goroutine workers
// and collects results preserving the original input order.
type Pool[In, Out any] struct {
	concurrency int
}

// NewPool creates a worker pool with the given concurrency.
// If concurrency <= 0, defaults to runtime.NumCPU().
func NewPool[In, Out any](concurrency int) *Pool[In, Out] {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool[In, Out]{concurrency: concurrency}
}

// Concurrency returns the configured number of workers.
func (p *Pool[In, Out]) Concurrency() int { return p.concurrency }

// Process distributes items across workers, applies fn to each, and returns
// results in the same order as the input slice. Errors and panics from
// individual items are captured per-result rather than aborting the batch.
// Items not started before ctx is done get ctx.Err().
func (p *Pool[In, Out]) Process(ctx context.Context, items []In, fn func(context.Context, In) (Out, error)) []Result[In, Out] {
	if len(items) == 0 {
		return nil
	}

	// Cap concurrency to number of items
	workers := p.concurrency
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan int, len(items))
	results := make([]Result[In, Out], len(items))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = run(ctx, i, items[i], fn)
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	return results
}

func run[In, Out any](ctx context.Context, i int, item In, fn func(context.Context, In) (Out, error)) (res Result[In, Out]) {
	res = Result[In, Out]{Index: i, Input: item}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			var zero Out
			res.Value = zero
			res.Err = &PanicError{Index: i, Value: r}
		}
	}()
	res.Value, res.Err = fn(ctx, item)
	return res
}

// Errors returns the non-nil errors of results in input order.
func Errors[In, Out any](results []Result[In, Out]) []error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
