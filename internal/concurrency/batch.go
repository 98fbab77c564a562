package concurrency

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Default batching parameters for gap processing.
const (
	DefaultBatchSize     = 5
	DefaultMaxConcurrent = 2
)

// Task is a unit of work run by Process.
type Task[R any] func(ctx context.Context) (R, error)

// PanicError is returned in place of a task result when the task panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Process runs tasks in submission groups of batchSize with at most
// maxConcurrent tasks executing at any instant, and returns one result per
// task in input order.
//
// A task that fails or panics yields the zero value of R at its position and
// the corresponding entry in errs is set. Failures never cancel sibling
// tasks. Tasks not started because ctx was cancelled report ctx.Err().
func Process[R any](ctx context.Context, tasks []Task[R], batchSize, maxConcurrent int) (results []R, errs []error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	results = make([]R, len(tasks))
	errs = make([]error, len(tasks))
	sem := semaphore.NewWeighted(int64(maxConcurrent))

	for start := 0; start < len(tasks); start += batchSize {
		end := min(start+batchSize, len(tasks))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			if err := sem.Acquire(ctx, 1); err != nil {
				for j := i; j < len(tasks); j++ {
					errs[j] = err
				}
				wg.Wait()
				return results, errs
			}

			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer sem.Release(1)
				results[i], errs[i] = runTask(ctx, tasks[i])
			}(i)
		}
		wg.Wait()
	}

	return results, errs
}

func runTask[R any](ctx context.Context, task Task[R]) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			result = zero
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	result, err = task(ctx)
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
