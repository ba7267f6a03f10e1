package workerpool

import (
	"context"
	"sync"
)

// Future resolves to the Result of one submitted task.
type Future struct {
	result chan Result

	mu   sync.Mutex
	done bool
	res  Result
}

// Wait blocks until the task completes or ctx expires. A ctx expiry does
// not consume the result; a later Wait can still retrieve it.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done {
		return f.res, nil
	}

	select {
	case res := <-f.result:
		f.res = res
		f.done = true
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// BatchFuture resolves to the Results of a set of tasks, positionally.
type BatchFuture struct {
	futures []*Future
}

func newBatchFuture(futures []*Future) *BatchFuture {
	return &BatchFuture{futures: futures}
}

// Wait blocks until every task has completed (success or failure) or ctx
// expires. Results are ordered to match the submitted tasks.
func (b *BatchFuture) Wait(ctx context.Context) ([]Result, error) {
	results := make([]Result, len(b.futures))
	for i, f := range b.futures {
		res, err := f.Wait(ctx)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

// Len returns the number of tasks in the batch.
func (b *BatchFuture) Len() int {
	return len(b.futures)
}
