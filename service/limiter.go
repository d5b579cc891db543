package service

import (
	"context"
	"sync"
)

// Task is one pending generation unit: a zero-argument function owned
// transiently by the limiter.
type Task func() error

// RunLimited runs tasks with at most limit in flight at once, starting a
// new one as soon as a slot frees. One task's failure never cancels or
// blocks the others; the call returns only after every task has settled,
// with errors positionally aligned to tasks. A task whose slot is never
// acquired because ctx expired settles with ctx's error.
func RunLimited(ctx context.Context, tasks []Task, limit int) []error {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	errs := make([]error, len(tasks))

	for i, task := range tasks {
		wg.Add(1)
		go func(idx int, run Task) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}

			errs[idx] = run()
		}(i, task)
	}

	wg.Wait()
	return errs
}
