package async

import (
	"context"
	"errors"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes all tasks concurrently and waits for every one of them.
// Failures are wrapped with the task name and combined with errors.Join.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "worker-0", Func: joinWorker0},
//	    {Name: "worker-1", Func: joinWorker1},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	return RunParallelLimit(ctx, tasks, 0)
}

// RunParallelLimit is RunParallel with at most limit tasks in flight.
// A limit of zero or less runs every task at once.
func RunParallelLimit(ctx context.Context, tasks []Task, limit int) error {
	if len(tasks) == 0 {
		return nil
	}

	type result struct {
		name string
		err  error
	}

	resultChan := make(chan result, len(tasks))

	var sem chan struct{}
	if limit > 0 && limit < len(tasks) {
		sem = make(chan struct{}, limit)
	}

	for _, task := range tasks {
		go func() {
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			resultChan <- result{name: task.Name, err: task.Func(ctx)}
		}()
	}

	var errs []error
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		}
	}

	return errors.Join(errs...)
}
