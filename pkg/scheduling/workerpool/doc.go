/*
Package workerpool runs tasks on a fixed set of worker goroutines.

Scheduled transfers are executed through a pool so that a slow run bounds
how many runs can be in flight at once:

	pool := workerpool.NewWithConfig(workerpool.Config{
		WorkerCount: 1,
		Name:        "nightly",
	})
	defer pool.Shutdown(context.Background())

	err := pool.TrySubmit(ctx, workerpool.TaskFunc(func(ctx context.Context) error {
		_, err := runner.Run(ctx)
		return err
	}))
	if errors.Is(err, workerpool.ErrPoolBusy) {
		// previous run still in progress
	}

With QueueSize 0 a task is only accepted when a worker is idle, which is
what the scheduler relies on to skip overlapping runs. Panics inside a
task are recovered and reported as the task's error. Shutdown drains the
queue before the workers exit.
*/
package workerpool
