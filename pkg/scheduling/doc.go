/*
Package scheduling provides task execution and scheduling primitives used to
repeat benchmark runs.

  - workerpool: fixed worker pool with bounded admission
  - scheduler: one-time, interval and cron scheduling on top of a pool

Worker Pool:

	pool := workerpool.New(4, 16) // 4 workers, 16 queued tasks
	defer func() { _ = pool.Shutdown(ctx) }()

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		return nil
	})
	if err := pool.TrySubmit(ctx, task); errors.Is(err, workerpool.ErrPoolBusy) {
		// every worker and queue slot is taken
	}

Task Scheduler:

	s := scheduler.New()
	_ = s.ScheduleRepeating("bench", task, time.Hour)
	_ = s.ScheduleCron("nightly", "0 2 * * *", task)

	_ = s.Start(ctx)
	defer func() { _ = s.Stop(ctx) }()

A scheduler built with New owns a single-worker pool, so a run that is still
in flight when its next tick comes up makes the scheduler skip that tick.

All components are safe for concurrent use and honour context cancellation.
*/
package scheduling
