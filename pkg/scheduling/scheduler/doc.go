// Package scheduler repeats benchmark runs on a fixed interval or a cron
// expression.
//
// Due tasks are handed to a workerpool.Pool with TrySubmit. The default pool
// has one worker and no queue, so at most one transfer is ever in flight: an
// activation that finds the previous run still going is skipped, logged, and
// counted in the scheduler_runs_skipped_total metric.
//
//	s := scheduler.NewWithConfig(scheduler.Config{Name: "nightly", Metrics: reg})
//	if err := s.ScheduleCron("bench", "*/15 * * * *", task); err != nil {
//		return err
//	}
//	if err := s.Start(ctx); err != nil {
//		return err
//	}
//	defer s.Stop(context.Background())
//
// Cron expressions take five fields with an optional leading seconds field,
// and descriptors such as "@hourly" or "@every 10m".
package scheduler
