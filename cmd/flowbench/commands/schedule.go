package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/internal/runner"
	ferrors "github.com/vnykmshr/flowbench/pkg/common/errors"
	"github.com/vnykmshr/flowbench/pkg/config"
	"github.com/vnykmshr/flowbench/pkg/scheduling/scheduler"
	"github.com/vnykmshr/flowbench/pkg/scheduling/workerpool"
)

// scheduleTaskID names the benchmark job inside the scheduler.
const scheduleTaskID = "benchmark"

type scheduleFlags struct {
	runFlags
	cron    string
	every   time.Duration
	retries int
}

func (f *scheduleFlags) apply(cfg *config.Config) error {
	if f.cron != "" {
		cfg.Schedule.Cron = f.cron
		cfg.Schedule.Every = 0
	}
	if f.every > 0 {
		cfg.Schedule.Every = f.every
		cfg.Schedule.Cron = ""
	}
	if f.retries > 0 {
		cfg.Schedule.Retries = f.retries
	}
	if err := f.runFlags.apply(cfg); err != nil {
		return err
	}
	if cfg.Schedule.Cron == "" && cfg.Schedule.Every <= 0 {
		return fmt.Errorf("no schedule: set --cron, --every, schedule.cron or schedule.every")
	}
	return nil
}

// scheduledTask wraps the runner with retries of transient failures.
func scheduledTask(r *runner.Runner, cfg *config.Config) workerpool.Task {
	task := r.Task()
	if cfg.Schedule.Retries <= 0 {
		return task
	}
	return scheduler.BackoffTask{
		Task:         task,
		MaxRetries:   cfg.Schedule.Retries,
		InitialDelay: cfg.Schedule.RetryDelay,
		MaxDelay:     cfg.Schedule.RetryDelay * 8,
		Retry: func(err error) bool {
			return ferrors.IsTransport(err) || ferrors.IsRetryable(err)
		},
	}
}

// addSchedule registers task on s according to cfg.
func addSchedule(s *scheduler.Scheduler, cfg *config.Config, task workerpool.Task) error {
	if cfg.Schedule.Cron != "" {
		return s.ScheduleCron(scheduleTaskID, cfg.Schedule.Cron, task)
	}
	return s.ScheduleRepeating(scheduleTaskID, task, cfg.Schedule.Every)
}

func newScheduleCmd(configFile func() string) *cobra.Command {
	flags := &scheduleFlags{}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the benchmark repeatedly",
		Long: `Run the benchmark on a cron expression or a fixed interval until
interrupted. Only one transfer runs at a time: an activation that finds the
previous run still in progress is skipped.

Examples:
  flowbench schedule --cron "*/15 * * * *"
  flowbench schedule --every 10m --metrics :9090
  flowbench schedule --cron @hourly --retries 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile())
			if err != nil {
				return err
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}
			if err := InitLogger(cfg); err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			stopTelemetry, err := initTelemetry(ctx, cfg)
			if err != nil {
				return err
			}
			defer stopTelemetry()

			ms, err := startMetrics(cfg)
			if err != nil {
				return err
			}
			defer ms.Close()

			r, err := runner.New(cfg,
				runner.WithRegistry(ms.Registry()),
				runner.WithOutput(cmd.OutOrStdout()),
			)
			if err != nil {
				return err
			}
			defer func() {
				if err := r.Close(); err != nil {
					logger.Warn("closing report publishers", "error", err)
				}
			}()

			s := scheduler.NewWithConfig(scheduler.Config{
				Name:         scheduleTaskID,
				Metrics:      ms.Registry(),
				TickInterval: 100 * time.Millisecond,
			})
			if err := addSchedule(s, cfg, scheduledTask(r, cfg)); err != nil {
				return err
			}
			if err := s.Start(ctx); err != nil {
				return err
			}
			logger.Info("Scheduler started", "cron", cfg.Schedule.Cron, "every", cfg.Schedule.Every)

			s.Wait()
			logger.Info("Shutting down scheduler")

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()
			return s.Stop(stopCtx)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.cron, "cron", "", `Cron expression, e.g. "*/15 * * * *" or @hourly`)
	cmd.Flags().DurationVar(&flags.every, "every", 0, "Run at a fixed interval, e.g. 10m")
	cmd.Flags().IntVar(&flags.retries, "retries", 0, "Retry transient failures this many times")
	return cmd
}
