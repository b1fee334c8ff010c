package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/pkg/metrics"
	"github.com/vnykmshr/flowbench/pkg/scheduling/workerpool"
)

// Task describes a scheduled job.
type Task struct {
	ID       string
	RunAt    time.Time
	Interval time.Duration // Zero for one-time and cron tasks
	Cron     string
	Created  time.Time
	Runs     int64
	Skipped  int64
}

// BackoffTask retries a task with exponential backoff. Retry, when set,
// decides whether an error is worth another attempt.
type BackoffTask struct {
	Task         workerpool.Task
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Retry        func(error) bool
}

// Execute implements workerpool.Task with exponential backoff.
func (bt BackoffTask) Execute(ctx context.Context) error {
	var lastErr error
	delay := bt.InitialDelay

	for attempt := 0; attempt <= bt.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}

			delay *= 2
			if bt.MaxDelay > 0 && delay > bt.MaxDelay {
				delay = bt.MaxDelay
			}
		}

		lastErr = bt.Task.Execute(ctx)
		if lastErr == nil {
			return nil
		}
		if bt.Retry != nil && !bt.Retry(lastErr) {
			return lastErr
		}
		if attempt < bt.MaxRetries {
			logger.WarnCtx(ctx, "run failed, retrying", "attempt", attempt+1, "delay", delay, "error", lastErr)
		}
	}

	return lastErr
}

// Config holds scheduler configuration.
type Config struct {
	// Pool executes due tasks. When nil the scheduler owns a single-worker
	// pool with no queue, so a tick that finds a run in flight is skipped.
	Pool         *workerpool.Pool
	Location     *time.Location // For cron scheduling
	TickInterval time.Duration  // How often to check for ready tasks (default: 50ms)
	MaxTasks     int            // Maximum number of scheduled tasks (default: 10000)
	Name         string
	Metrics      *metrics.Registry
}

type scheduledTask struct {
	id           string
	task         workerpool.Task
	runAt        time.Time
	interval     time.Duration
	cronExpr     string
	cronSchedule cron.Schedule
	created      time.Time
	runs         int64
	skipped      int64
}

// Scheduler fires tasks at fixed times, intervals or cron expressions and
// hands them to a worker pool.
type Scheduler struct {
	pool         *workerpool.Pool
	ownPool      bool
	location     *time.Location
	tickInterval time.Duration
	maxTasks     int
	name         string
	metrics      *metrics.Registry
	cronParser   cron.Parser

	mu      sync.RWMutex
	tasks   map[string]*scheduledTask
	cancel  context.CancelFunc
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// New creates a scheduler with default configuration.
func New() *Scheduler {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) *Scheduler {
	name := cfg.Name
	if name == "" {
		name = "default"
	}

	pool := cfg.Pool
	ownPool := false
	if pool == nil {
		pool = workerpool.NewWithConfig(workerpool.Config{
			WorkerCount: 1,
			QueueSize:   0,
			Name:        name,
			Metrics:     cfg.Metrics,
		})
		ownPool = true
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = 50 * time.Millisecond
	}

	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10000
	}

	return &Scheduler{
		pool:         pool,
		ownPool:      ownPool,
		location:     location,
		tickInterval: tickInterval,
		maxTasks:     maxTasks,
		name:         name,
		metrics:      cfg.Metrics,
		cronParser: cron.NewParser(
			cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
		tasks: make(map[string]*scheduledTask),
	}
}

// ParseCron validates a cron expression. Five fields, an optional leading
// seconds field, and descriptors such as "@hourly" or "@every 10m" are
// accepted.
func (s *Scheduler) ParseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}
	schedule, err := s.cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// Schedule runs task once at runAt.
func (s *Scheduler) Schedule(id string, task workerpool.Task, runAt time.Time) error {
	if runAt.IsZero() {
		return fmt.Errorf("task run time cannot be zero")
	}
	return s.add(id, task, &scheduledTask{runAt: runAt})
}

// ScheduleAfter runs task once after delay.
func (s *Scheduler) ScheduleAfter(id string, task workerpool.Task, delay time.Duration) error {
	return s.Schedule(id, task, time.Now().Add(delay))
}

// ScheduleRepeating runs task immediately and then every interval.
func (s *Scheduler) ScheduleRepeating(id string, task workerpool.Task, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", interval)
	}
	return s.add(id, task, &scheduledTask{runAt: time.Now(), interval: interval})
}

// ScheduleCron runs task at every activation of cronExpr.
func (s *Scheduler) ScheduleCron(id string, cronExpr string, task workerpool.Task) error {
	schedule, err := s.ParseCron(cronExpr)
	if err != nil {
		return err
	}
	return s.add(id, task, &scheduledTask{
		runAt:        schedule.Next(time.Now().In(s.location)),
		cronExpr:     cronExpr,
		cronSchedule: schedule,
	})
}

func (s *Scheduler) add(id string, task workerpool.Task, st *scheduledTask) error {
	if id == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if len(id) > 255 {
		return fmt.Errorf("task ID too long (max 255 characters)")
	}
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; exists {
		return fmt.Errorf("task with ID %q already exists, use a different ID or cancel the existing task first", id)
	}
	if len(s.tasks) >= s.maxTasks {
		return fmt.Errorf("cannot schedule task: maximum number of tasks (%d) reached", s.maxTasks)
	}

	st.id = id
	st.task = task
	st.created = time.Now()
	s.tasks[id] = st
	return nil
}

// Cancel removes a task. A run already handed to the pool is not interrupted.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; exists {
		delete(s.tasks, id)
		return true
	}
	return false
}

// CancelAll removes every task.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]*scheduledTask)
}

// List returns the scheduled tasks ordered by next run time.
func (s *Scheduler) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, Task{
			ID:       t.id,
			RunAt:    t.runAt,
			Interval: t.interval,
			Cron:     t.cronExpr,
			Created:  t.created,
			Runs:     t.runs,
			Skipped:  t.skipped,
		})
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].RunAt.Before(tasks[j].RunAt)
	})

	return tasks
}

// Start begins dispatching due tasks. ctx is passed to every task run;
// cancelling it also ends the dispatch loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}

	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(runCtx, s.stop, s.done)
	return nil
}

// Stop halts dispatching and, for an owned pool, waits for the run in
// flight. If ctx ends first the run is cancelled and ctx's error returned.
// An owned pool is shut down, so the scheduler cannot be started again.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stop)
	}
	done, cancel := s.done, s.cancel
	s.mu.Unlock()

	if cancel != nil {
		defer cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if !s.ownPool {
		return nil
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		if cancel != nil {
			cancel()
		}
		return err
	}
	return nil
}

// Wait blocks until the dispatch loop exits, either through Stop or because
// the start context ended.
func (s *Scheduler) Wait() {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func (s *Scheduler) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.dispatch(ctx, now)
		}
	}
}

// dispatch hands every due task to the pool. A task whose run cannot be
// accepted because the pool is busy is skipped for this activation.
func (s *Scheduler) dispatch(ctx context.Context, now time.Time) {
	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return
	}

	ready := make([]*scheduledTask, 0, len(s.tasks))
	for id, task := range s.tasks {
		if now.Before(task.runAt) {
			continue
		}
		ready = append(ready, task)

		switch {
		case task.interval > 0:
			task.runAt = now.Add(task.interval)
		case task.cronSchedule != nil:
			task.runAt = task.cronSchedule.Next(now.In(s.location))
		default:
			delete(s.tasks, id)
		}
	}
	s.mu.Unlock()

	for _, task := range ready {
		err := s.pool.TrySubmit(ctx, task.task)
		s.mu.Lock()
		switch {
		case err == nil:
			task.runs++
		case errors.Is(err, workerpool.ErrPoolBusy):
			task.skipped++
		}
		s.mu.Unlock()

		switch {
		case err == nil:
			logger.DebugCtx(ctx, "scheduled run started", "task", task.id, "scheduler", s.name)
			if s.metrics != nil {
				s.metrics.ScheduledRuns.WithLabelValues(s.name).Inc()
			}
		case errors.Is(err, workerpool.ErrPoolBusy):
			logger.WarnCtx(ctx, "previous run still in progress, skipping", "task", task.id, "scheduler", s.name)
			if s.metrics != nil {
				s.metrics.SkippedRuns.WithLabelValues(s.name).Inc()
			}
		default:
			logger.ErrorCtx(ctx, "failed to submit scheduled run", "task", task.id, "error", err)
		}
	}
}
