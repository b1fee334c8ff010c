package workerpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vnykmshr/flowbench/pkg/metrics"
)

// ErrPoolClosed is returned when submitting to a pool that was shut down.
var ErrPoolClosed = errors.New("worker pool has been shut down")

// ErrPoolBusy is returned by TrySubmit when no worker or queue slot is free.
var ErrPoolBusy = errors.New("worker pool is busy")

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result represents the result of a task execution.
type Result struct {
	// Error is any error that occurred during task execution
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration

	// WorkerID identifies which worker executed the task
	WorkerID int
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// QueueSize is the number of tasks that can wait for a worker.
	// With 0 a task is only accepted when a worker is idle.
	QueueSize int

	// TaskTimeout is the default timeout for individual task execution.
	// Zero means no timeout.
	TaskTimeout time.Duration

	// Name labels the pool's metrics.
	Name string

	// Metrics records pool activity when non-nil.
	Metrics *metrics.Registry

	// OnTaskComplete is called after a task completes (success or failure).
	OnTaskComplete func(result Result)
}

// Pool runs submitted tasks on a fixed set of workers.
type Pool struct {
	config Config

	taskQueue    chan taskWithContext
	slots        chan struct{} // one per running or queued task
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	workerWg     sync.WaitGroup

	mu             sync.RWMutex
	isShutdown     bool
	activeWorkers  int
	totalCompleted int64
	totalFailed    int64
}

type taskWithContext struct {
	task Task
	ctx  context.Context
}

// worker represents a single worker in the pool.
type worker struct {
	id   int
	pool *Pool
}

// New creates a new worker pool with the specified number of workers and queue size.
func New(workerCount, queueSize int) *Pool {
	return NewWithConfig(Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
}

// NewWithConfig creates a new worker pool with the specified configuration.
func NewWithConfig(config Config) *Pool {
	if config.WorkerCount <= 0 {
		panic("worker count must be positive")
	}
	if config.QueueSize < 0 {
		panic("queue size must be >= 0")
	}
	if config.Name == "" {
		config.Name = "default"
	}

	pool := &Pool{
		config:     config,
		taskQueue:  make(chan taskWithContext, config.WorkerCount+config.QueueSize),
		slots:      make(chan struct{}, config.WorkerCount+config.QueueSize),
		shutdownCh: make(chan struct{}),
	}

	for i := 0; i < config.WorkerCount; i++ {
		w := &worker{id: i, pool: pool}
		pool.workerWg.Add(1)
		go w.run()
	}

	return pool
}
