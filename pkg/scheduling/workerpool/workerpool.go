package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// Submit queues task, waiting for a free worker or queue slot. ctx bounds
// the wait and is also passed to the task.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if p.closed() {
		return ErrPoolClosed
	}

	// Check if context is already canceled before attempting to queue
	select {
	case <-ctx.Done():
		return fmt.Errorf("cannot submit task: %w", ctx.Err())
	default:
	}

	select {
	case p.slots <- struct{}{}:
	case <-p.shutdownCh:
		return ErrPoolClosed
	case <-ctx.Done():
		return fmt.Errorf("cannot submit task: %w", ctx.Err())
	}
	return p.enqueue(taskWithContext{task: task, ctx: ctx})
}

// TrySubmit queues task only if a worker or queue slot is free right now,
// and returns ErrPoolBusy otherwise.
func (p *Pool) TrySubmit(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if p.closed() {
		return ErrPoolClosed
	}

	select {
	case p.slots <- struct{}{}:
	default:
		return ErrPoolBusy
	}
	return p.enqueue(taskWithContext{task: task, ctx: ctx})
}

// enqueue hands a task that already holds a slot to the workers. The queue
// has room for every slot, so the send never blocks. Holding the read lock
// keeps Shutdown from closing shutdownCh until the task is queued, which
// guarantees the draining workers see it.
func (p *Pool) enqueue(twc taskWithContext) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.isShutdown {
		<-p.slots
		return ErrPoolClosed
	}
	p.taskQueue <- twc
	return nil
}

// Shutdown stops accepting tasks, lets queued and running tasks finish,
// and waits for the workers until ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.isShutdown = true
		p.mu.Unlock()
		close(p.shutdownCh)
	})

	done := make(chan struct{})
	go func() {
		p.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *Pool) QueueSize() int {
	return len(p.taskQueue)
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *Pool) ActiveWorkers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.activeWorkers
}

// TotalCompleted returns the number of tasks that finished, failed or not.
func (p *Pool) TotalCompleted() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalCompleted
}

// TotalFailed returns the number of tasks that returned an error or panicked.
func (p *Pool) TotalFailed() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalFailed
}

func (p *Pool) closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isShutdown
}

// run is the main loop for a worker. On shutdown it finishes the tasks
// still queued before exiting.
func (w *worker) run() {
	defer w.pool.workerWg.Done()

	for {
		select {
		case twc := <-w.pool.taskQueue:
			w.executeTask(twc)
			<-w.pool.slots
		case <-w.pool.shutdownCh:
			for {
				select {
				case twc := <-w.pool.taskQueue:
					w.executeTask(twc)
					<-w.pool.slots
				default:
					return
				}
			}
		}
	}
}

// executeTask executes a single task with the provided context.
func (w *worker) executeTask(twc taskWithContext) {
	p := w.pool
	start := time.Now()
	var err error

	p.setActive(1)

	// Handle panics during task execution
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v\nStack trace:\n%s", r, debug.Stack())
		}

		result := Result{
			Error:    err,
			Duration: time.Since(start),
			WorkerID: w.id,
		}
		p.setActive(-1)
		p.record(result)

		if p.config.OnTaskComplete != nil {
			p.config.OnTaskComplete(result)
		}
	}()

	ctx := twc.ctx

	// The effective timeout is the minimum of the context deadline and TaskTimeout
	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	err = twc.task.Execute(ctx)
}
