package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/flowbench/pkg/scheduling/workerpool"
)

// Example demonstrates a one-time run.
func Example() {
	s := NewWithConfig(Config{TickInterval: 5 * time.Millisecond})

	done := make(chan struct{})
	task := workerpool.TaskFunc(func(ctx context.Context) error {
		fmt.Println("benchmark run")
		close(done)
		return nil
	})

	_ = s.ScheduleAfter("once", task, 10*time.Millisecond)
	_ = s.Start(context.Background())
	<-done
	_ = s.Stop(context.Background())

	fmt.Println(len(s.List()))

	// Output:
	// benchmark run
	// 0
}

// Example_skipOverlapping demonstrates that a slow run causes later
// activations to be skipped instead of queued.
func Example_skipOverlapping() {
	pool := workerpool.New(1, 0)
	s := NewWithConfig(Config{Pool: pool, TickInterval: 2 * time.Millisecond})

	var runs int32
	release := make(chan struct{})
	task := workerpool.TaskFunc(func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		<-release
		return nil
	})

	_ = s.ScheduleRepeating("bench", task, 5*time.Millisecond)
	_ = s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	_ = s.Stop(context.Background())
	close(release)
	_ = pool.Shutdown(context.Background())

	list := s.List()
	fmt.Println(atomic.LoadInt32(&runs), list[0].Skipped > 0)

	// Output:
	// 1 true
}
