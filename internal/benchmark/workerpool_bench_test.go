package benchmark

import (
	"context"
	"strconv"
	"testing"

	"github.com/vnykmshr/flowbench/pkg/scheduling/workerpool"
)

// BenchmarkWorkerPoolSubmit measures task throughput for varying worker counts.
func BenchmarkWorkerPoolSubmit(b *testing.B) {
	for _, workers := range []int{1, 4, 16} {
		b.Run("workers="+strconv.Itoa(workers), func(b *testing.B) {
			pool := workerpool.New(workers, workers*4)
			task := workerpool.TaskFunc(func(context.Context) error { return nil })
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = pool.Submit(ctx, task)
			}
			_ = pool.Shutdown(ctx)
		})
	}
}

// BenchmarkWorkerPoolTrySubmit measures the non-blocking path the scheduler
// takes, including rejections while the single worker is busy.
func BenchmarkWorkerPoolTrySubmit(b *testing.B) {
	pool := workerpool.New(1, 0)
	task := workerpool.TaskFunc(func(context.Context) error { return nil })
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = pool.TrySubmit(ctx, task)
	}
	b.StopTimer()
	_ = pool.Shutdown(ctx)
}
