package bucket

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/vnykmshr/flowbench/internal/testutil"
	"github.com/vnykmshr/flowbench/pkg/common/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		rate    Limit
		burst   int
		wantErr bool
	}{
		{"valid parameters", 1024, 256, false},
		{"zero rate", 0, 5, false},
		{"infinite rate", Inf, 5, false},
		{"negative rate", -1, 5, true},
		{"zero burst", 10, 0, true},
		{"negative burst", 10, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := New(tt.rate, tt.burst)
			if tt.wantErr {
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %v", err)
				}
				if limiter != nil {
					t.Error("expected nil limiter on error")
				}
				return
			}

			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, limiter.Limit(), tt.rate)
			testutil.AssertEqual(t, limiter.Burst(), tt.burst)
			testutil.AssertEqual(t, limiter.Tokens(), float64(tt.burst))
		})
	}
}

func TestEvery(t *testing.T) {
	testutil.AssertEqual(t, Every(100*time.Millisecond), Limit(10))
	testutil.AssertEqual(t, Every(2*time.Second), Limit(0.5))
	if !math.IsInf(float64(Every(0)), 1) {
		t.Error("zero interval should be Inf")
	}
}

func TestAllowNRefill(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	limiter, err := NewWithConfig(Config{Rate: 1000, Burst: 100, Clock: clock, InitialTokens: 0})
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, limiter.AllowN(1), false)

	clock.Advance(50 * time.Millisecond)
	testutil.AssertEqual(t, limiter.AllowN(50), true)
	testutil.AssertEqual(t, limiter.AllowN(1), false)

	// Refill caps at burst
	clock.Advance(time.Second)
	testutil.AssertEqual(t, limiter.Tokens(), float64(100))
	testutil.AssertEqual(t, limiter.AllowN(101), false)
	testutil.AssertEqual(t, limiter.AllowN(100), true)
}

func TestReserveDelay(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	limiter, _ := NewWithConfig(Config{Rate: 1000, Burst: 1000, Clock: clock, InitialTokens: 0})

	delay, ok := limiter.reserve(clock.Now(), 250, math.MaxInt64)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, delay, 250*time.Millisecond)

	// The next reservation queues behind the first
	delay, ok = limiter.reserve(clock.Now(), 250, math.MaxInt64)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, delay, 500*time.Millisecond)

	_, ok = limiter.reserve(clock.Now(), 250, 100*time.Millisecond)
	testutil.AssertEqual(t, ok, false)
}

func TestWaitNSplitsLargeRequests(t *testing.T) {
	limiter, _ := New(1<<20, 4096)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	// 3x burst at 1 MiB/s: two refills of 4 KiB, about 8ms
	start := time.Now()
	testutil.AssertNoError(t, limiter.WaitN(ctx, 3*4096))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitN took %v", elapsed)
	}
}

func TestWaitNPacing(t *testing.T) {
	limiter, _ := NewWithConfig(Config{Rate: 10_000, Burst: 100, InitialTokens: 0})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		testutil.AssertNoError(t, limiter.WaitN(ctx, 100))
	}
	// 500 bytes at 10000 B/s is 50ms
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("WaitN did not pace: %v", elapsed)
	}
}

func TestWaitNCancel(t *testing.T) {
	limiter, _ := NewWithConfig(Config{Rate: 10, Burst: 100, InitialTokens: 0})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.WaitN(ctx, 100)
	testutil.AssertEqual(t, err, context.DeadlineExceeded)

	// Abandoned reservation was restored
	if limiter.Tokens() < -1 {
		t.Errorf("tokens not restored: %v", limiter.Tokens())
	}
}

func TestWaitNZeroRate(t *testing.T) {
	limiter, _ := NewWithConfig(Config{Rate: 0, Burst: 10, InitialTokens: 10})
	ctx := context.Background()

	testutil.AssertNoError(t, limiter.WaitN(ctx, 10))
	err := limiter.WaitN(ctx, 1)
	if !errors.IsRetryable(err) {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestInfRate(t *testing.T) {
	limiter, _ := New(Inf, 1)
	testutil.AssertNoError(t, limiter.WaitN(context.Background(), 1<<30))
	testutil.AssertEqual(t, limiter.AllowN(1000), true)
}

func TestInfRateWaitIsConstantTime(t *testing.T) {
	limiter, _ := New(Inf, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	testutil.AssertNoError(t, limiter.WaitN(ctx, math.MaxInt32))
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("WaitN at Inf took %v", elapsed)
	}

	cancel()
	testutil.AssertError(t, limiter.WaitN(ctx, 1))
}

func TestSetLimit(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	limiter, _ := NewWithConfig(Config{Rate: 100, Burst: 100, Clock: clock, InitialTokens: 0})

	clock.Advance(100 * time.Millisecond)
	limiter.SetLimit(1000)
	testutil.AssertEqual(t, limiter.Tokens(), float64(10))

	clock.Advance(50 * time.Millisecond)
	testutil.AssertEqual(t, limiter.Tokens(), float64(60))
}
