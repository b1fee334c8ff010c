// Package bucket provides a token bucket that paces byte streams.
//
// One token is one byte. A Limiter refills at Rate bytes per second up to
// Burst bytes, and WaitN blocks a reader until it may hand out n more bytes.
// The simulated network source uses it to deliver a payload at a fixed rate.
package bucket

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/vnykmshr/flowbench/pkg/common/errors"
)

// Limit is a rate in bytes per second. Use Inf for no limit.
type Limit float64

// Inf is the infinite rate limit; it allows all reads immediately.
var Inf = Limit(math.Inf(1))

// Every converts a minimum interval between single-byte events to a Limit.
func Every(interval time.Duration) Limit {
	if interval <= 0 {
		return Inf
	}
	return Limit(time.Second) / Limit(interval)
}

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Config holds configuration options for creating a Limiter.
type Config struct {
	// Rate is the number of bytes added per second.
	Rate Limit

	// Burst is the maximum number of bytes that can be taken at once.
	Burst int

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock

	// InitialTokens is the number of tokens to start with.
	// If negative, starts with full capacity.
	InitialTokens int
}

// Limiter is a token bucket measured in bytes.
type Limiter struct {
	mu         sync.Mutex
	limit      Limit
	burst      int
	tokens     float64
	lastUpdate time.Time
	clock      Clock
}

// New creates a Limiter that starts full.
func New(rate Limit, burst int) (*Limiter, error) {
	return NewWithConfig(Config{
		Rate:          rate,
		Burst:         burst,
		InitialTokens: -1,
	})
}

// NewWithConfig creates a Limiter with the specified configuration.
func NewWithConfig(config Config) (*Limiter, error) {
	if config.Rate < 0 {
		return nil, errors.NewValidationError("bucket", "rate", config.Rate, "rate cannot be negative").
			WithHint("use a positive bytes-per-second value or Inf")
	}
	if config.Burst <= 0 {
		return nil, errors.NewValidationError("bucket", "burst", config.Burst, "burst must be positive").
			WithHint("burst is the largest read handed out at once")
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}

	initialTokens := float64(config.InitialTokens)
	if config.InitialTokens < 0 || initialTokens > float64(config.Burst) {
		initialTokens = float64(config.Burst)
	}

	return &Limiter{
		limit:      config.Rate,
		burst:      config.Burst,
		tokens:     initialTokens,
		lastUpdate: config.Clock.Now(),
		clock:      config.Clock,
	}, nil
}

// AllowN reports whether n bytes may be taken now, taking them if so.
func (l *Limiter) AllowN(n int) bool {
	_, ok := l.reserve(l.clock.Now(), n, 0)
	return ok
}

// WaitN blocks until n bytes may be taken. Requests larger than the burst
// are split into burst-sized reservations, so any n eventually succeeds at
// a positive rate. A zero rate fails once the initial tokens are spent.
// At Inf it returns at once regardless of n.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	if l.Limit() == Inf {
		return ctx.Err()
	}
	for n > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		take := min(n, l.Burst())
		now := l.clock.Now()
		delay, ok := l.reserve(now, take, math.MaxInt64)
		if !ok {
			return errors.NewOperationError("bucket", "WaitN", errors.ErrTimeout).
				WithContext("zero rate and no tokens left")
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				l.restore(take)
				return ctx.Err()
			}
		}
		n -= take
	}
	return nil
}

// SetLimit changes the rate. Tokens accumulated so far are kept.
func (l *Limiter) SetLimit(newLimit Limit) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.updateTokens(l.clock.Now())
	l.limit = newLimit
}

// Limit returns the current rate.
func (l *Limiter) Limit() Limit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// Burst returns the burst size.
func (l *Limiter) Burst() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burst
}

// Tokens returns the number of tokens currently available. It is negative
// while reservations are outstanding.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.updateTokens(l.clock.Now())
	return l.tokens
}

// reserve takes n tokens at now and returns how long the caller must wait
// before using them. ok is false when the wait would exceed maxWait.
func (l *Limiter) reserve(now time.Time, n int, maxWait time.Duration) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || l.limit == Inf {
		return 0, true
	}

	l.updateTokens(now)
	if l.tokens >= float64(n) {
		l.tokens -= float64(n)
		return 0, true
	}
	if l.limit == 0 {
		return 0, false
	}

	needed := float64(n) - l.tokens
	wait := time.Duration(float64(time.Second) * needed / float64(l.limit))
	if wait > maxWait {
		return 0, false
	}

	// Tokens go negative; later callers queue behind this reservation.
	l.tokens -= float64(n)
	return wait, true
}

// restore returns tokens from an abandoned reservation.
func (l *Limiter) restore(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.updateTokens(l.clock.Now())
	l.tokens = math.Min(l.tokens+float64(n), float64(l.burst))
}

// updateTokens refills for the time elapsed since the last update.
func (l *Limiter) updateTokens(now time.Time) {
	if l.limit == Inf {
		l.tokens = float64(l.burst)
		l.lastUpdate = now
		return
	}

	elapsed := now.Sub(l.lastUpdate)
	if elapsed <= 0 {
		return
	}
	l.lastUpdate = now
	if l.limit == 0 {
		return
	}

	l.tokens = math.Min(l.tokens+elapsed.Seconds()*float64(l.limit), float64(l.burst))
}
