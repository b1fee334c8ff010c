package channel

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrChannelClosed is returned by Send once the channel is closed, and by
// Receive once the channel is closed and every queued byte has been read.
var ErrChannelClosed = errors.New("channel is closed")

// ErrSendTimeout is returned when Send waited SendTimeout for free space.
var ErrSendTimeout = errors.New("channel send timed out")

// ErrChunkTooLarge is returned when a chunk exceeds the channel capacity and
// could therefore never be enqueued in one piece.
var ErrChunkTooLarge = errors.New("chunk exceeds channel capacity")

// Stats holds statistics about channel traffic.
type Stats struct {
	// Sends is the number of successful Send calls.
	Sends int64 `json:"sends"`

	// Receives is the number of Receive calls that returned data.
	Receives int64 `json:"receives"`

	// BytesIn is the total number of bytes enqueued.
	BytesIn int64 `json:"bytes_in"`

	// BytesOut is the total number of bytes dequeued.
	BytesOut int64 `json:"bytes_out"`

	// BlockedSends is the number of sends that had to wait for space.
	BlockedSends int64 `json:"blocked_sends"`

	// ReceiveTimeouts is the number of receives that returned no data.
	ReceiveTimeouts int64 `json:"receive_timeouts"`

	// Queued is the number of bytes buffered at the time of the snapshot.
	Queued int `json:"queued"`

	// PeakQueued is the largest number of bytes ever buffered at once.
	PeakQueued int `json:"peak_queued"`

	// Utilization is Queued / capacity (0.0 to 1.0).
	Utilization float64 `json:"utilization"`
}

// Config holds configuration for Channel.
type Config struct {
	// Capacity is the number of bytes the channel can buffer.
	Capacity int

	// SendTimeout bounds the wait for free space (0 = wait until space,
	// close or context cancellation).
	SendTimeout time.Duration

	// OnBlock is called once per Send that finds the channel full, with the
	// number of bytes queued at that moment.
	OnBlock func(queued int)

	// OnReceiveTimeout is called when Receive returns without data.
	OnReceiveTimeout func()
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity: 48 * 1024,
	}
}

// Channel is a bounded single-producer single-consumer byte queue. Chunk
// boundaries are not preserved: a receiver sees the same byte stream the
// sender wrote, split however its buffer sizes dictate.
type Channel struct {
	config Config

	mu     sync.Mutex
	buffer []byte
	head   int
	count  int
	closed bool
	stats  Stats

	// Wakeups, each with room for one pending signal. Waiters always
	// re-check state under mu, so a stale signal only costs a loop.
	dataReady  chan struct{}
	spaceReady chan struct{}
	done       chan struct{}
}

// New creates a Channel with the given capacity in bytes.
func New(capacity int) *Channel {
	config := DefaultConfig()
	config.Capacity = capacity
	return NewWithConfig(config)
}

// NewWithConfig creates a Channel with the specified configuration.
// A non-positive capacity falls back to the default.
func NewWithConfig(config Config) *Channel {
	if config.Capacity <= 0 {
		config.Capacity = DefaultConfig().Capacity
	}

	return &Channel{
		config:     config,
		buffer:     make([]byte, config.Capacity),
		dataReady:  make(chan struct{}, 1),
		spaceReady: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Send enqueues all of data, waiting while there is not enough free space.
// The bytes are copied, so the caller may reuse data once Send returns.
func (ch *Channel) Send(ctx context.Context, data []byte) error {
	if len(data) > len(ch.buffer) {
		return ErrChunkTooLarge
	}

	var timeout <-chan time.Time
	if ch.config.SendTimeout > 0 {
		timer := time.NewTimer(ch.config.SendTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	blocked := false
	for {
		ch.mu.Lock()
		if ch.closed {
			ch.mu.Unlock()
			return ErrChannelClosed
		}

		if len(ch.buffer)-ch.count >= len(data) {
			ch.writeLocked(data)
			ch.mu.Unlock()
			notify(ch.dataReady)
			return nil
		}

		queued := ch.count
		if !blocked {
			ch.stats.BlockedSends++
		}
		ch.mu.Unlock()

		if !blocked {
			blocked = true
			if ch.config.OnBlock != nil {
				ch.config.OnBlock(queued)
			}
		}

		select {
		case <-ch.spaceReady:
		case <-ch.done:
		case <-timeout:
			return ErrSendTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Receive copies up to len(p) queued bytes into p. It waits up to timeout
// for at least one byte; a non-positive timeout does not wait. Returning
// (0, nil) means the wait elapsed with nothing queued, which is not an
// error. Once the channel is closed and empty Receive returns
// (0, ErrChannelClosed).
func (ch *Channel) Receive(p []byte, timeout time.Duration) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var expired <-chan time.Time
	for {
		ch.mu.Lock()
		if ch.count > 0 {
			n := ch.readLocked(p)
			ch.mu.Unlock()
			notify(ch.spaceReady)
			return n, nil
		}
		if ch.closed {
			ch.mu.Unlock()
			return 0, ErrChannelClosed
		}
		ch.mu.Unlock()

		if timeout <= 0 {
			ch.recordTimeout()
			return 0, nil
		}
		if expired == nil {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			expired = timer.C
		}

		select {
		case <-ch.dataReady:
		case <-ch.done:
		case <-expired:
			ch.recordTimeout()
			return 0, nil
		}
	}
}

// Close prevents further sends and wakes any waiter. Queued bytes stay
// available to Receive. Close is idempotent.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return nil
	}
	ch.closed = true
	close(ch.done)
	return nil
}

// IsClosed returns true if the channel is closed.
func (ch *Channel) IsClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

// Drained reports whether the channel is closed and empty. Both conditions
// are read under the same lock, so a true result is final.
func (ch *Channel) Drained() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed && ch.count == 0
}

// Len returns the number of queued bytes.
func (ch *Channel) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.count
}

// Cap returns the capacity in bytes.
func (ch *Channel) Cap() int {
	return len(ch.buffer)
}

// Stats returns a snapshot of channel statistics.
func (ch *Channel) Stats() Stats {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	stats := ch.stats
	stats.Queued = ch.count
	stats.Utilization = float64(ch.count) / float64(len(ch.buffer))
	return stats
}

// writeLocked appends data at the tail of the ring (must hold lock and
// have checked free space).
func (ch *Channel) writeLocked(data []byte) {
	tail := (ch.head + ch.count) % len(ch.buffer)
	n := copy(ch.buffer[tail:], data)
	if n < len(data) {
		copy(ch.buffer, data[n:])
	}
	ch.count += len(data)

	ch.stats.Sends++
	ch.stats.BytesIn += int64(len(data))
	if ch.count > ch.stats.PeakQueued {
		ch.stats.PeakQueued = ch.count
	}
}

// readLocked moves up to len(p) bytes from the head of the ring into p
// (must hold lock).
func (ch *Channel) readLocked(p []byte) int {
	n := min(len(p), ch.count)
	end := min(ch.head+n, len(ch.buffer))
	first := copy(p[:n], ch.buffer[ch.head:end])
	if first < n {
		copy(p[first:n], ch.buffer[:n-first])
	}
	ch.head = (ch.head + n) % len(ch.buffer)
	ch.count -= n

	ch.stats.Receives++
	ch.stats.BytesOut += int64(n)
	return n
}

func (ch *Channel) recordTimeout() {
	ch.mu.Lock()
	ch.stats.ReceiveTimeouts++
	ch.mu.Unlock()

	if ch.config.OnReceiveTimeout != nil {
		ch.config.OnReceiveTimeout()
	}
}

// notify leaves a pending wakeup on c unless one is already there.
func notify(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
