package testutil

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrInjected is the default error returned by mocks configured to fail.
var ErrInjected = errors.New("simulated error")

// MockClock implements the rate limiter Clock interface with controllable time.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a new MockClock starting at the given time.
// If zero time is provided, uses current time.
func NewMockClock(start time.Time) *MockClock {
	if start.IsZero() {
		start = time.Now()
	}
	return &MockClock{now: start}
}

// Now returns the current mock time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward by the given duration.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// MockSink records everything written to it and can simulate slow storage,
// a failure after a byte budget, short writes and close errors.
type MockSink struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	writeDelay time.Duration
	failAfter  int64
	failErr    error
	shortBy    int
	closeErr   error
	writeCount int
	closed     bool
}

// NewMockSink creates a MockSink that accepts every write.
func NewMockSink() *MockSink {
	return &MockSink{failAfter: -1}
}

// Write implements io.Writer. With FailAfter set, bytes up to the budget are
// accepted and the write that crosses it reports the partial count and the
// configured error.
func (ms *MockSink) Write(p []byte) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.writeCount++
	if ms.closed {
		return 0, io.ErrClosedPipe
	}
	if ms.writeDelay > 0 {
		time.Sleep(ms.writeDelay)
	}

	if ms.failAfter >= 0 {
		room := ms.failAfter - int64(ms.buf.Len())
		if int64(len(p)) > room {
			n, _ := ms.buf.Write(p[:max(room, 0)])
			return n, ms.failErr
		}
	}

	if ms.shortBy > 0 && len(p) > ms.shortBy {
		return ms.buf.Write(p[:len(p)-ms.shortBy])
	}
	return ms.buf.Write(p)
}

// Close marks the sink closed and returns the configured close error.
func (ms *MockSink) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closed = true
	return ms.closeErr
}

// Bytes returns a copy of everything written so far.
func (ms *MockSink) Bytes() []byte {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return bytes.Clone(ms.buf.Bytes())
}

// Len returns the number of bytes accepted.
func (ms *MockSink) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.buf.Len()
}

// WriteCount returns the number of Write calls.
func (ms *MockSink) WriteCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.writeCount
}

// Closed reports whether Close was called.
func (ms *MockSink) Closed() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.closed
}

// SetWriteDelay configures a delay for each write operation.
func (ms *MockSink) SetWriteDelay(delay time.Duration) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.writeDelay = delay
}

// FailAfter makes the sink accept exactly n bytes and then fail with err
// (ErrInjected when nil).
func (ms *MockSink) FailAfter(n int64, err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	ms.failAfter = n
	ms.failErr = err
}

// SetShortWrites makes every write larger than n accept n fewer bytes than
// requested while reporting no error.
func (ms *MockSink) SetShortWrites(n int) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.shortBy = n
}

// SetCloseError configures the error returned by Close.
func (ms *MockSink) SetCloseError(err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closeErr = err
}

// PatternSource yields Pattern bytes in chunks of configurable size.
type PatternSource struct {
	mu        sync.Mutex
	total     int64
	offset    int64
	chunks    []int
	next      int
	readDelay time.Duration
	failAt    int64
	failErr   error
	closed    bool
	reads     int
}

// NewPatternSource creates a source of total bytes that returns at most
// chunk bytes per Read.
func NewPatternSource(total int64, chunk int) *PatternSource {
	return &PatternSource{total: total, chunks: []int{chunk}, failAt: -1}
}

// SetChunkSizes cycles Read sizes through sizes.
func (ps *PatternSource) SetChunkSizes(sizes ...int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.chunks = sizes
	ps.next = 0
}

// SetReadDelay configures a delay for each Read.
func (ps *PatternSource) SetReadDelay(d time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.readDelay = d
}

// FailAt makes Read return err (ErrInjected when nil) once offset bytes have
// been delivered.
func (ps *PatternSource) FailAt(offset int64, err error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	ps.failAt = offset
	ps.failErr = err
}

// Read implements io.Reader.
func (ps *PatternSource) Read(p []byte) (int, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.reads++
	if ps.closed {
		return 0, io.ErrClosedPipe
	}
	if ps.readDelay > 0 {
		time.Sleep(ps.readDelay)
	}

	limit := ps.total
	if ps.failAt >= 0 && ps.failAt < limit {
		limit = ps.failAt
	}
	if ps.offset >= limit {
		if limit < ps.total {
			return 0, ps.failErr
		}
		return 0, io.EOF
	}

	n := min(len(p), ps.chunks[ps.next%len(ps.chunks)])
	ps.next++
	n = int(min(int64(n), limit-ps.offset))
	FillPattern(p[:n], ps.offset)
	ps.offset += int64(n)
	return n, nil
}

// Close implements io.Closer.
func (ps *PatternSource) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.closed = true
	return nil
}

// ChunkSize returns the first configured chunk size.
func (ps *PatternSource) ChunkSize() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.chunks[0]
}

// Closed reports whether Close was called.
func (ps *PatternSource) Closed() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.closed
}

// Delivered returns the number of bytes handed out so far.
func (ps *PatternSource) Delivered() int64 {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.offset
}
