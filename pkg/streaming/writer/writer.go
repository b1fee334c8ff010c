package writer

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ErrWriterClosed is returned when attempting to write to a closed writer.
var ErrWriterClosed = errors.New("writer is closed")

// Stats holds statistics about batch writer performance.
type Stats struct {
	// BytesWritten is the total number of bytes handed to the underlying writer.
	BytesWritten int64

	// BytesAccepted is the total number of bytes accepted by Write.
	BytesAccepted int64

	// WriteCount is the total number of Write calls.
	WriteCount int64

	// FlushCount is the total number of writes issued to the underlying writer.
	FlushCount int64

	// ErrorCount is the total number of errors encountered.
	ErrorCount int64

	// RetryCount is the number of retried underlying writes.
	RetryCount int64

	// TotalFlushTime is the total time spent in the underlying writer.
	TotalFlushTime time.Duration

	// Buffered is the number of bytes waiting for the next flush.
	Buffered int
}

// Config holds configuration options for BatchWriter.
type Config struct {
	// BufferSize is the size of the batch buffer in bytes.
	// Default: 16KB
	BufferSize int

	// MaxRetries is the number of times to retry a failed or short
	// underlying write. Default: 3
	MaxRetries int

	// RetryDelay is the delay between retries.
	// Default: 100ms
	RetryDelay time.Duration

	// OnError is called when an underlying write gives up.
	OnError func(error)

	// OnFlush is called after each underlying write.
	OnFlush func(bytesWritten int, duration time.Duration)
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize: 16 * 1024,
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	}
}

// BatchWriter coalesces small writes into BufferSize batches before handing
// them to the underlying writer. Writes larger than the buffer bypass it.
// Once an underlying write fails the error is sticky.
type BatchWriter struct {
	underlying io.Writer
	config     Config

	mu     sync.Mutex
	buffer []byte
	err    error
	closed bool
	stats  Stats
}

// New creates a BatchWriter with default configuration.
func New(w io.Writer) *BatchWriter {
	return NewWithConfig(w, DefaultConfig())
}

// NewWithConfig creates a BatchWriter with the specified configuration.
func NewWithConfig(w io.Writer, config Config) *BatchWriter {
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}

	return &BatchWriter{
		underlying: w,
		config:     config,
		buffer:     make([]byte, 0, config.BufferSize),
	}
}

// Write implements io.Writer. The returned count covers only bytes that were
// accepted, either buffered or written through. Buffered bytes are counted
// before they reach the underlying writer.
func (bw *BatchWriter) Write(p []byte) (int, error) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if bw.closed {
		return 0, ErrWriterClosed
	}
	if bw.err != nil {
		return 0, bw.err
	}
	bw.stats.WriteCount++

	nn := 0
	for len(p) > cap(bw.buffer)-len(bw.buffer) {
		var n int
		if len(bw.buffer) == 0 {
			// Large write with an empty buffer: skip the copy.
			n, bw.err = bw.writeLocked(p)
		} else {
			n = copy(bw.buffer[len(bw.buffer):cap(bw.buffer)], p)
			bw.buffer = bw.buffer[:len(bw.buffer)+n]
			bw.err = bw.flushLocked()
		}
		nn += n
		p = p[n:]
		if bw.err != nil {
			bw.stats.BytesAccepted += int64(nn)
			return nn, bw.err
		}
	}

	n := copy(bw.buffer[len(bw.buffer):cap(bw.buffer)], p)
	bw.buffer = bw.buffer[:len(bw.buffer)+n]
	nn += n
	bw.stats.BytesAccepted += int64(nn)
	return nn, nil
}

// Flush writes any buffered data to the underlying writer.
func (bw *BatchWriter) Flush() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if bw.err != nil {
		return bw.err
	}
	bw.err = bw.flushLocked()
	return bw.err
}

// Close flushes remaining data. It does not close the underlying writer.
// After Close returns, no more writes are accepted.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if bw.closed {
		return nil
	}
	bw.closed = true
	if bw.err != nil {
		return bw.err
	}
	bw.err = bw.flushLocked()
	return bw.err
}

// Buffered returns the number of bytes waiting for the next flush.
func (bw *BatchWriter) Buffered() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// Stats returns a snapshot of writer statistics.
func (bw *BatchWriter) Stats() Stats {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	stats := bw.stats
	stats.Buffered = len(bw.buffer)
	return stats
}

// flushLocked writes the whole buffer (must hold lock). On failure the
// unwritten tail stays buffered.
func (bw *BatchWriter) flushLocked() error {
	if len(bw.buffer) == 0 {
		return nil
	}

	n, err := bw.writeLocked(bw.buffer)
	if n < len(bw.buffer) {
		copy(bw.buffer, bw.buffer[n:])
	}
	bw.buffer = bw.buffer[:len(bw.buffer)-n]
	return err
}

// writeLocked hands data to the underlying writer with retries and records
// statistics (must hold lock).
func (bw *BatchWriter) writeLocked(data []byte) (int, error) {
	start := time.Now()
	n, err := bw.writeWithRetries(data)
	duration := time.Since(start)

	bw.stats.FlushCount++
	bw.stats.BytesWritten += int64(n)
	bw.stats.TotalFlushTime += duration
	if err != nil {
		bw.stats.ErrorCount++
	}

	if bw.config.OnFlush != nil {
		bw.config.OnFlush(n, duration)
	}
	if err != nil && bw.config.OnError != nil {
		bw.config.OnError(err)
	}
	return n, err
}

// writeWithRetries writes data with retry logic. A short write without an
// error is retried for the remainder and reported as io.ErrShortWrite if the
// retries run out.
func (bw *BatchWriter) writeWithRetries(data []byte) (int, error) {
	var totalWritten int
	var lastErr error

	for attempt := 0; attempt <= bw.config.MaxRetries; attempt++ {
		if attempt > 0 {
			bw.stats.RetryCount++
			time.Sleep(bw.config.RetryDelay)
		}

		written, err := bw.underlying.Write(data[totalWritten:])
		totalWritten += written

		if err != nil {
			lastErr = err
			continue
		}
		if totalWritten >= len(data) {
			return totalWritten, nil
		}
		lastErr = io.ErrShortWrite
	}

	return totalWritten, lastErr
}
