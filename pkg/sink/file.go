package sink

import (
	"os"
	"time"

	"github.com/vnykmshr/flowbench/pkg/common/errors"
	"github.com/vnykmshr/flowbench/pkg/metrics"
	"github.com/vnykmshr/flowbench/pkg/streaming/writer"
)

// FileSink writes to a local file through a BatchWriter, so small chunks
// reach the file system in BatchSize pieces.
type FileSink struct {
	path string
	file *os.File
	bw   *writer.BatchWriter
	sync bool
}

// OpenFile creates (or truncates) config.Path, or appends to it when
// config.Append is set.
func OpenFile(config Config, reg *metrics.Registry) (*FileSink, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if config.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(config.Path, flags, 0o644)
	if err != nil {
		return nil, errors.StorageError("open", config.Path, err)
	}

	wcfg := writer.DefaultConfig()
	wcfg.BufferSize = config.BatchSize
	if reg != nil {
		label := config.Path
		wcfg.OnFlush = func(n int, d time.Duration) {
			reg.WriterFlushes.WithLabelValues(label).Inc()
			reg.WriterBytesWritten.WithLabelValues(label).Add(float64(n))
			reg.WriterFlushSeconds.WithLabelValues(label).Observe(d.Seconds())
		}
	}

	return &FileSink{
		path: config.Path,
		file: f,
		bw:   writer.NewWithConfig(f, wcfg),
		sync: config.Sync,
	}, nil
}

// Write buffers p, flushing full batches to the file.
func (s *FileSink) Write(p []byte) (int, error) {
	return s.bw.Write(p)
}

// Close flushes the batch buffer, syncs if configured, and closes the file.
// The first failure is returned; the file is closed regardless.
func (s *FileSink) Close() error {
	err := s.bw.Close()
	if err == nil && s.sync {
		err = s.file.Sync()
	}
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Stats returns the batch writer statistics.
func (s *FileSink) Stats() writer.Stats {
	return s.bw.Stats()
}

// Path returns the file path.
func (s *FileSink) Path() string {
	return s.path
}
