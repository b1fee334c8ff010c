package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/pkg/metrics"
	"github.com/vnykmshr/flowbench/pkg/transfer"
)

// Publisher delivers a finished run report somewhere.
type Publisher interface {
	Publish(ctx context.Context, r *transfer.Report) error
	Name() string
}

// Multi publishes to every publisher and joins their errors. One failing
// publisher does not stop the others.
type Multi struct {
	publishers []Publisher
	metrics    *metrics.Registry
}

// NewMulti creates a Multi. reg may be nil.
func NewMulti(reg *metrics.Registry, publishers ...Publisher) *Multi {
	return &Multi{publishers: publishers, metrics: reg}
}

// Add appends a publisher.
func (m *Multi) Add(p Publisher) {
	m.publishers = append(m.publishers, p)
}

// Len returns the number of publishers.
func (m *Multi) Len() int {
	return len(m.publishers)
}

// Publish implements Publisher.
func (m *Multi) Publish(ctx context.Context, r *transfer.Report) error {
	var errs []error
	for _, p := range m.publishers {
		status := "ok"
		if err := p.Publish(ctx, r); err != nil {
			status = "error"
			logger.WarnCtx(ctx, "publishing report failed", "publisher", p.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
		if m.metrics != nil {
			m.metrics.ReportsPublished.WithLabelValues(p.Name(), status).Inc()
		}
	}
	return errors.Join(errs...)
}

// Name implements Publisher.
func (m *Multi) Name() string { return "multi" }

// LogPublisher writes the report as one structured log line.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(ctx context.Context, r *transfer.Report) error {
	args := []any{
		"run_id", r.RunID,
		"status", r.Status(),
		"target_bytes", r.TargetBytes,
		"bytes_written", r.BytesWritten,
		"elapsed_seconds", r.ElapsedSeconds,
		"throughput_kibps", r.ThroughputKiBps(),
		"peak_queued", r.Channel.PeakQueued,
		"blocked_sends", r.Channel.BlockedSends,
	}
	if r.Error != "" {
		args = append(args, "error", r.Error)
		logger.ErrorCtx(ctx, "benchmark report", args...)
		return nil
	}
	logger.InfoCtx(ctx, "benchmark report", args...)
	return nil
}

// Name implements Publisher.
func (LogPublisher) Name() string { return "log" }

// JSONPublisher writes the report as a JSON document.
type JSONPublisher struct {
	W      io.Writer
	Indent bool
}

// Publish implements Publisher.
func (p JSONPublisher) Publish(_ context.Context, r *transfer.Report) error {
	enc := json.NewEncoder(p.W)
	if p.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(r)
}

// Name implements Publisher.
func (JSONPublisher) Name() string { return "json" }

// FilePublisher writes the JSON report to Path, replacing the previous
// run's report in one rename.
type FilePublisher struct {
	Path string
}

// Publish implements Publisher.
func (p FilePublisher) Publish(_ context.Context, r *transfer.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp, p.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace report: %w", err)
	}
	return nil
}

// Name implements Publisher.
func (FilePublisher) Name() string { return "file" }

// TablePublisher renders the report as a table.
type TablePublisher struct {
	W     io.Writer
	Color bool
}

// Publish implements Publisher.
func (p TablePublisher) Publish(_ context.Context, r *transfer.Report) error {
	return RenderTable(p.W, r, p.Color)
}

// Name implements Publisher.
func (TablePublisher) Name() string { return "table" }
