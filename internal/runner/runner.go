// Package runner turns a loaded configuration into benchmark runs: it opens
// the source and sink, runs the transfer coordinator and publishes the
// report.
package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/pkg/config"
	"github.com/vnykmshr/flowbench/pkg/metrics"
	"github.com/vnykmshr/flowbench/pkg/report"
	"github.com/vnykmshr/flowbench/pkg/scheduling/workerpool"
	"github.com/vnykmshr/flowbench/pkg/sink"
	"github.com/vnykmshr/flowbench/pkg/source"
	"github.com/vnykmshr/flowbench/pkg/transfer"
)

// DefaultPipeline labels the metrics of runs started by a Runner.
const DefaultPipeline = "default"

// Option configures a Runner.
type Option func(*Runner)

// WithRegistry records metrics for every run.
func WithRegistry(reg *metrics.Registry) Option {
	return func(r *Runner) { r.registry = reg }
}

// WithOutput sets where table and JSON reports are written (default stdout).
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithPublisher adds a publisher next to the configured ones.
func WithPublisher(p report.Publisher) Option {
	return func(r *Runner) { r.extra = append(r.extra, p) }
}

// WithProgress forwards progress snapshots of every run to fn.
func WithProgress(fn func(transfer.Progress)) Option {
	return func(r *Runner) { r.progress = fn }
}

// WithRedisClient publishes to client instead of dialing report.redis.addr.
func WithRedisClient(client report.ListClient) Option {
	return func(r *Runner) { r.redis = client }
}

// WithPipeline sets the pipeline metrics label.
func WithPipeline(name string) Option {
	return func(r *Runner) { r.pipeline = name }
}

// Runner executes benchmark runs for one configuration. Runs must not
// overlap; the scheduler guarantees that for repeated runs.
type Runner struct {
	cfg        *config.Config
	registry   *metrics.Registry
	out        io.Writer
	extra      []report.Publisher
	progress   func(transfer.Progress)
	redis      report.ListClient
	pipeline   string
	publishers *report.Multi
	closers    []io.Closer
}

// New creates a Runner for cfg.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	if err := cfg.TransferConfig().Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:      cfg,
		out:      os.Stdout,
		pipeline: DefaultPipeline,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.publishers = r.buildPublishers()
	return r, nil
}

func (r *Runner) buildPublishers() *report.Multi {
	m := report.NewMulti(r.registry)

	switch r.cfg.Report.Format {
	case "table":
		m.Add(report.TablePublisher{W: r.out, Color: r.cfg.Report.Color})
	case "json":
		m.Add(report.JSONPublisher{W: r.out, Indent: true})
	case "log":
		m.Add(report.LogPublisher{})
	}

	if r.cfg.Report.JSONPath != "" {
		m.Add(report.FilePublisher{Path: r.cfg.Report.JSONPath})
	}

	if r.cfg.Report.Redis.Enabled {
		client := r.redis
		if client == nil {
			c := report.NewRedisClient(r.cfg.RedisConfig())
			r.closers = append(r.closers, c)
			client = c
		}
		m.Add(report.NewRedisPublisher(client, r.cfg.Report.Redis.Key, r.cfg.Report.Redis.MaxEntries))
	}

	for _, p := range r.extra {
		m.Add(p)
	}
	return m
}

// Run performs one transfer and publishes its report. The report is
// returned even when the run failed; a failure to publish it is logged
// but does not fail the run.
func (r *Runner) Run(ctx context.Context) (*transfer.Report, error) {
	runID := uuid.NewString()
	tc := r.cfg.TransferConfig()

	opts := []transfer.Option{transfer.WithRunID(runID)}
	if r.registry != nil {
		opts = append(opts, transfer.WithMetrics(r.registry, r.pipeline))
	}
	if r.progress != nil {
		opts = append(opts, transfer.WithProgress(r.progress))
	}

	coord, err := transfer.New(tc, opts...)
	if err != nil {
		return nil, err
	}

	src, err := source.Open(ctx, r.cfg.SourceConfig())
	if err != nil {
		return r.setupFailed(ctx, runID, tc, err)
	}

	snk, err := sink.Open(r.cfg.SinkConfig(), r.registry)
	if err != nil {
		_ = src.Close()
		return r.setupFailed(ctx, runID, tc, err)
	}

	rep, err := coord.Run(ctx, src, snk)
	if rep != nil {
		_ = r.publishers.Publish(ctx, rep)
	}
	return rep, err
}

func (r *Runner) setupFailed(ctx context.Context, runID string, tc transfer.Config, err error) (*transfer.Report, error) {
	ctx = logger.WithContext(ctx, &logger.LogContext{RunID: runID, Stage: "runner"})
	logger.ErrorCtx(ctx, "run could not start", "source", tc.Locator, "sink", tc.SinkName, "error", err)

	rep := transfer.NewSetupFailure(runID, tc, err, time.Now())
	if r.registry != nil {
		r.registry.TransferRuns.WithLabelValues(r.pipeline, rep.Status()).Inc()
	}
	_ = r.publishers.Publish(ctx, rep)
	return rep, err
}

// Task adapts the runner for the scheduler. The task fails with the run's
// error, or with ErrIncomplete when the source ended before the target.
func (r *Runner) Task() workerpool.Task {
	return workerpool.TaskFunc(func(ctx context.Context) error {
		rep, err := r.Run(ctx)
		if err != nil {
			return err
		}
		if rep != nil && !rep.Complete {
			return ErrIncomplete
		}
		return nil
	})
}

// ErrIncomplete reports a run that ended without error before reaching
// its target, because the source ran out of data.
var ErrIncomplete = errors.New("transfer incomplete: source ended before target")

// Close releases the clients held by the publishers.
func (r *Runner) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}
