package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/internal/telemetry"
	"github.com/vnykmshr/flowbench/pkg/common/errors"
	"github.com/vnykmshr/flowbench/pkg/common/validation"
	"github.com/vnykmshr/flowbench/pkg/metrics"
	"github.com/vnykmshr/flowbench/pkg/streaming/channel"
)

// Config holds the sizing and timing of a run.
type Config struct {
	// TargetBytes is the number of bytes to move.
	TargetBytes int64

	// ChannelCapacity is the number of bytes buffered between the stages.
	ChannelCapacity int

	// ReadChunkSize caps each source read (0 = the source's preference,
	// clamped to ChannelCapacity).
	ReadChunkSize int

	// WriteChunkSize caps each sink write.
	WriteChunkSize int

	// SendTimeout bounds the producer's wait for space (0 = no bound).
	SendTimeout time.Duration

	// ReceiveTimeout bounds each consumer wait for data.
	ReceiveTimeout time.Duration

	// ProgressInterval is the period of progress snapshots (0 = none).
	ProgressInterval time.Duration

	// Locator and SinkName label errors, logs and reports.
	Locator  string
	SinkName string
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		TargetBytes:      1 << 20,
		ChannelCapacity:  48 * 1024,
		WriteChunkSize:   4 * 1024,
		ReceiveTimeout:   100 * time.Millisecond,
		ProgressInterval: 250 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidatePositive64("transfer", "TargetBytes", c.TargetBytes); err != nil {
		return err
	}
	if err := validation.ValidatePositive("transfer", "ChannelCapacity", c.ChannelCapacity); err != nil {
		return err
	}
	if c.ReadChunkSize < 0 {
		return errors.NewValidationError("transfer", "ReadChunkSize", c.ReadChunkSize, "cannot be negative")
	}
	if err := validation.ValidateAtMost("transfer", "ReadChunkSize", c.ReadChunkSize, c.ChannelCapacity); err != nil {
		return err
	}
	if err := validation.ValidatePositive("transfer", "WriteChunkSize", c.WriteChunkSize); err != nil {
		return err
	}
	if err := validation.ValidateAtMost("transfer", "WriteChunkSize", c.WriteChunkSize, c.ChannelCapacity); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("transfer", "SendTimeout", c.SendTimeout); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDuration("transfer", "ReceiveTimeout", c.ReceiveTimeout); err != nil {
		return err
	}
	return validation.ValidateNonNegativeDuration("transfer", "ProgressInterval", c.ProgressInterval)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records run metrics under the given pipeline label.
func WithMetrics(reg *metrics.Registry, pipeline string) Option {
	return func(c *Coordinator) {
		c.observer = &observer{metrics: reg, pipeline: pipeline}
	}
}

// WithProgress registers fn to receive progress snapshots. fn runs on the
// coordinator goroutine and must not block.
func WithProgress(fn func(Progress)) Option {
	return func(c *Coordinator) {
		c.onProgress = fn
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(c *Coordinator) {
		c.runID = id
	}
}

// Coordinator runs one producer and one consumer over a fresh channel and
// reports the resulting throughput. A Coordinator may run repeatedly but
// never concurrently with itself.
type Coordinator struct {
	config     Config
	observer   *observer
	onProgress func(Progress)
	runID      string
	mu         sync.Mutex
}

// New creates a Coordinator.
func New(config Config, opts ...Option) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{config: config}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the coordinator configuration.
func (c *Coordinator) Config() Config {
	return c.config
}

// Run moves TargetBytes from src to snk and returns the run report. It
// returns only after both stages have finished, and always closes src and
// snk. The error is the storage failure if the consumer failed, otherwise
// the producer's failure; the report is never nil.
func (c *Coordinator) Run(ctx context.Context, src Source, snk Sink) (*Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	runID := c.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	ctx = logger.WithContext(ctx, &logger.LogContext{RunID: runID, Stage: "coordinator"})
	ctx, span := telemetry.StartSpan(ctx, "transfer.run", trace.WithAttributes(
		telemetry.AttrRunID.String(runID),
		telemetry.AttrTargetBytes.Int64(c.config.TargetBytes),
		telemetry.AttrCapacity.Int(c.config.ChannelCapacity),
		telemetry.AttrLocator.String(c.config.Locator),
	))
	defer span.End()

	state := NewState(c.config.TargetBytes)
	ch := channel.NewWithConfig(channel.Config{
		Capacity:         c.config.ChannelCapacity,
		SendTimeout:      c.config.SendTimeout,
		OnBlock:          c.observer.blocked,
		OnReceiveTimeout: c.observer.receiveTimeout,
	})
	c.observer.started(ch.Cap())

	p := &producer{
		src:       src,
		ch:        ch,
		state:     state,
		chunkSize: c.readChunkSize(src, ch.Cap()),
		locator:   c.config.Locator,
		observer:  c.observer,
	}
	cons := &consumer{
		sink:           snk,
		ch:             ch,
		state:          state,
		chunkSize:      c.config.WriteChunkSize,
		receiveTimeout: c.config.ReceiveTimeout,
		name:           c.config.SinkName,
		observer:       c.observer,
	}

	logger.InfoCtx(ctx, "transfer started",
		"target", humanize.IBytes(uint64(c.config.TargetBytes)),
		"capacity", humanize.IBytes(uint64(ch.Cap())),
		"read_chunk", p.chunkSize,
		"write_chunk", cons.chunkSize,
	)

	startedAt := time.Now()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = p.run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = cons.run(ctx)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	c.awaitStages(ctx, done, state, ch, startedAt)
	finishedAt := time.Now()

	report := newReport(runID, c.config, state, ch.Stats(), startedAt, finishedAt)
	c.observer.finished(report)

	span.SetAttributes(
		telemetry.AttrBytesRead.Int64(report.BytesRead),
		telemetry.AttrBytesWritten.Int64(report.BytesWritten),
	)
	err := report.Err()
	telemetry.RecordError(ctx, err)

	logger.InfoCtx(ctx, "transfer finished",
		"bytes_written", report.BytesWritten,
		"elapsed", report.Elapsed,
		"throughput", humanize.IBytes(uint64(report.Throughput))+"/s",
		"status", report.Status(),
	)
	return report, err
}

// awaitStages blocks until done is closed. The ticker only drives progress
// snapshots; completion is decided by the join.
func (c *Coordinator) awaitStages(ctx context.Context, done <-chan struct{}, state *State, ch *channel.Channel, startedAt time.Time) {
	if c.config.ProgressInterval <= 0 {
		<-done
		return
	}

	ticker := time.NewTicker(c.config.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			progress := state.Snapshot()
			progress.Queued = ch.Len()
			progress.Elapsed = time.Since(startedAt)
			c.observer.queued(progress.Queued)

			logger.InfoCtx(ctx, "progress",
				"written", humanize.IBytes(uint64(progress.BytesWritten)),
				"target", humanize.IBytes(uint64(progress.TargetBytes)),
				"percent", int(progress.Percent()),
			)
			if c.onProgress != nil {
				c.onProgress(progress)
			}
		}
	}
}

func (c *Coordinator) readChunkSize(src Source, capacity int) int {
	size := c.config.ReadChunkSize
	if size <= 0 {
		size = src.ChunkSize()
	}
	if size <= 0 || size > capacity {
		size = capacity
	}
	return size
}
