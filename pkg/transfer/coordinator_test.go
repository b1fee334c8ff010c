package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/flowbench/internal/testutil"
	ferrors "github.com/vnykmshr/flowbench/pkg/common/errors"
	"github.com/vnykmshr/flowbench/pkg/metrics"
	"github.com/vnykmshr/flowbench/pkg/ratelimit/bucket"
	"github.com/vnykmshr/flowbench/pkg/streaming/channel"
	"github.com/vnykmshr/flowbench/pkg/streaming/writer"
)

func testConfig(target int64, capacity, chunk int) Config {
	config := DefaultConfig()
	config.TargetBytes = target
	config.ChannelCapacity = capacity
	config.ReadChunkSize = chunk
	config.WriteChunkSize = min(4096, capacity)
	config.ReceiveTimeout = 10 * time.Millisecond
	config.ProgressInterval = 0
	config.Locator = "test://source"
	config.SinkName = "mock"
	return config
}

func run(t *testing.T, config Config, src Source, snk Sink, opts ...Option) (*Report, error) {
	t.Helper()
	coord, err := New(config, opts...)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	report, err := coord.Run(ctx, src, snk)
	if report == nil {
		t.Fatal("Run returned a nil report")
	}
	return report, err
}

func TestConfigValidate(t *testing.T) {
	valid := testConfig(1024, 512, 256)

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"zero target", func(c *Config) { c.TargetBytes = 0 }, false},
		{"zero capacity", func(c *Config) { c.ChannelCapacity = 0 }, false},
		{"negative read chunk", func(c *Config) { c.ReadChunkSize = -1 }, false},
		{"read chunk above capacity", func(c *Config) { c.ReadChunkSize = 513 }, false},
		{"zero write chunk", func(c *Config) { c.WriteChunkSize = 0 }, false},
		{"write chunk above capacity", func(c *Config) { c.WriteChunkSize = 1024 }, false},
		{"negative send timeout", func(c *Config) { c.SendTimeout = -time.Second }, false},
		{"zero receive timeout", func(c *Config) { c.ReceiveTimeout = 0 }, false},
		{"negative progress", func(c *Config) { c.ProgressInterval = -time.Second }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)

			_, err := New(config)
			if tt.ok {
				testutil.AssertNoError(t, err)
				return
			}
			testutil.AssertError(t, err)
			testutil.AssertEqual(t, ferrors.IsValidationError(err), true)
		})
	}
}

func TestRunScenario(t *testing.T) {
	const target = 1_048_576

	src := testutil.NewPatternSource(target, 4096)
	snk := testutil.NewMockSink()
	config := testConfig(target, 49_152, 0)

	report, err := run(t, config, src, snk)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, report.BytesWritten, int64(target))
	testutil.AssertEqual(t, report.BytesRead, int64(target))
	testutil.AssertEqual(t, report.Complete, true)
	testutil.AssertEqual(t, report.Status(), metrics.StatusComplete)
	testutil.AssertEqual(t, report.Error, "")
	testutil.AssertEqual(t, report.Channel.BytesIn, int64(target))
	testutil.AssertEqual(t, report.Channel.BytesOut, int64(target))
	testutil.AssertEqual(t, report.Channel.PeakQueued <= 49_152, true)
	testutil.AssertEqual(t, len(report.RunID), 36)
	testutil.AssertEqual(t, src.Closed(), true)
	testutil.AssertEqual(t, snk.Closed(), true)

	if !bytes.Equal(snk.Bytes(), testutil.Pattern(target)) {
		t.Fatal("sink content differs from source content")
	}
}

func TestNoLossUnderBackpressure(t *testing.T) {
	const target = 1_048_576

	src := testutil.NewPatternSource(target, 4096)
	snk := testutil.NewMockSink()
	snk.SetWriteDelay(20 * time.Microsecond)

	report, err := run(t, testConfig(target, 4096, 4096), src, snk)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, report.BytesWritten, int64(target))
	testutil.AssertEqual(t, snk.Len(), target)
	testutil.AssertEqual(t, report.Channel.PeakQueued <= 4096, true)
}

func TestTargetTruncatesSource(t *testing.T) {
	src := testutil.NewPatternSource(10_000, 3000)
	snk := testutil.NewMockSink()

	report, err := run(t, testConfig(7000, 4096, 0), src, snk)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, report.BytesRead, int64(7000))
	testutil.AssertEqual(t, report.BytesWritten, int64(7000))
	testutil.AssertEqual(t, src.Delivered(), int64(7000))
	testutil.AssertEqual(t, report.Complete, true)
}

func TestByteOrderAcrossChunkSizes(t *testing.T) {
	const target = 200_003

	tests := []struct {
		capacity   int
		readChunk  int
		writeChunk int
		srcChunks  []int
	}{
		{capacity: 1, readChunk: 1, writeChunk: 1, srcChunks: []int{1}},
		{capacity: 64, readChunk: 64, writeChunk: 13, srcChunks: []int{3, 17, 64}},
		{capacity: 1000, readChunk: 999, writeChunk: 1000, srcChunks: []int{250, 1, 999}},
		{capacity: 4096, readChunk: 1500, writeChunk: 4096, srcChunks: []int{4096}},
		{capacity: 49_152, readChunk: 24_576, writeChunk: 4096, srcChunks: []int{1460, 24_576, 7}},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("cap=%d/read=%d/write=%d", tt.capacity, tt.readChunk, tt.writeChunk)
		t.Run(name, func(t *testing.T) {
			total := int64(target)
			if tt.capacity == 1 {
				total = 5000
			}

			src := testutil.NewPatternSource(total, tt.srcChunks[0])
			src.SetChunkSizes(tt.srcChunks...)
			snk := testutil.NewMockSink()

			config := testConfig(total, tt.capacity, tt.readChunk)
			config.WriteChunkSize = tt.writeChunk

			report, err := run(t, config, src, snk)
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, report.BytesWritten, total)

			if !bytes.Equal(snk.Bytes(), testutil.Pattern(int(total))) {
				t.Fatal("sink content differs from source content")
			}
		})
	}
}

func TestStorageFailureStopsAtBudget(t *testing.T) {
	const (
		target = 1_048_576
		budget = 100_000
	)

	src := testutil.NewPatternSource(target, 4096)
	snk := testutil.NewMockSink()
	snk.FailAfter(budget, nil)

	report, err := run(t, testConfig(target, 4096, 4096), src, snk)
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, ferrors.IsStorage(err), true)
	testutil.AssertEqual(t, errors.Is(err, testutil.ErrInjected), true)

	testutil.AssertEqual(t, report.BytesWritten, int64(budget))
	testutil.AssertEqual(t, snk.Len(), budget)
	testutil.AssertEqual(t, report.Complete, false)
	testutil.AssertEqual(t, report.ProducerErr, nil)
	testutil.AssertEqual(t, report.Status(), metrics.StatusStorageError)
	testutil.AssertEqual(t, src.Closed(), true)
	testutil.AssertEqual(t, snk.Closed(), true)
}

func TestShortWriteIsStorageFailure(t *testing.T) {
	src := testutil.NewPatternSource(8192, 1024)
	snk := testutil.NewMockSink()
	snk.SetShortWrites(1)

	report, err := run(t, testConfig(8192, 4096, 1024), src, snk)
	testutil.AssertEqual(t, ferrors.IsStorage(err), true)
	testutil.AssertEqual(t, errors.Is(err, io.ErrShortWrite), true)
	testutil.AssertEqual(t, report.BytesWritten < 8192, true)
}

func TestSinkCloseFailure(t *testing.T) {
	src := testutil.NewPatternSource(4096, 1024)
	snk := testutil.NewMockSink()
	snk.SetCloseError(errors.New("fsync failed"))

	report, err := run(t, testConfig(4096, 4096, 1024), src, snk)
	testutil.AssertEqual(t, ferrors.IsStorage(err), true)
	testutil.AssertEqual(t, report.BytesWritten, int64(4096))
	testutil.AssertEqual(t, report.Complete, false)
}

func TestBufferedBytesCountAsWritten(t *testing.T) {
	const budget = 20_000

	inner := testutil.NewMockSink()
	inner.FailAfter(budget, nil)
	snk := writer.NewWithConfig(inner, writer.Config{
		BufferSize: 16 * 1024,
		MaxRetries: 0,
		RetryDelay: time.Millisecond,
	})

	src := testutil.NewPatternSource(64*1024, 4096)
	report, err := run(t, testConfig(64*1024, 16*1024, 4096), src, snk)
	testutil.AssertEqual(t, ferrors.IsStorage(err), true)
	testutil.AssertEqual(t, inner.Len(), budget)
	if report.BytesWritten <= int64(inner.Len()) {
		t.Errorf("BytesWritten = %d, want more than the %d persisted bytes", report.BytesWritten, inner.Len())
	}
	testutil.AssertEqual(t, report.BytesWritten, snk.Stats().BytesAccepted)
}

type panickingCloseSink struct {
	*testutil.MockSink
}

func (panickingCloseSink) Close() error { panic("close on a broken store") }

func TestSinkClosePanicIsStorageFailure(t *testing.T) {
	src := testutil.NewPatternSource(8192, 1024)
	snk := panickingCloseSink{testutil.NewMockSink()}

	report, err := run(t, testConfig(8192, 4096, 1024), src, snk)
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, ferrors.IsStorage(err), true)
	testutil.AssertEqual(t, report.BytesWritten, int64(8192))
	testutil.AssertEqual(t, report.Complete, false)
	testutil.AssertEqual(t, report.Status(), metrics.StatusStorageError)
	testutil.AssertEqual(t, src.Closed(), true)
}

func TestTransportFailureDrainsQueuedBytes(t *testing.T) {
	src := testutil.NewPatternSource(1_048_576, 4096)
	src.FailAt(10_000, nil)
	snk := testutil.NewMockSink()

	report, err := run(t, testConfig(1_048_576, 49_152, 4096), src, snk)
	testutil.AssertEqual(t, ferrors.IsTransport(err), true)
	testutil.AssertEqual(t, errors.Is(err, testutil.ErrInjected), true)
	testutil.AssertEqual(t, report.BytesRead, int64(10_000))
	testutil.AssertEqual(t, report.BytesWritten, int64(10_000))
	testutil.AssertEqual(t, report.ConsumerErr, nil)
	testutil.AssertEqual(t, report.Status(), metrics.StatusTransportError)
	testutil.AssertEqual(t, snk.Closed(), true)
}

func TestSourceExhaustedBeforeTarget(t *testing.T) {
	src := testutil.NewPatternSource(5000, 1024)
	snk := testutil.NewMockSink()

	report, err := run(t, testConfig(10_000, 4096, 1024), src, snk)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, report.BytesWritten, int64(5000))
	testutil.AssertEqual(t, report.Complete, false)
	testutil.AssertEqual(t, report.Status(), metrics.StatusIncomplete)
}

// The consumer keeps timing out while the producer stalls between reads and
// must still stop once the producer is done and the channel is drained.
func TestTerminationUnderRepeatedTimeouts(t *testing.T) {
	src := testutil.NewPatternSource(4096, 1024)
	src.SetReadDelay(15 * time.Millisecond)
	snk := testutil.NewMockSink()

	config := testConfig(4096, 4096, 1024)
	config.ReceiveTimeout = time.Millisecond

	report, err := run(t, config, src, snk)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, report.BytesWritten, int64(4096))
	testutil.AssertEqual(t, report.Channel.ReceiveTimeouts > 0, true)
}

type pacedSource struct {
	*testutil.PatternSource
	limiter *bucket.Limiter
}

func (s *pacedSource) Read(p []byte) (int, error) {
	n, err := s.PatternSource.Read(p)
	if n > 0 {
		if werr := s.limiter.WaitN(context.Background(), n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func TestThroughputConvergesToSourceRate(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	const (
		rate   = 2 << 20 // bytes per second
		target = 512 << 10
	)

	limiter, err := bucket.NewWithConfig(bucket.Config{Rate: rate, Burst: 4096, InitialTokens: 0})
	testutil.AssertNoError(t, err)

	src := &pacedSource{PatternSource: testutil.NewPatternSource(target, 4096), limiter: limiter}
	report, err := run(t, testConfig(target, 49_152, 4096), src, testutil.NewMockSink())
	testutil.AssertNoError(t, err)

	ratio := report.Throughput / rate
	if ratio < 0.7 || ratio > 1.1 {
		t.Fatalf("throughput %.0f B/s not within bounds of rate %d B/s", report.Throughput, rate)
	}
}

func TestCancellationStopsProducer(t *testing.T) {
	src := testutil.NewPatternSource(1<<30, 1024)
	src.SetReadDelay(time.Millisecond)
	snk := testutil.NewMockSink()

	coord, err := New(testConfig(1<<30, 4096, 1024))
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	report, err := coord.Run(ctx, src, snk)
	testutil.AssertEqual(t, errors.Is(err, context.DeadlineExceeded), true)
	testutil.AssertEqual(t, report.ConsumerErr, nil)
	testutil.AssertEqual(t, report.BytesWritten, int64(snk.Len()))
	testutil.AssertEqual(t, snk.Closed(), true)
}

type panicSource struct{ reads int }

func (s *panicSource) Read(p []byte) (int, error) {
	s.reads++
	if s.reads > 2 {
		panic("decoder state corrupted")
	}
	return copy(p, testutil.Pattern(len(p))), nil
}

func (s *panicSource) Close() error  { return nil }
func (s *panicSource) ChunkSize() int { return 512 }

func TestProducerPanicStillTerminates(t *testing.T) {
	snk := testutil.NewMockSink()

	report, err := run(t, testConfig(1<<20, 4096, 512), &panicSource{}, snk)
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, report.BytesWritten, int64(1024))
	testutil.AssertEqual(t, snk.Closed(), true)
}

func TestReadChunkFromSource(t *testing.T) {
	coord, err := New(testConfig(100, 4096, 0))
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, coord.readChunkSize(testutil.NewPatternSource(1, 1000), 4096), 1000)
	testutil.AssertEqual(t, coord.readChunkSize(testutil.NewPatternSource(1, 10_000), 4096), 4096)
	testutil.AssertEqual(t, coord.readChunkSize(testutil.NewPatternSource(1, 0), 4096), 4096)
}

func TestProgressSnapshots(t *testing.T) {
	src := testutil.NewPatternSource(64*1024, 1024)
	src.SetReadDelay(time.Millisecond)

	var (
		mu        sync.Mutex
		snapshots []Progress
	)
	config := testConfig(64*1024, 4096, 1024)
	config.ProgressInterval = 5 * time.Millisecond

	_, err := run(t, config, src, testutil.NewMockSink(), WithProgress(func(p Progress) {
		mu.Lock()
		snapshots = append(snapshots, p)
		mu.Unlock()
	}))
	testutil.AssertNoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	if len(snapshots) == 0 {
		t.Fatal("no progress snapshots")
	}
	var last int64
	for _, p := range snapshots {
		testutil.AssertEqual(t, p.TargetBytes, int64(64*1024))
		if p.BytesWritten < last || p.BytesWritten > p.TargetBytes {
			t.Fatalf("bad snapshot %+v after %d", p, last)
		}
		last = p.BytesWritten
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())

	src := testutil.NewPatternSource(32*1024, 4096)
	report, err := run(t, testConfig(32*1024, 4096, 4096), src, testutil.NewMockSink(),
		WithMetrics(reg, "test"), WithRunID("run-42"))
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, report.RunID, "run-42")
	testutil.AssertEqual(t, promtest.ToFloat64(reg.TransferBytesWritten.WithLabelValues("test")), float64(32*1024))
	testutil.AssertEqual(t, promtest.ToFloat64(reg.TransferBytesRead.WithLabelValues("test")), float64(32*1024))
	testutil.AssertEqual(t, promtest.ToFloat64(reg.TransferRuns.WithLabelValues("test", metrics.StatusComplete)), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.ChannelCapacity.WithLabelValues("test")), 4096.0)
}

func TestReportThroughput(t *testing.T) {
	start := time.Unix(0, 0)
	state := NewState(2048)
	state.addRead(2048)
	state.addWritten(2048)
	state.finishProducer(nil)
	state.finishConsumer(nil)

	r := newReport("id", testConfig(2048, 2048, 0), state, channel.Stats{}, start, start.Add(2*time.Second))
	testutil.AssertEqual(t, r.Throughput, 1024.0)
	testutil.AssertEqual(t, r.ThroughputKiBps(), 1.0)
	testutil.AssertEqual(t, r.ElapsedSeconds, 2.0)
	testutil.AssertEqual(t, r.Complete, true)
	testutil.AssertEqual(t, r.Progress().Percent(), 100.0)
}

func TestSetupFailureReport(t *testing.T) {
	config := testConfig(1024, 4096, 512)
	at := time.Now()

	openErr := ferrors.TransportError("open", "http://unreachable", errors.New("connection refused"))
	r := NewSetupFailure("run-1", config, openErr, at)
	testutil.AssertEqual(t, r.Status(), metrics.StatusTransportError)
	testutil.AssertEqual(t, r.Complete, false)
	testutil.AssertEqual(t, r.TargetBytes, int64(1024))
	testutil.AssertEqual(t, r.Error, openErr.Error())

	diskErr := ferrors.StorageError("open", "/readonly/out.bin", errors.New("permission denied"))
	r = NewSetupFailure("run-2", config, diskErr, at)
	testutil.AssertEqual(t, r.Status(), metrics.StatusStorageError)
	testutil.AssertEqual(t, errors.Is(r.Err(), ferrors.ErrStorage), true)
}
