package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/pkg/metrics"
	"github.com/vnykmshr/flowbench/pkg/streaming/channel"
	"github.com/vnykmshr/flowbench/pkg/transfer"
)

func sampleReport() *transfer.Report {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &transfer.Report{
		RunID:          "3f2a",
		Source:         "https://dl.espressif.com/dl/misc/2MB.bin",
		Sink:           "download.bin",
		TargetBytes:    1 << 20,
		BytesRead:      1 << 20,
		BytesWritten:   1 << 20,
		Elapsed:        2 * time.Second,
		ElapsedSeconds: 2,
		Throughput:     512 * 1024,
		Complete:       true,
		Channel:        channel.Stats{PeakQueued: 49152, BlockedSends: 7},
		StartedAt:      start,
		FinishedAt:     start.Add(2 * time.Second),
	}
}

func TestJSONPublisher(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONPublisher{W: &buf}.Publish(context.Background(), sampleReport()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "3f2a", doc["run_id"])
	assert.Equal(t, float64(1<<20), doc["bytes_written"])
	assert.Equal(t, 2.0, doc["elapsed_seconds"])
	assert.Equal(t, true, doc["complete"])
	assert.NotContains(t, doc, "error")

	ch, ok := doc["channel"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 49152.0, ch["peak_queued"])
}

func TestFilePublisher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "last.json")
	p := FilePublisher{Path: path}

	require.NoError(t, p.Publish(context.Background(), sampleReport()))
	second := sampleReport()
	second.RunID = "7b1c"
	require.NoError(t, p.Publish(context.Background(), second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "7b1c", doc["run_id"])

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, sampleReport(), false))

	out := buf.String()
	assert.Contains(t, out, "flowbench run 3f2a")
	assert.Contains(t, out, "1.0 MiB")
	assert.Contains(t, out, "512.00 KBps")
	assert.Contains(t, out, "complete")
	assert.NotContains(t, out, "\x1b[")
	assert.NotContains(t, out, "Error")
}

func TestRenderTableFailure(t *testing.T) {
	r := sampleReport()
	r.Complete = false
	r.ConsumerErr = errors.New("disk full")
	r.Error = "disk full"

	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, r, true))
	assert.Contains(t, buf.String(), "storage_error")
	assert.Contains(t, buf.String(), "disk full")
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "INFO", "json")
	t.Cleanup(func() { logger.InitWithWriter(io.Discard, "INFO", "text") })

	require.NoError(t, LogPublisher{}.Publish(context.Background(), sampleReport()))

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "benchmark report", line["msg"])
	assert.Equal(t, "complete", line["status"])
	assert.Equal(t, 512.0, line["throughput_kibps"])
}

type fakeList struct {
	pushed   [][]byte
	trimStop int64
	pushErr  error
}

func (f *fakeList) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "lpush", key)
	if f.pushErr != nil {
		cmd.SetErr(f.pushErr)
		return cmd
	}
	for _, v := range values {
		f.pushed = append([][]byte{v.([]byte)}, f.pushed...)
	}
	cmd.SetVal(int64(len(f.pushed)))
	return cmd
}

func (f *fakeList) LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd {
	f.trimStop = stop
	if int64(len(f.pushed)) > stop+1 {
		f.pushed = f.pushed[:stop+1]
	}
	cmd := redis.NewStatusCmd(ctx, "ltrim", key, start, stop)
	cmd.SetVal("OK")
	return cmd
}

func TestRedisPublisher(t *testing.T) {
	list := &fakeList{}
	p := NewRedisPublisher(list, "", 2)

	for i := 0; i < 3; i++ {
		r := sampleReport()
		r.RunID = string(rune('a' + i))
		require.NoError(t, p.Publish(context.Background(), r))
	}

	require.Len(t, list.pushed, 2)
	assert.Equal(t, int64(1), list.trimStop)

	var newest transfer.Report
	require.NoError(t, json.Unmarshal(list.pushed[0], &newest))
	assert.Equal(t, "c", newest.RunID)
	assert.Equal(t, "redis", p.Name())
	assert.Equal(t, DefaultRedisKey, p.key)
}

func TestRedisPublisherError(t *testing.T) {
	p := NewRedisPublisher(&fakeList{pushErr: errors.New("connection refused")}, "k", 0)
	err := p.Publish(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, *transfer.Report) error { return errors.New("nope") }
func (failingPublisher) Name() string                                    { return "failing" }

func TestMultiPublishesToAll(t *testing.T) {
	logger.InitWithWriter(io.Discard, "INFO", "text")
	reg := metrics.NewRegistry(prometheus.NewRegistry())

	var buf bytes.Buffer
	m := NewMulti(reg, failingPublisher{})
	m.Add(JSONPublisher{W: &buf})
	assert.Equal(t, 2, m.Len())

	err := m.Publish(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing: nope")
	assert.NotEmpty(t, buf.String())

	assert.Equal(t, 1.0, promtest.ToFloat64(reg.ReportsPublished.WithLabelValues("failing", "error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(reg.ReportsPublished.WithLabelValues("json", "ok")))
}
