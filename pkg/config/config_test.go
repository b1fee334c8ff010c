package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/flowbench/pkg/common/errors"
	"github.com/vnykmshr/flowbench/pkg/sink"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// isolate keeps a config file in the developer's home from leaking in.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ByteSize(1<<20), cfg.Transfer.TargetBytes)
	assert.Equal(t, ByteSize(48*1024), cfg.Transfer.ChannelCapacity)
	assert.Equal(t, ByteSize(4*1024), cfg.Transfer.WriteChunkSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Transfer.ReceiveTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Transfer.ProgressInterval)
	assert.Equal(t, ByteSize(24*1024), cfg.Source.ChunkSize)
	assert.Equal(t, 2*time.Second, cfg.Source.OpenTimeout)
	assert.Equal(t, "https://dl.espressif.com/dl/misc/2MB.bin", cfg.Source.URL)
	assert.Equal(t, sink.KindFile, cfg.Sink.Kind)
	assert.Equal(t, "download.bin", cfg.Sink.Path)
	assert.Equal(t, ByteSize(16*1024), cfg.Sink.BatchSize)
	assert.Equal(t, "table", cfg.Report.Format)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
logging:
  level: debug
  format: json
transfer:
  target_bytes: 2MiB
  channel_capacity: 64 KiB
  write_chunk_size: 8192
  receive_timeout: 50ms
source:
  url: sim://?size=4MiB
  chunk_size: 32KiB
sink:
  kind: block
  path: ""
  name: firmware.bin
  compress: true
report:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ByteSize(2<<20), cfg.Transfer.TargetBytes)
	assert.Equal(t, ByteSize(64*1024), cfg.Transfer.ChannelCapacity)
	assert.Equal(t, ByteSize(8192), cfg.Transfer.WriteChunkSize)
	assert.Equal(t, 50*time.Millisecond, cfg.Transfer.ReceiveTimeout)
	// Keys the file leaves out keep their defaults.
	assert.Equal(t, 250*time.Millisecond, cfg.Transfer.ProgressInterval)
	assert.Equal(t, "sim://?size=4MiB", cfg.Source.URL)
	assert.Equal(t, ByteSize(32*1024), cfg.Source.ChunkSize)
	assert.Equal(t, sink.KindBlock, cfg.Sink.Kind)
	assert.True(t, cfg.Sink.Compress)
	assert.Equal(t, "block://firmware.bin", cfg.SinkLocator())
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "transfer:\n  target_bytes: 2MiB\n")
	t.Setenv("FLOWBENCH_TRANSFER_TARGET_BYTES", "3MiB")
	t.Setenv("FLOWBENCH_SOURCE_READ_TIMEOUT", "750ms")
	t.Setenv("FLOWBENCH_METRICS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ByteSize(3<<20), cfg.Transfer.TargetBytes)
	assert.Equal(t, 750*time.Millisecond, cfg.Source.ReadTimeout)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadDefaultLocation(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "flowbench"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "flowbench", "config.yaml"),
		[]byte("sink:\n  path: /tmp/out.bin\n"), 0o600,
	))

	assert.True(t, DefaultConfigExists())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.bin", cfg.Sink.Path)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flowbench init")
}

func TestLoadMalformed(t *testing.T) {
	isolate(t)

	_, err := Load(writeConfig(t, "transfer: [unclosed\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "transfer:\n  target_bytes: lots\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "transfer:\n  receive_timeout: soon\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero target", func(c *Config) { c.Transfer.TargetBytes = 0 }, "TargetBytes"},
		{"zero capacity", func(c *Config) { c.Transfer.ChannelCapacity = 0 }, "ChannelCapacity"},
		{"zero receive timeout", func(c *Config) { c.Transfer.ReceiveTimeout = 0 }, "ReceiveTimeout"},
		{"write chunk above capacity", func(c *Config) { c.Transfer.WriteChunkSize = 64 * 1024 }, "write_chunk_size"},
		{"read chunk above capacity", func(c *Config) { c.Transfer.ReadChunkSize = 64 * 1024 }, "read_chunk_size"},
		{"source chunk above capacity", func(c *Config) { c.Source.ChunkSize = 64 * 1024 }, "source.chunk_size"},
		{"empty url", func(c *Config) { c.Source.URL = "" }, "URL"},
		{"unknown sink", func(c *Config) { c.Sink.Kind = "tape" }, "Kind"},
		{"file sink without path", func(c *Config) { c.Sink.Path = "" }, "Path"},
		{"bad report format", func(c *Config) { c.Report.Format = "xml" }, "Format"},
		{"redis without addr", func(c *Config) {
			c.Report.Redis.Enabled = true
			c.Report.Redis.Addr = ""
		}, "Addr"},
		{"bad log level", func(c *Config) { c.Logging.Level = "TRACE" }, "Level"},
		{"bad sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "SampleRate"},
		{"cron and every", func(c *Config) {
			c.Schedule.Cron = "@hourly"
			c.Schedule.Every = time.Minute
		}, "schedule"},
	}

	require.NoError(t, Validate(Default()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfiguration)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestReadChunkOverridesSourceChunk(t *testing.T) {
	cfg := Default()
	cfg.Source.ChunkSize = 64 * 1024
	cfg.Transfer.ReadChunkSize = 16 * 1024
	assert.NoError(t, Validate(cfg))
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Transfer.TargetBytes = 100000
	cfg.Source.URL = "s3://bench/2MB.bin"
	cfg.Source.S3.ForcePathStyle = true
	cfg.Schedule.Cron = "*/15 * * * *"
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "channel_capacity: 48KiB")
	assert.Contains(t, string(data), "receive_timeout: 100ms")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Report.Redis.Password = "secret"

	tc := cfg.TransferConfig()
	assert.Equal(t, int64(1<<20), tc.TargetBytes)
	assert.Equal(t, 48*1024, tc.ChannelCapacity)
	assert.Equal(t, cfg.Source.URL, tc.Locator)
	assert.Equal(t, "download.bin", tc.SinkName)
	require.NoError(t, tc.Validate())

	sc := cfg.SourceConfig()
	assert.Equal(t, int64(1<<20), sc.TargetBytes)
	assert.Equal(t, 24*1024, sc.ChunkSize)

	kc := cfg.SinkConfig()
	assert.Equal(t, 16*1024, kc.BatchSize)
	assert.True(t, kc.Sync)

	rc := cfg.RedisConfig()
	assert.Equal(t, "secret", rc.Password)
	assert.Equal(t, int64(1000), rc.MaxEntries)
}

func TestByteSize(t *testing.T) {
	tests := []struct {
		in   string
		want ByteSize
		str  string
	}{
		{"48KiB", 48 * 1024, "48KiB"},
		{"1 MiB", 1 << 20, "1MiB"},
		{"2MB", 2000000, "2000000"},
		{"100000", 100000, "100000"},
		{"1GiB", 1 << 30, "1GiB"},
	}
	for _, tt := range tests {
		got, err := ParseByteSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.str, got.String(), tt.in)
	}

	_, err := ParseByteSize("much")
	assert.Error(t, err)
	assert.Equal(t, "0", ByteSize(0).String())
}
