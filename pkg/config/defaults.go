package config

import (
	"time"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/internal/telemetry"
	"github.com/vnykmshr/flowbench/pkg/metrics"
	"github.com/vnykmshr/flowbench/pkg/report"
	"github.com/vnykmshr/flowbench/pkg/sink"
	"github.com/vnykmshr/flowbench/pkg/source"
	"github.com/vnykmshr/flowbench/pkg/transfer"
)

// Default returns the configuration used when nothing overrides it: a
// 1 MiB download through a 48 KiB channel into download.bin.
func Default() *Config {
	tc := transfer.DefaultConfig()
	sc := source.DefaultConfig()
	kc := sink.DefaultConfig()

	tel := telemetry.DefaultConfig()
	tel.Enabled = false

	return &Config{
		Logging: logger.Config{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Telemetry: tel,
		Metrics: MetricsConfig{
			Enabled:   false,
			Addr:      ":9090",
			Namespace: metrics.DefaultNamespace,
		},
		Transfer: TransferConfig{
			TargetBytes:      ByteSize(tc.TargetBytes),
			ChannelCapacity:  ByteSize(tc.ChannelCapacity),
			ReadChunkSize:    ByteSize(tc.ReadChunkSize),
			WriteChunkSize:   ByteSize(tc.WriteChunkSize),
			SendTimeout:      tc.SendTimeout,
			ReceiveTimeout:   tc.ReceiveTimeout,
			ProgressInterval: tc.ProgressInterval,
		},
		Source: SourceConfig{
			URL:         sc.URL,
			ChunkSize:   ByteSize(sc.ChunkSize),
			OpenTimeout: sc.OpenTimeout,
			ReadTimeout: sc.ReadTimeout,
		},
		Sink: SinkConfig{
			Kind:      kc.Kind,
			Path:      kc.Path,
			Name:      kc.Name,
			BatchSize: ByteSize(kc.BatchSize),
			Sync:      kc.Sync,
		},
		Report: ReportConfig{
			Format: "table",
			Color:  true,
			Redis: RedisConfig{
				Addr:       "localhost:6379",
				Key:        report.DefaultRedisKey,
				MaxEntries: 1000,
			},
		},
		Schedule: ScheduleConfig{
			RetryDelay: 5 * time.Second,
		},
	}
}
