package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/internal/telemetry"
	"github.com/vnykmshr/flowbench/pkg/report"
	"github.com/vnykmshr/flowbench/pkg/sink"
	"github.com/vnykmshr/flowbench/pkg/source"
	"github.com/vnykmshr/flowbench/pkg/transfer"
)

// EnvPrefix prefixes environment overrides, e.g.
// FLOWBENCH_TRANSFER_TARGET_BYTES=2MiB.
const EnvPrefix = "FLOWBENCH"

// Config represents the flowbench configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FLOWBENCH_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing
	Telemetry telemetry.Config `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Transfer sizes the pipeline between source and sink
	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`

	// Source selects where bytes come from
	Source SourceConfig `mapstructure:"source" yaml:"source"`

	// Sink selects where bytes are persisted
	Sink SinkConfig `mapstructure:"sink" yaml:"sink"`

	// Report controls how the run report is published
	Report ReportConfig `mapstructure:"report" yaml:"report"`

	// Schedule controls repeated runs of `flowbench schedule`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Addr is the listen address of the /metrics endpoint
	// Default: ":9090"
	Addr string `mapstructure:"addr" yaml:"addr" validate:"required_if=Enabled true"`

	// Namespace prefixes every metric name
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// TransferConfig sizes the pipeline.
type TransferConfig struct {
	// TargetBytes is how many bytes to move
	// Default: 1MiB
	TargetBytes ByteSize `mapstructure:"target_bytes" yaml:"target_bytes" validate:"gt=0"`

	// ChannelCapacity is the buffer between producer and consumer
	// Default: 48KiB
	ChannelCapacity ByteSize `mapstructure:"channel_capacity" yaml:"channel_capacity" validate:"gt=0"`

	// ReadChunkSize overrides the source's read size (0 = source.chunk_size)
	ReadChunkSize ByteSize `mapstructure:"read_chunk_size" yaml:"read_chunk_size" validate:"gte=0"`

	// WriteChunkSize caps each sink write
	// Default: 4KiB
	WriteChunkSize ByteSize `mapstructure:"write_chunk_size" yaml:"write_chunk_size" validate:"gt=0"`

	// SendTimeout bounds the producer's wait for space (0 = unbounded)
	SendTimeout time.Duration `mapstructure:"send_timeout" yaml:"send_timeout" validate:"gte=0"`

	// ReceiveTimeout bounds each consumer wait
	// Default: 100ms
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout" yaml:"receive_timeout" validate:"gt=0"`

	// ProgressInterval is the period of progress logs (0 = none)
	// Default: 250ms
	ProgressInterval time.Duration `mapstructure:"progress_interval" yaml:"progress_interval" validate:"gte=0"`
}

// SourceConfig selects and tunes the byte source.
type SourceConfig struct {
	// URL is http(s)://..., s3://bucket/key or sim://?size=2MiB&rate=1MiB
	URL string `mapstructure:"url" yaml:"url" validate:"required"`

	// ChunkSize is the preferred read size
	// Default: 24KiB
	ChunkSize ByteSize `mapstructure:"chunk_size" yaml:"chunk_size" validate:"gt=0"`

	// OpenTimeout bounds connecting and receiving headers
	// Default: 2s
	OpenTimeout time.Duration `mapstructure:"open_timeout" yaml:"open_timeout" validate:"gt=0"`

	// ReadTimeout bounds each read (0 = unbounded)
	// Default: 2s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`

	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`

	// S3 configures s3:// sources
	S3 S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config configures the S3 client.
type S3Config struct {
	Region          string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// SinkConfig selects and tunes the byte sink.
type SinkConfig struct {
	// Kind is "file" or "block"
	Kind string `mapstructure:"kind" yaml:"kind" validate:"oneof=file block"`

	// Path is the output file, or the block store directory ("" for block
	// means in-memory)
	Path string `mapstructure:"path" yaml:"path" validate:"required_if=Kind file"`

	// Name is the stream name inside a block store
	Name string `mapstructure:"name" yaml:"name" validate:"required_if=Kind block"`

	Append bool `mapstructure:"append" yaml:"append"`

	// BatchSize is the write buffer (file) or block size (block)
	// Default: 16KiB
	BatchSize ByteSize `mapstructure:"batch_size" yaml:"batch_size" validate:"gt=0"`

	// Sync calls fsync on close
	Sync bool `mapstructure:"sync" yaml:"sync"`

	// Compress stores the stream as an lz4 frame
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// ReportConfig controls report output.
type ReportConfig struct {
	// Format is table, json, log or none
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=table json log none"`

	// Color enables coloured status in the table
	Color bool `mapstructure:"color" yaml:"color"`

	// JSONPath additionally writes the JSON report to a file
	JSONPath string `mapstructure:"json_path" yaml:"json_path,omitempty"`

	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig configures the Redis report publisher.
type RedisConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr       string `mapstructure:"addr" yaml:"addr" validate:"required_if=Enabled true"`
	Password   string `mapstructure:"password" yaml:"password,omitempty"`
	DB         int    `mapstructure:"db" yaml:"db" validate:"gte=0"`
	Key        string `mapstructure:"key" yaml:"key"`
	MaxEntries int64  `mapstructure:"max_entries" yaml:"max_entries" validate:"gte=0"`
}

// ScheduleConfig controls `flowbench schedule`.
type ScheduleConfig struct {
	// Cron is a cron expression ("*/15 * * * *", "@hourly")
	Cron string `mapstructure:"cron" yaml:"cron,omitempty"`

	// Every runs on a fixed interval instead of Cron
	Every time.Duration `mapstructure:"every" yaml:"every,omitempty" validate:"gte=0"`

	// Retries re-runs a failed transfer whose error is transient
	Retries int `mapstructure:"retries" yaml:"retries" validate:"gte=0"`

	// RetryDelay is the first backoff delay, doubled per attempt
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" validate:"gte=0"`
}

// Load loads configuration from defaults, the file at configPath, and
// FLOWBENCH_* environment variables, then validates it.
//
// An empty configPath uses the default location when a file exists there
// and defaults otherwise. An explicit path that does not exist is an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if err := setupViper(v); err != nil {
		return nil, err
	}

	if configPath == "" && DefaultConfigExists() {
		configPath = GetDefaultConfigPath()
	}
	if configPath != "" {
		if err := mergeConfigFile(v, configPath); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may hold S3 and Redis credentials.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper seeds v with the defaults and enables environment overrides.
// Seeding through a YAML document registers every key, which AutomaticEnv
// needs to override values that no file sets.
func setupViper(v *viper.Viper) error {
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("configuration file not found: %s\n\n"+
				"Create one with:\n"+
				"  flowbench init --config %s", path, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/flowbench or ~/.config/flowbench.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "flowbench")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "flowbench")
}

// GetDefaultConfigPath returns the default config file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// TransferConfig returns the coordinator configuration.
func (c *Config) TransferConfig() transfer.Config {
	return transfer.Config{
		TargetBytes:      int64(c.Transfer.TargetBytes),
		ChannelCapacity:  c.Transfer.ChannelCapacity.Int(),
		ReadChunkSize:    c.Transfer.ReadChunkSize.Int(),
		WriteChunkSize:   c.Transfer.WriteChunkSize.Int(),
		SendTimeout:      c.Transfer.SendTimeout,
		ReceiveTimeout:   c.Transfer.ReceiveTimeout,
		ProgressInterval: c.Transfer.ProgressInterval,
		Locator:          c.Source.URL,
		SinkName:         c.SinkLocator(),
	}
}

// SourceConfig returns the source configuration. The source is asked for
// no more than the transfer target.
func (c *Config) SourceConfig() source.Config {
	return source.Config{
		URL:                c.Source.URL,
		TargetBytes:        int64(c.Transfer.TargetBytes),
		ChunkSize:          c.Source.ChunkSize.Int(),
		OpenTimeout:        c.Source.OpenTimeout,
		ReadTimeout:        c.Source.ReadTimeout,
		InsecureSkipVerify: c.Source.InsecureSkipVerify,
		S3: source.S3Config{
			Region:          c.Source.S3.Region,
			Endpoint:        c.Source.S3.Endpoint,
			AccessKeyID:     c.Source.S3.AccessKeyID,
			SecretAccessKey: c.Source.S3.SecretAccessKey,
			ForcePathStyle:  c.Source.S3.ForcePathStyle,
		},
	}
}

// SinkConfig returns the sink configuration.
func (c *Config) SinkConfig() sink.Config {
	return sink.Config{
		Kind:      c.Sink.Kind,
		Path:      c.Sink.Path,
		Name:      c.Sink.Name,
		Append:    c.Sink.Append,
		BatchSize: c.Sink.BatchSize.Int(),
		Sync:      c.Sink.Sync,
		Compress:  c.Sink.Compress,
	}
}

// SinkLocator names the sink in reports: the file path, or the block
// store stream.
func (c *Config) SinkLocator() string {
	if c.Sink.Kind == sink.KindBlock {
		return "block://" + c.Sink.Name
	}
	return c.Sink.Path
}

// RedisConfig returns the Redis publisher configuration.
func (c *Config) RedisConfig() report.RedisConfig {
	return report.RedisConfig{
		Addr:       c.Report.Redis.Addr,
		Password:   c.Report.Redis.Password,
		DB:         c.Report.Redis.DB,
		Key:        c.Report.Redis.Key,
		MaxEntries: c.Report.Redis.MaxEntries,
	}
}
