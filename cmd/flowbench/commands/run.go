package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/internal/runner"
	"github.com/vnykmshr/flowbench/pkg/config"
)

// runFlags are command-line overrides applied on top of the loaded config.
type runFlags struct {
	url      string
	target   string
	output   string
	capacity string
	json     bool
	noColor  bool
	metrics  string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "Source URL (http(s)://, s3://bucket/key, sim://?size=2MiB)")
	cmd.Flags().StringVar(&f.target, "target", "", "Bytes to transfer, e.g. 1MiB")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file, or block store directory")
	cmd.Flags().StringVar(&f.capacity, "capacity", "", "Channel capacity, e.g. 48KiB")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable coloured output")
	cmd.Flags().StringVar(&f.metrics, "metrics", "", "Serve Prometheus metrics on this address, e.g. :9090")
}

// apply overrides cfg with the flags that were set and re-validates it.
func (f *runFlags) apply(cfg *config.Config) error {
	if f.url != "" {
		cfg.Source.URL = f.url
	}
	if f.target != "" {
		size, err := config.ParseByteSize(f.target)
		if err != nil {
			return fmt.Errorf("--target: %w", err)
		}
		cfg.Transfer.TargetBytes = size
	}
	if f.output != "" {
		cfg.Sink.Path = f.output
	}
	if f.capacity != "" {
		size, err := config.ParseByteSize(f.capacity)
		if err != nil {
			return fmt.Errorf("--capacity: %w", err)
		}
		cfg.Transfer.ChannelCapacity = size
	}
	if f.json {
		cfg.Report.Format = "json"
	}
	if f.noColor {
		cfg.Report.Color = false
	}
	if f.metrics != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = f.metrics
	}
	return config.Validate(cfg)
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig(path string, flags *runFlags) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := flags.apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRunCmd(configFile func() string) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one benchmark transfer",
		Long: `Download the target number of bytes from the source into the sink and
report the achieved throughput. Exits non-zero when the run fails or ends
before the target.

Examples:
  # Defaults: 1 MiB from the Espressif test file into ./download.bin
  flowbench run

  # Simulated 512 KiB/s link, JSON report
  flowbench run --url 'sim://?size=4MiB&rate=512KiB' --target 2MiB --json

  # Smaller channel, metrics on :9090 while running
  flowbench run --capacity 8KiB --metrics :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile(), flags)
			if err != nil {
				return err
			}
			if err := InitLogger(cfg); err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			stopTelemetry, err := initTelemetry(ctx, cfg)
			if err != nil {
				return err
			}
			defer stopTelemetry()

			ms, err := startMetrics(cfg)
			if err != nil {
				return err
			}
			defer ms.Close()

			r, err := runner.New(cfg,
				runner.WithRegistry(ms.Registry()),
				runner.WithOutput(cmd.OutOrStdout()),
			)
			if err != nil {
				return err
			}
			defer func() {
				if err := r.Close(); err != nil {
					logger.Warn("closing report publishers", "error", err)
				}
			}()

			rep, err := r.Run(ctx)
			if err != nil {
				return err
			}
			if !rep.Complete {
				return fmt.Errorf("run incomplete: wrote %s of %s",
					humanize.IBytes(uint64(rep.BytesWritten)), humanize.IBytes(uint64(rep.TargetBytes)))
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
