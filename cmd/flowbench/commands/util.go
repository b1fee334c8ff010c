package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/internal/telemetry"
	"github.com/vnykmshr/flowbench/pkg/config"
	"github.com/vnykmshr/flowbench/pkg/metrics"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initTelemetry starts tracing when enabled. The returned function flushes
// and stops the exporter.
func initTelemetry(ctx context.Context, cfg *config.Config) (func(), error) {
	tc := cfg.Telemetry
	if tc.ServiceVersion == "" || tc.ServiceVersion == "dev" {
		tc.ServiceVersion = Version
	}

	shutdown, err := telemetry.Init(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", tc.Endpoint, "sample_rate", tc.SampleRate)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}, nil
}

// metricsServer exposes a private Prometheus registry over HTTP.
type metricsServer struct {
	registry *metrics.Registry
	server   *http.Server
	addr     string
}

// startMetrics creates the metrics registry and serves it on
// cfg.Metrics.Addr. It returns a nil server when metrics are disabled.
func startMetrics(cfg *config.Config) (*metricsServer, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg := metrics.New(metrics.Config{
		Enabled:   true,
		Registry:  promReg,
		Namespace: cfg.Metrics.Namespace,
	})

	ln, err := net.Listen("tcp", cfg.Metrics.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics on %s: %w", cfg.Metrics.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	ms := &metricsServer{
		registry: reg,
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr:     ln.Addr().String(),
	}
	go func() {
		if err := ms.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("Metrics server listening", "addr", ms.addr)
	return ms, nil
}

// Registry returns the metrics registry, nil when metrics are disabled.
func (m *metricsServer) Registry() *metrics.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Close stops the metrics server.
func (m *metricsServer) Close() {
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.server.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
