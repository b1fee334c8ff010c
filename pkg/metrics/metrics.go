package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every flowbench metric.
const DefaultNamespace = "flowbench"

// Run outcomes used as the "status" label of TransferRuns.
const (
	StatusComplete       = "complete"
	StatusIncomplete     = "incomplete"
	StatusTransportError = "transport_error"
	StatusStorageError   = "storage_error"
)

// Registry holds all metric instances for flowbench components.
type Registry struct {
	// Transfer Metrics
	TransferBytesRead    *prometheus.CounterVec
	TransferBytesWritten *prometheus.CounterVec
	TransferRuns         *prometheus.CounterVec
	TransferDuration     *prometheus.HistogramVec
	TransferThroughput   *prometheus.GaugeVec

	// Channel Metrics
	ChannelQueued      *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	BackpressureEvents *prometheus.CounterVec
	ReceiveTimeouts    *prometheus.CounterVec

	// Sink Metrics
	WriterFlushes      *prometheus.CounterVec
	WriterBytesWritten *prometheus.CounterVec
	WriterFlushSeconds *prometheus.HistogramVec

	// Scheduling Metrics
	ScheduledRuns         *prometheus.CounterVec
	SkippedRuns           *prometheus.CounterVec
	WorkerPoolActive      *prometheus.GaugeVec
	TasksCompleted        *prometheus.CounterVec
	TasksFailed           *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec

	// Report Metrics
	ReportsPublished *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by flowbench components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return newRegistry(reg, DefaultNamespace)
}

// New creates a registry from config. It returns nil when metrics are
// disabled; every instrumented component treats a nil registry as a no-op.
func New(config Config) *Registry {
	if !config.Enabled {
		return nil
	}
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	namespace := config.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == prometheus.DefaultRegisterer && namespace == DefaultNamespace {
		return DefaultRegistry
	}
	return newRegistry(reg, namespace)
}

func newRegistry(reg prometheus.Registerer, namespace string) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		TransferBytesRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transfer",
				Name:      "bytes_read_total",
				Help:      "Total bytes pulled from the network source",
			},
			[]string{"pipeline"},
		),

		TransferBytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transfer",
				Name:      "bytes_written_total",
				Help:      "Total bytes appended to storage",
			},
			[]string{"pipeline"},
		),

		TransferRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transfer",
				Name:      "runs_total",
				Help:      "Benchmark runs by outcome",
			},
			[]string{"pipeline", "status"},
		),

		TransferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transfer",
				Name:      "duration_seconds",
				Help:      "Wall time of benchmark runs",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"pipeline"},
		),

		TransferThroughput: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "transfer",
				Name:      "throughput_bytes_per_second",
				Help:      "Throughput of the most recent run",
			},
			[]string{"pipeline"},
		),

		ChannelQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "channel",
				Name:      "queued_bytes",
				Help:      "Bytes currently buffered between producer and consumer",
			},
			[]string{"pipeline"},
		),

		ChannelCapacity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "channel",
				Name:      "capacity_bytes",
				Help:      "Capacity of the byte channel",
			},
			[]string{"pipeline"},
		),

		BackpressureEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "channel",
				Name:      "backpressure_events_total",
				Help:      "Sends that found the channel full and had to wait",
			},
			[]string{"pipeline"},
		),

		ReceiveTimeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "channel",
				Name:      "receive_timeouts_total",
				Help:      "Receives that returned without data",
			},
			[]string{"pipeline"},
		),

		WriterFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "writer",
				Name:      "flushes_total",
				Help:      "Total number of batch flushes to storage",
			},
			[]string{"sink"},
		),

		WriterBytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "writer",
				Name:      "bytes_written_total",
				Help:      "Total bytes flushed to storage",
			},
			[]string{"sink"},
		),

		WriterFlushSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "writer",
				Name:      "flush_duration_seconds",
				Help:      "Time spent in a single flush to storage",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"sink"},
		),

		ScheduledRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "runs_started_total",
				Help:      "Scheduled benchmark runs that started",
			},
			[]string{"scheduler_name"},
		),

		SkippedRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "runs_skipped_total",
				Help:      "Scheduled runs skipped because a run was still in flight",
			},
			[]string{"scheduler_name"},
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "active_workers",
				Help:      "Number of workers executing a task",
			},
			[]string{"pool_name"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "tasks_completed_total",
				Help:      "Total number of tasks completed successfully",
			},
			[]string{"pool_name"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "tasks_failed_total",
				Help:      "Total number of tasks that failed",
			},
			[]string{"pool_name"},
		),

		TaskExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "task_duration_seconds",
				Help:      "Time spent executing tasks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),

		ReportsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "report",
				Name:      "published_total",
				Help:      "Run reports handed to publishers, by outcome",
			},
			[]string{"publisher", "status"},
		),
	}
}
