// Package metrics provides Prometheus instrumentation for flowbench components.
//
// # Overview
//
// A Registry groups every collector flowbench exports:
//   - Transfer runs (bytes read and written, outcome, duration, throughput)
//   - The byte channel (queued bytes, capacity, backpressure, receive timeouts)
//   - Sink flushes (count, bytes, latency)
//   - Scheduling (runs started and skipped, worker pool activity)
//   - Report publishing
//
// Components take a *Registry and treat nil as "metrics off", so a disabled
// configuration costs nothing:
//
//	reg := metrics.New(metrics.Config{Enabled: cfg.Metrics.Enabled})
//	coord := transfer.New(tcfg, transfer.WithMetrics(reg, "default"))
//
// Expose the default registry over HTTP with promhttp:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # Custom Registry
//
// Tests and embedders use their own Prometheus registry for isolation:
//
//	reg := metrics.NewRegistry(prometheus.NewRegistry())
//
// # Available Metrics
//
//   - flowbench_transfer_bytes_read_total{pipeline}
//   - flowbench_transfer_bytes_written_total{pipeline}
//   - flowbench_transfer_runs_total{pipeline,status}
//   - flowbench_transfer_duration_seconds{pipeline}
//   - flowbench_transfer_throughput_bytes_per_second{pipeline}
//   - flowbench_channel_queued_bytes{pipeline}
//   - flowbench_channel_capacity_bytes{pipeline}
//   - flowbench_channel_backpressure_events_total{pipeline}
//   - flowbench_channel_receive_timeouts_total{pipeline}
//   - flowbench_writer_flushes_total{sink}
//   - flowbench_writer_bytes_written_total{sink}
//   - flowbench_writer_flush_duration_seconds{sink}
//   - flowbench_scheduler_runs_started_total{scheduler_name}
//   - flowbench_scheduler_runs_skipped_total{scheduler_name}
//   - flowbench_workerpool_active_workers{pool_name}
//   - flowbench_workerpool_tasks_completed_total{pool_name}
//   - flowbench_workerpool_tasks_failed_total{pool_name}
//   - flowbench_workerpool_task_duration_seconds{pool_name}
//   - flowbench_report_published_total{publisher,status}
//
// The status label of runs_total is one of complete, incomplete,
// transport_error or storage_error.
package metrics
