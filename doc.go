/*
Package flowbench measures end-to-end transfer throughput from a network
source into local storage through a bounded in-memory channel.

A run pairs a producer, which reads from the source, with a consumer, which
writes to the sink. The two stages share only a byte channel of fixed
capacity, so a slow sink stalls the producer instead of growing memory.

Transfer (pkg/transfer):
  - Coordinator: runs both stages and joins them into a Report
  - State: single-writer progress counters and completion flags

Streaming (pkg/streaming):
  - channel: bounded single-producer/single-consumer byte channel
  - writer: batching writer in front of the sink

Endpoints:
  - pkg/source: HTTP(S), S3 and simulated links
  - pkg/sink: files and a badger block store, optionally lz4 framed

Scheduling (pkg/scheduling):
  - workerpool: bounded task execution
  - scheduler: interval and cron runs that skip overlaps

Example usage:

	import (
		"github.com/vnykmshr/flowbench/pkg/sink"
		"github.com/vnykmshr/flowbench/pkg/source"
		"github.com/vnykmshr/flowbench/pkg/transfer"
	)

	src, _ := source.Open(ctx, source.Config{URL: "sim://?rate=1MiB", ChunkSize: 24 * 1024})
	snk, _ := sink.Open(sink.DefaultConfig(), nil)

	coord, _ := transfer.New(transfer.DefaultConfig())
	report, err := coord.Run(ctx, src, snk)

The flowbench command (cmd/flowbench) wraps the same pieces with
configuration, reporting and scheduling.
*/
package flowbench
