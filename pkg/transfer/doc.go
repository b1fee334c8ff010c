/*
Package transfer runs the two-stage pipeline at the heart of flowbench.

A producer pulls chunks from a Source into a bounded channel while a
consumer drains the channel into a Sink. The two stages run concurrently,
so network reads overlap storage writes, and the channel capacity bounds
memory no matter how far apart their rates are.

Basic Usage:

	coord, err := transfer.New(transfer.Config{
		TargetBytes:     1 << 20,
		ChannelCapacity: 48 * 1024,
		WriteChunkSize:  4 * 1024,
		ReceiveTimeout:  100 * time.Millisecond,
	})
	if err != nil {
		return err
	}

	report, err := coord.Run(ctx, src, snk)
	fmt.Printf("%d bytes at %.1f KiB/s\n", report.BytesWritten, report.ThroughputKiBps())

Lifecycle:

The producer stops when it has read TargetBytes, when the source reports
io.EOF or an error, or when the channel is closed. On every exit path it
publishes its completion flag and closes the channel. The consumer loops
until the channel is closed and empty, so bytes queued before the producer
finished are always written. A sink failure closes the channel early; a
producer blocked on a full channel then stops without error.

Run joins both stages before computing the report, so the counters it
reads are final. A progress ticker only emits snapshots.

Errors:

Source failures surface as errors.TransportError and sink failures as
errors.StorageError from pkg/common/errors. When both stages fail, Run
returns the storage failure. The Report always carries partial counters.

Observability:

WithMetrics records bytes, runs, durations and channel pressure in a
metrics.Registry. Every run opens a "transfer.run" span with one child span
per stage, and log lines carry the run ID and stage name.
*/
package transfer
