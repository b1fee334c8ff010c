/*
Package sink persists transferred bytes.

A FileSink batches writes through writer.BatchWriter so small chunks reach
the file system in BatchSize pieces, and fsyncs on Close. A BlockSink
splits the stream into fixed-size blocks in a Badger database, the way a
flash block device would, and writes a manifest on Close. Either can be
wrapped in an lz4 frame with Config.Compress.

	snk, err := sink.Open(sink.Config{
		Kind:      sink.KindFile,
		Path:      "download.bin",
		BatchSize: 16 * 1024,
		Sync:      true,
	}, nil)

Every sink must be closed: Close flushes buffered bytes and reports the
first failure.
*/
package sink
