/*
Package writer provides synchronous batched writing over an io.Writer.

BatchWriter collects small writes in a fixed buffer and hands the
underlying writer full batches, the way a stdio buffer does for a file on
slow flash storage. Writes larger than the buffer go straight through.

# Quick Start

	f, _ := os.Create("download.bin")
	w := writer.NewWithConfig(f, writer.Config{BufferSize: 16 * 1024})

	w.Write(chunk)
	if err := w.Close(); err != nil {
		// the last batch did not reach the file
	}
	f.Close()

# Partial Writes

Write returns the number of bytes accepted, so a caller that counts bytes
never over-reports after a failure. A short write from the underlying
writer without an error is retried for the remainder up to MaxRetries and
then reported as io.ErrShortWrite. Errors are sticky: after a failed flush
every later Write, Flush and Close returns the same error.

# Monitoring

OnFlush fires after each underlying write with its size and duration, and
Stats reports totals:

	stats := w.Stats()
	fmt.Printf("%d bytes in %d flushes (%v)\n",
		stats.BytesWritten, stats.FlushCount, stats.TotalFlushTime)
*/
package writer
