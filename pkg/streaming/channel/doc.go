/*
Package channel provides a bounded byte queue connecting one producer and one consumer.

A Channel buffers at most Cap() bytes. A producer that outpaces the consumer
blocks in Send until enough space frees up, so memory use stays fixed no
matter how mismatched the two rates are. The queue is byte-oriented: chunk
boundaries are not kept, only byte order.

Basic Usage:

	ch := channel.New(48 * 1024)

	// Producer
	go func() {
		defer ch.Close()
		for {
			n, err := src.Read(buf)
			if n > 0 {
				if err := ch.Send(ctx, buf[:n]); err != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	// Consumer
	for !ch.Drained() {
		n, err := ch.Receive(chunk, 100*time.Millisecond)
		if n > 0 {
			dst.Write(chunk[:n])
		}
		if err != nil {
			break
		}
	}

Receive Semantics:

Receive waits up to its timeout for at least one byte and returns whatever is
queued, up to len(p). A (0, nil) result means the wait elapsed; callers should
re-check their own termination condition and call again. Once the channel is
closed and empty, Receive returns ErrChannelClosed.

Drained reads "closed" and "empty" under one lock. A consumer that loops until
Drained() cannot exit while bytes remain queued, provided the producer closes
the channel only after its final Send.

Send Semantics:

Send copies data into the queue in one piece, so a chunk larger than the
capacity fails with ErrChunkTooLarge. When Config.SendTimeout is set, a send
that waits that long for space fails with ErrSendTimeout. Cancelling the
context returns ctx.Err(). Closing the channel releases a blocked sender with
ErrChannelClosed, which lets a consumer that can no longer make progress stop
its producer.

Monitoring:

	stats := ch.Stats()
	fmt.Printf("in=%d out=%d peak=%d blocked=%d\n",
		stats.BytesIn, stats.BytesOut, stats.PeakQueued, stats.BlockedSends)

Config.OnBlock and Config.OnReceiveTimeout are called outside the lock and
are the hooks the transfer package uses to feed Prometheus counters.
*/
package channel
