/*
Package streaming holds the byte-moving building blocks of a transfer.

  - channel: bounded byte channel with backpressure between one producer and
    one consumer
  - writer: batching writer that turns many small writes into few large ones

Basic usage:

	ch := channel.New(48 * 1024)
	go func() {
		defer ch.Close()
		_ = ch.Send(ctx, chunk)
	}()

	buf := make([]byte, 4096)
	for !ch.Drained() {
		n, err := ch.Receive(buf, 100*time.Millisecond)
		...
	}
*/
package streaming
