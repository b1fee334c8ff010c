package transfer

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/internal/telemetry"
	ferrors "github.com/vnykmshr/flowbench/pkg/common/errors"
	"github.com/vnykmshr/flowbench/pkg/streaming/channel"
)

// Sink is the storage side of a run. Close must flush before it reports
// success. Bytes a buffering sink has accepted count as written even if a
// later flush fails; the run then ends with a storage error.
type Sink interface {
	io.WriteCloser
}

// consumer moves bytes from the channel into a Sink.
type consumer struct {
	sink           Sink
	ch             *channel.Channel
	state          *State
	chunkSize      int
	receiveTimeout time.Duration
	name           string
	observer       *observer
}

// run is the consumer stage. It stops only once the channel is closed and
// empty, which the producer guarantees on every exit path, or when the sink
// fails.
func (c *consumer) run(ctx context.Context) (err error) {
	ctx = logger.WithStage(ctx, "consumer")
	ctx, span := telemetry.StartSpan(ctx, "transfer.consumer")

	defer func() {
		if r := recover(); r != nil {
			_ = c.ch.Close()
			err = fmt.Errorf("consumer panicked: %v\n%s", r, debug.Stack())
		}

		if cerr := c.closeSink(); cerr != nil && err == nil {
			err = ferrors.StorageError("close", c.name, cerr)
		}
		c.state.finishConsumer(err)

		written := c.state.BytesWritten()
		span.SetAttributes(telemetry.AttrBytesWritten.Int64(written))
		telemetry.RecordError(ctx, err)
		span.End()

		if err != nil {
			logger.ErrorCtx(ctx, "consumer stopped", "bytes_written", written, "error", err)
			return
		}
		logger.InfoCtx(ctx, "consumer finished", "bytes_written", written, "size", humanize.IBytes(uint64(written)))
	}()

	buf := make([]byte, c.chunkSize)
	for !c.ch.Drained() {
		n, _ := c.ch.Receive(buf, c.receiveTimeout)
		if n == 0 {
			continue
		}

		w, werr := c.sink.Write(buf[:n])
		if w > 0 {
			c.state.addWritten(w)
			c.observer.written(w)
		}
		if werr == nil && w < n {
			werr = io.ErrShortWrite
		}
		if werr != nil {
			// Closing unblocks a producer waiting for space; it then sees
			// ErrChannelClosed and stops.
			_ = c.ch.Close()
			return ferrors.StorageError("write", c.name, werr)
		}
	}
	return nil
}

// closeSink closes the sink, turning a panic in Close into an error so the
// completion flag is still published.
func (c *consumer) closeSink() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink close panicked: %v", r)
		}
	}()
	return c.sink.Close()
}
