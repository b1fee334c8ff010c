package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/dustin/go-humanize"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/internal/telemetry"
	ferrors "github.com/vnykmshr/flowbench/pkg/common/errors"
	"github.com/vnykmshr/flowbench/pkg/streaming/channel"
)

// Source is the pull side of a run. Read follows io.Reader: it may return
// fewer bytes than asked, and io.EOF marks the end of data.
type Source interface {
	io.ReadCloser

	// ChunkSize is the read size the source prefers.
	ChunkSize() int
}

// producer moves bytes from a Source into the channel.
type producer struct {
	src       Source
	ch        *channel.Channel
	state     *State
	chunkSize int
	locator   string
	observer  *observer
}

// run is the producer stage. Every exit path goes through the deferred
// finalizer, which publishes the completion flag and closes the channel so
// the consumer can drain and stop.
func (p *producer) run(ctx context.Context) (err error) {
	ctx = logger.WithStage(ctx, "producer")
	ctx, span := telemetry.StartSpan(ctx, "transfer.producer")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("producer panicked: %v\n%s", r, debug.Stack())
		}

		p.state.finishProducer(err)
		_ = p.ch.Close()
		if cerr := p.closeSource(); cerr != nil {
			logger.WarnCtx(ctx, "closing source failed", "error", cerr)
		}

		read := p.state.BytesRead()
		span.SetAttributes(telemetry.AttrBytesRead.Int64(read))
		telemetry.RecordError(ctx, err)
		span.End()

		if err != nil {
			logger.WarnCtx(ctx, "producer stopped", "bytes_read", read, "error", err)
			return
		}
		logger.InfoCtx(ctx, "producer finished", "bytes_read", read, "size", humanize.IBytes(uint64(read)))
	}()

	buf := make([]byte, p.chunkSize)
	target := p.state.Target()

	for read := int64(0); read < target; {
		if err := ctx.Err(); err != nil {
			return err
		}

		want := min(int64(len(buf)), target-read)
		n, rerr := p.src.Read(buf[:want])
		if n > 0 {
			read += int64(n)
			p.state.addRead(n)
			p.observer.read(n)

			if serr := p.ch.Send(ctx, buf[:n]); serr != nil {
				if errors.Is(serr, channel.ErrChannelClosed) {
					logger.DebugCtx(ctx, "channel closed by consumer")
					return nil
				}
				return serr
			}
		}

		switch {
		case rerr == nil:
		case errors.Is(rerr, io.EOF):
			logger.DebugCtx(ctx, "source exhausted before target", "bytes_read", read, "target", target)
			return nil
		default:
			return ferrors.TransportError("read", p.locator, rerr)
		}
	}
	return nil
}

func (p *producer) closeSource() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source close panicked: %v", r)
		}
	}()
	return p.src.Close()
}
