package source

import (
	"context"
	stderrors "errors"
	"io"
	"net/url"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/vnykmshr/flowbench/pkg/common/errors"
	"github.com/vnykmshr/flowbench/pkg/ratelimit/bucket"
)

// ErrLinkDown is returned by a SimulatedSource configured to fail.
var ErrLinkDown = stderrors.New("simulated link down")

// SimulatedSource generates a deterministic byte pattern, optionally paced
// to a fixed rate. It stands in for a network link in benchmarks and tests.
type SimulatedSource struct {
	ctx       context.Context
	limiter   *bucket.Limiter
	chunkSize int
	size      int64
	failAt    int64

	mu     sync.Mutex
	offset int64
	closed bool
}

// SimulatedConfig configures a SimulatedSource.
type SimulatedConfig struct {
	// Size is the number of bytes before io.EOF.
	Size int64

	// ChunkSize caps each Read.
	ChunkSize int

	// Rate paces delivery in bytes per second (0 = unpaced).
	Rate float64

	// FailAt makes Read fail with ErrLinkDown once this many bytes were
	// delivered (0 = never).
	FailAt int64
}

// NewSimulated creates a SimulatedSource. ctx bounds the pacing waits.
func NewSimulated(ctx context.Context, config SimulatedConfig) (*SimulatedSource, error) {
	if config.Size <= 0 {
		return nil, errors.NewValidationError("source", "size", config.Size, "must be positive")
	}
	if config.ChunkSize <= 0 {
		return nil, errors.NewValidationError("source", "ChunkSize", config.ChunkSize, "must be positive")
	}

	s := &SimulatedSource{
		ctx:       ctx,
		chunkSize: config.ChunkSize,
		size:      config.Size,
		failAt:    config.FailAt,
	}

	if config.Rate > 0 {
		limiter, err := bucket.NewWithConfig(bucket.Config{
			Rate:          bucket.Limit(config.Rate),
			Burst:         config.ChunkSize,
			InitialTokens: 0,
		})
		if err != nil {
			return nil, err
		}
		s.limiter = limiter
	}
	return s, nil
}

// OpenSimulatedURL opens sim://?size=2MiB&rate=512KiB&fail_at=100000.
// size defaults to TargetBytes and rate is in bytes per second.
func OpenSimulatedURL(ctx context.Context, u *url.URL, config Config) (*SimulatedSource, error) {
	q := u.Query()
	sc := SimulatedConfig{
		Size:      config.TargetBytes,
		ChunkSize: config.ChunkSize,
	}

	if v := q.Get("size"); v != "" {
		size, err := humanize.ParseBytes(v)
		if err != nil {
			return nil, errors.NewValidationError("source", "size", v, err.Error())
		}
		sc.Size = int64(size)
	}
	if v := q.Get("rate"); v != "" {
		rate, err := humanize.ParseBytes(v)
		if err != nil {
			return nil, errors.NewValidationError("source", "rate", v, err.Error()).
				WithHint("rate is bytes per second, e.g. 512KiB")
		}
		sc.Rate = float64(rate)
	}
	if v := q.Get("fail_at"); v != "" {
		at, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.NewValidationError("source", "fail_at", v, err.Error())
		}
		sc.FailAt = at
	}

	return NewSimulated(ctx, sc)
}

// Read fills p with the next pattern bytes.
func (s *SimulatedSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.ErrClosed
	}

	limit := s.size
	if s.failAt > 0 && s.failAt < limit {
		limit = s.failAt
	}
	if s.offset >= limit {
		if limit < s.size {
			return 0, ErrLinkDown
		}
		return 0, io.EOF
	}

	n := int(min(int64(min(len(p), s.chunkSize)), limit-s.offset))
	if s.limiter != nil {
		if err := s.limiter.WaitN(s.ctx, n); err != nil {
			return 0, err
		}
	}

	fillPattern(p[:n], s.offset)
	s.offset += int64(n)
	return n, nil
}

// Close stops the source.
func (s *SimulatedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ChunkSize returns the preferred read size.
func (s *SimulatedSource) ChunkSize() int {
	return s.chunkSize
}

// Offset returns the number of bytes delivered.
func (s *SimulatedSource) Offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// fillPattern writes the pattern bytes for stream offset off into p.
func fillPattern(p []byte, off int64) {
	for i := range p {
		x := uint64(off) + uint64(i)
		p[i] = byte(x ^ x>>8 ^ x>>16)
	}
}

// Pattern returns the first n bytes a SimulatedSource produces.
func Pattern(n int) []byte {
	p := make([]byte, n)
	fillPattern(p, 0)
	return p
}
