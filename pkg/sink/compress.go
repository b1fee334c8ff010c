package sink

import (
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/vnykmshr/flowbench/pkg/common/errors"
)

// CompressedSink lz4-compresses a stream into another sink. Write counts
// uncompressed bytes, so throughput reflects payload bytes.
type CompressedSink struct {
	inner ByteSink
	zw    *lz4.Writer
}

// NewCompressed wraps inner in an lz4 frame writer using the fast level.
func NewCompressed(inner ByteSink) (*CompressedSink, error) {
	zw := lz4.NewWriter(inner)
	if err := zw.Apply(lz4.CompressionLevelOption(lz4.Fast)); err != nil {
		return nil, errors.StorageError("compress", "lz4", err)
	}
	return &CompressedSink{inner: inner, zw: zw}, nil
}

// Write compresses p into the inner sink.
func (s *CompressedSink) Write(p []byte) (int, error) {
	return s.zw.Write(p)
}

// Close ends the lz4 frame and closes the inner sink.
func (s *CompressedSink) Close() error {
	err := s.zw.Close()
	if cerr := s.inner.Close(); err == nil {
		err = cerr
	}
	return err
}

// NewDecompressReader returns a reader that decodes a stream written by a
// CompressedSink.
func NewDecompressReader(r io.Reader) io.Reader {
	return lz4.NewReader(r)
}
