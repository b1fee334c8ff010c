package sink

import (
	"fmt"

	"github.com/vnykmshr/flowbench/pkg/common/errors"
	"github.com/vnykmshr/flowbench/pkg/common/validation"
	"github.com/vnykmshr/flowbench/pkg/metrics"
)

// ByteSink appends bytes to a named persistent stream. Close must flush
// before it reports success.
//
// Write reports bytes accepted, which includes bytes still held in a batch
// buffer or a partial block. If a later flush or commit fails, the accepted
// count is larger than what reached storage; the failure itself is reported
// by that Write or by Close.
type ByteSink interface {
	Write(p []byte) (int, error)
	Close() error
}

// Kinds of sink.
const (
	KindFile  = "file"
	KindBlock = "block"
)

// Config describes where and how to persist.
type Config struct {
	// Kind is "file" or "block".
	Kind string

	// Path is the output file, or the block store directory.
	Path string

	// Name is the stream name inside a block store.
	Name string

	// Append keeps existing file content instead of truncating.
	Append bool

	// BatchSize is the write batch buffer for file sinks and the block
	// size for block sinks.
	BatchSize int

	// Sync calls fsync on Close.
	Sync bool

	// Compress wraps the stream in an lz4 frame.
	Compress bool
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Kind:      KindFile,
		Path:      "download.bin",
		Name:      "download.bin",
		BatchSize: 16 * 1024,
		Sync:      true,
	}
}

// Open opens the sink described by config. reg may be nil.
func Open(config Config, reg *metrics.Registry) (ByteSink, error) {
	if err := validation.ValidateNotEmpty("sink", "Path", config.Path); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("sink", "BatchSize", config.BatchSize); err != nil {
		return nil, err
	}

	var (
		s   ByteSink
		err error
	)
	switch config.Kind {
	case KindFile, "":
		s, err = OpenFile(config, reg)
	case KindBlock:
		s, err = OpenBlock(config)
	default:
		return nil, errors.NewValidationError("sink", "Kind", config.Kind,
			fmt.Sprintf("unsupported kind %q", config.Kind)).
			WithHint("use file or block")
	}
	if err != nil {
		return nil, err
	}

	if config.Compress {
		cs, err := NewCompressed(s)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s = cs
	}
	return s, nil
}
