package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vnykmshr/flowbench/pkg/common/errors"
	"github.com/vnykmshr/flowbench/pkg/common/validation"
)

// ByteSource yields the bytes of a remote resource. Read follows io.Reader
// and returns io.EOF at the end of data.
type ByteSource interface {
	Read(p []byte) (int, error)
	Close() error

	// ChunkSize is the read size the source prefers.
	ChunkSize() int
}

// Config describes where and how to read.
type Config struct {
	// URL selects the source: http(s)://, s3://bucket/key or sim://.
	URL string

	// TargetBytes limits how much is requested from the remote end
	// (0 = everything).
	TargetBytes int64

	// ChunkSize is the preferred read size.
	ChunkSize int

	// OpenTimeout bounds connecting and receiving response headers.
	OpenTimeout time.Duration

	// ReadTimeout bounds each Read (0 = no bound).
	ReadTimeout time.Duration

	// InsecureSkipVerify disables TLS certificate checks.
	InsecureSkipVerify bool

	// S3 configures the client used for s3:// URLs.
	S3 S3Config
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		URL:         "https://dl.espressif.com/dl/misc/2MB.bin",
		TargetBytes: 1 << 20,
		ChunkSize:   24 * 1024,
		OpenTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	}
}

// Open opens the source named by config.URL.
func Open(ctx context.Context, config Config) (ByteSource, error) {
	if err := validation.ValidateNotEmpty("source", "URL", config.URL); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("source", "ChunkSize", config.ChunkSize); err != nil {
		return nil, err
	}

	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, errors.NewValidationError("source", "URL", config.URL, err.Error())
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return OpenHTTP(ctx, config)
	case "s3":
		return OpenS3URL(ctx, u, config)
	case "sim":
		return OpenSimulatedURL(ctx, u, config)
	default:
		return nil, errors.NewValidationError("source", "URL", config.URL,
			fmt.Sprintf("unsupported scheme %q", u.Scheme)).
			WithHint("use http, https, s3 or sim")
	}
}
