package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vnykmshr/flowbench/internal/logger"
	"github.com/vnykmshr/flowbench/pkg/common/errors"
)

// S3Config holds the S3 client settings.
type S3Config struct {
	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// AccessKeyID and SecretAccessKey set static credentials. When empty
	// the SDK's default chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool
}

// GetObjectAPI is the part of the S3 client a source needs.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3Client builds an S3 client from config.
func NewS3Client(ctx context.Context, config S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if config.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}
	if config.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// S3Source streams an object, or its first TargetBytes, from S3.
type S3Source struct {
	locator   string
	chunkSize int
	body      io.ReadCloser
	size      int64
}

// OpenS3URL parses s3://bucket/key and opens the object with a client
// built from config.S3.
func OpenS3URL(ctx context.Context, u *url.URL, config Config) (*S3Source, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, errors.NewValidationError("source", "URL", config.URL, "expected s3://bucket/key")
	}

	client, err := NewS3Client(ctx, config.S3)
	if err != nil {
		return nil, errors.TransportError("open", config.URL, err)
	}
	return OpenS3(ctx, client, bucket, key, config)
}

// OpenS3 issues a GetObject for bucket/key. When TargetBytes is set only
// that prefix is requested.
func OpenS3(ctx context.Context, api GetObjectAPI, bucket, key string, config Config) (*S3Source, error) {
	locator := "s3://" + bucket + "/" + key

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if config.TargetBytes > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=0-%d", config.TargetBytes-1))
	}

	// No open timeout here: cancelling a request context would also cut
	// the body, so the SDK's own retry and timeout settings apply.
	out, err := api.GetObject(ctx, input)
	if err != nil {
		return nil, errors.TransportError("open", locator, err)
	}

	size := aws.ToInt64(out.ContentLength)
	logger.DebugCtx(ctx, "s3 source opened", "locator", locator, "content_length", size)

	return &S3Source{
		locator:   locator,
		chunkSize: config.ChunkSize,
		body:      out.Body,
		size:      size,
	}, nil
}

// Read reads from the object body.
func (s *S3Source) Read(p []byte) (int, error) {
	return s.body.Read(p)
}

// Close releases the object body.
func (s *S3Source) Close() error {
	return s.body.Close()
}

// ChunkSize returns the preferred read size.
func (s *S3Source) ChunkSize() int {
	return s.chunkSize
}

// Size returns the length of the returned object range.
func (s *S3Source) Size() int64 {
	return s.size
}
