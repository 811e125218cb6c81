// Package s3 implements an S3-backed origin store for rendered artifacts.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/rendercache/rendercache/internal/storage"
)

// Config represents S3 backend configuration.
type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// Backend implements storage.Origin against an S3 bucket.
type Backend struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// New creates an S3 backend. Credentials come from the standard AWS
// resolution chain unless static keys are configured (used for
// S3-compatible endpoints such as MinIO).
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Backend{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger.With("component", "s3-origin", "bucket", cfg.Bucket),
	}, nil
}

// Fetch retrieves an object from the bucket. A missing key maps to
// storage.ErrNotFound; etag and last-modified are passed through.
func (b *Backend) Fetch(ctx context.Context, key string) (*storage.FetchResult, error) {
	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		return nil, b.translateError(err, "GetObject", key)
	}
	defer output.Body.Close()

	content, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body for %s: %w", key, err)
	}

	result := &storage.FetchResult{
		Content:       content,
		ContentType:   aws.ToString(output.ContentType),
		ContentLength: int64(len(content)),
		ETag:          strings.Trim(aws.ToString(output.ETag), `"`),
	}
	if output.LastModified != nil {
		result.LastModified = *output.LastModified
	}

	b.logger.Debug("fetched object", "key", key, "size", result.ContentLength)
	return result, nil
}

// Store uploads an object to the bucket.
func (b *Backend) Store(ctx context.Context, key string, content []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
		Body:   bytes.NewReader(content),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return b.translateError(err, "PutObject", key)
	}

	b.logger.Debug("stored object", "key", key, "size", len(content))
	return nil
}

// Delete removes an object. S3 deletes are idempotent, so a missing key is
// not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		return b.translateError(err, "DeleteObject", key)
	}
	return nil
}

// HealthCheck verifies the bucket is reachable.
func (b *Backend) HealthCheck(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", b.bucket, err)
	}
	return nil
}

func (b *Backend) objectKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + "/" + key
}

func (b *Backend) translateError(err error, operation, key string) error {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &notFound):
		return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	default:
		return fmt.Errorf("%s failed for %s: %w", operation, key, err)
	}
}
