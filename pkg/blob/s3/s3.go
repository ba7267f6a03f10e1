// Package s3 implements blob.Sink on top of an S3-compatible object store.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/imgforge/internal/logger"
)

// retryConfig bounds the upload retry loop.
type retryConfig struct {
	maxRetries        int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxRetries:        3,
		initialBackoff:    100 * time.Millisecond,
		maxBackoff:        2 * time.Second,
		backoffMultiplier: 2.0,
	}
}

// Metrics receives per-operation observations. Implementations must be
// safe for concurrent use.
type Metrics interface {
	ObserveOperation(op string, duration time.Duration, err error)
	RecordBytesUploaded(bytes int64)
}

// Sink stores optimized artifacts in an S3 bucket.
type Sink struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	retry     retryConfig
	metrics   Metrics
}

// Config describes an S3 sink.
type Config struct {
	// Bucket is the target bucket. Required.
	Bucket string

	// KeyPrefix is prepended to every object key. Optional.
	KeyPrefix string

	// Metrics receives operation timings. Optional.
	Metrics Metrics
}

// NewClientFromConfig builds an S3 client from explicit settings. Endpoint
// may be empty for AWS proper; MinIO and friends need it plus path-style
// addressing.
func NewClientFromConfig(ctx context.Context, endpoint, region, accessKeyID, secretAccessKey string, forcePathStyle bool) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = forcePathStyle
	})

	return client, nil
}

// NewSink creates a Sink and verifies the bucket is reachable.
func NewSink(ctx context.Context, client *s3.Client, cfg Config) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	s := &Sink{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
		retry:     defaultRetryConfig(),
		metrics:   cfg.Metrics,
	}

	if err := s.Ping(ctx); err != nil {
		return nil, fmt.Errorf("cannot access bucket %q: %w", cfg.Bucket, err)
	}

	return s, nil
}

func (s *Sink) objectKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + "/" + key
}

// Put uploads data under key, retrying transient failures with exponential
// backoff.
func (s *Sink) Put(ctx context.Context, key string, data []byte, contentType string) error {
	objKey := s.objectKey(key)
	start := time.Now()

	var err error
	backoff := s.retry.initialBackoff
	for attempt := 1; attempt <= s.retry.maxRetries; attempt++ {
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(objKey),
			Body:          bytes.NewReader(data),
			ContentType:   aws.String(contentType),
			ContentLength: aws.Int64(int64(len(data))),
		})
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}

		logger.Warn("s3 upload failed",
			logger.KeyBucket, s.bucket,
			logger.KeyKey, objKey,
			logger.KeyAttempt, attempt,
			logger.KeyMaxRetries, s.retry.maxRetries,
			logger.KeyError, err)

		if attempt < s.retry.maxRetries {
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * s.retry.backoffMultiplier)
				if backoff > s.retry.maxBackoff {
					backoff = s.retry.maxBackoff
				}
				continue
			}
			break
		}
	}

	s.observe("put", start, err)
	if err != nil {
		return fmt.Errorf("cannot upload %s: %w", objKey, err)
	}
	if s.metrics != nil {
		s.metrics.RecordBytesUploaded(int64(len(data)))
	}

	logger.Debug("s3 upload complete",
		logger.KeyBucket, s.bucket,
		logger.KeyKey, objKey,
		"size", len(data),
		logger.KeyDurationMs, logger.Duration(start))
	return nil
}

// Ping verifies the bucket with a HeadBucket call.
func (s *Sink) Ping(ctx context.Context) error {
	start := time.Now()
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	s.observe("head_bucket", start, err)
	return err
}

// Bucket returns the configured bucket name.
func (s *Sink) Bucket() string {
	return s.bucket
}

func (s *Sink) observe(op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, time.Since(start), err)
	}
}
