// Package s3 provides an S3-backed screenshot blob store, compatible with
// MinIO and other S3-style services via endpoint and path-style overrides.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/PantaKoda/shiftsnap/pkg/blob"
	"github.com/PantaKoda/shiftsnap/pkg/metrics"
)

// Config holds configuration for the S3 blob store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// KeyPrefix is prepended to all object keys (e.g., "screenshots/").
	// Should end with "/" if non-empty.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	// AccessKeyID and SecretAccessKey provide static credentials. Leave
	// empty to use the SDK's default chain (env, profile, IAM role).
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`

	// ForcePathStyle forces path-style addressing (required for MinIO and
	// Localstack).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// Store is an S3-backed implementation of blob.Store.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	metrics   metrics.BlobMetrics
}

// Option customizes store construction.
type Option func(*Store)

// WithMetrics attaches a metrics sink. A nil sink disables collection with
// zero overhead.
func WithMetrics(m metrics.BlobMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a blob store with an existing client.
func New(client *s3.Client, config Config, opts ...Option) *Store {
	store := &Store{
		client:    client,
		bucket:    config.Bucket,
		keyPrefix: config.KeyPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// NewFromConfig creates a blob store by building an S3 client from config.
func NewFromConfig(ctx context.Context, config Config, opts ...Option) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error

	if config.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
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

	return New(s3.NewFromConfig(awsCfg, s3Opts...), config, opts...), nil
}

func (s *Store) fullKey(key string) string {
	return s.keyPrefix + key
}

// Put stores the object.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	start := time.Now()
	_, err := s.client.PutObject(ctx, input)
	if m := s.metrics; m != nil {
		m.RecordOperation("put", time.Since(start), err != nil)
		if err == nil {
			m.RecordBytes("put", int64(len(data)))
		}
	}
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// Get returns the object bytes, or blob.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if m := s.metrics; m != nil {
		m.RecordOperation("get", time.Since(start), err != nil && !isNotFoundError(err))
	}
	if err != nil {
		if isNotFoundError(err) {
			return nil, blob.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}
	if m := s.metrics; m != nil {
		m.RecordBytes("get", int64(len(data)))
	}
	return data, nil
}

// Exists reports whether the object is stored.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if m := s.metrics; m != nil {
		m.RecordOperation("exists", time.Since(start), err != nil && !isNotFoundError(err))
	}
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head object: %w", err)
	}
	return true, nil
}

// isNotFoundError checks whether err is an S3 missing-key error.
func isNotFoundError(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
