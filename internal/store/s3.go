package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds configuration for the S3 sidecar store.
type S3Config struct {
	// Bucket is the S3 bucket holding cached records.
	Bucket string
	// Prefix is prepended to every object key (default: "dicomlens/records").
	Prefix string
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// DefaultS3Config returns the default S3 sidecar configuration.
func DefaultS3Config() S3Config {
	return S3Config{
		Prefix: "dicomlens/records",
		Region: "us-east-1",
	}
}

// S3Store is a sidecar RecordStore backed by an S3 bucket, one object per
// instance record.
type S3Store struct {
	client *s3.Client
	config S3Config
}

// NewS3Store creates a new S3 sidecar store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("store: s3 bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		config: cfg,
	}, nil
}

// NewS3StoreWithClient creates an S3 sidecar store with a pre-configured
// client.
func NewS3StoreWithClient(client *s3.Client, cfg S3Config) *S3Store {
	return &S3Store{client: client, config: cfg}
}

// Get implements RecordStore.
func (s *S3Store) Get(ctx context.Context, instanceID string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(instanceID)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: s3 read failed: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("store: s3 body read failed: %w", err)
	}
	return data, nil
}

// Put implements RecordStore.
func (s *S3Store) Put(ctx context.Context, instanceID string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(instanceID)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("store: s3 write failed: %w", err)
	}
	return nil
}

// Delete implements RecordStore. S3 deletes are idempotent.
func (s *S3Store) Delete(ctx context.Context, instanceID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(instanceID)),
	})
	if err != nil {
		return fmt.Errorf("store: s3 delete failed: %w", err)
	}
	return nil
}

// Exists implements RecordStore using a HEAD request.
func (s *S3Store) Exists(ctx context.Context, instanceID string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(instanceID)),
	})
	if err != nil {
		if isNotFoundHead(err) || isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: s3 existence check failed: %w", err)
	}
	return true, nil
}

// Close implements RecordStore.
func (s *S3Store) Close() error { return nil }

func (s *S3Store) key(instanceID string) string {
	return path.Join(s.config.Prefix, instanceID)
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

func isNotFoundHead(err error) bool {
	var nf *types.NotFound
	return errors.As(err, &nf)
}
