// Package storage publishes batch archives to object storage or the local file system.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	docapp "github.com/fichesante/backend/internal/application/document"
	infraconfig "github.com/fichesante/backend/internal/infrastructure/config"
	"github.com/fichesante/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Ensure S3ArchivePublisher implements ArchivePublisher
var _ docapp.ArchivePublisher = (*S3ArchivePublisher)(nil)

const (
	contentTypeZip       = "application/zip"
	defaultPresignExpiry = time.Hour
)

// S3ArchivePublisher uploads batch archives to an S3-compatible bucket and
// hands out presigned download URLs (AWS S3, MinIO, RustFS, etc.)
type S3ArchivePublisher struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	prefix        string
	urlExpiry     time.Duration
	clock         func() time.Time
	logger        *zap.Logger
}

// S3PublisherOption is a functional option for configuring S3ArchivePublisher
type S3PublisherOption func(*S3ArchivePublisher)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3PublisherOption {
	return func(s *S3ArchivePublisher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithURLExpiry sets the lifetime of presigned download URLs
func WithURLExpiry(d time.Duration) S3PublisherOption {
	return func(s *S3ArchivePublisher) {
		if d > 0 {
			s.urlExpiry = d
		}
	}
}

// WithClock sets the clock used to date object keys
func WithClock(clock func() time.Time) S3PublisherOption {
	return func(s *S3ArchivePublisher) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewS3ArchivePublisher creates a publisher from configuration.
// Static credentials are used when an access key is configured, otherwise
// the default AWS credential chain applies.
func NewS3ArchivePublisher(cfg *infraconfig.StorageConfig, opts ...S3PublisherOption) (*S3ArchivePublisher, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey == "" {
		return nil, errors.New("storage secret access key is required with an access key id")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	p := &S3ArchivePublisher{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		urlExpiry:     defaultPresignExpiry,
		clock:         time.Now,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// normalizeEndpoint adds the scheme to a custom endpoint; empty means AWS itself
func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3ArchivePublisher) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Ignore "BucketAlreadyOwnedByYou" error (race condition)
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Publish uploads the archive and returns a presigned download URL
func (s *S3ArchivePublisher) Publish(ctx context.Context, upload *docapp.ArchiveUpload) (_ *docapp.PublishedArchive, err error) {
	ctx, span := telemetry.StartSpan(ctx, "archive.publish", telemetry.AttrStorageBackend.String("s3"))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := validateUpload(upload); err != nil {
		return nil, err
	}
	span.SetAttributes(telemetry.AttrArchiveSize.Int(len(upload.Data)))
	key := s.objectKey(upload)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(upload.Data),
		ContentLength:      aws.Int64(int64(len(upload.Data))),
		ContentType:        aws.String(contentTypeZip),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", upload.Name)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload archive: %w", err)
	}

	presigned, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to generate download URL: %w", err)
	}

	s.logger.Info("archive published",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", len(upload.Data)))

	return &docapp.PublishedArchive{
		Key:       key,
		URL:       presigned.URL,
		ExpiresAt: s.clock().Add(s.urlExpiry),
		Size:      int64(len(upload.Data)),
	}, nil
}

// objectKey returns {prefix}{yyyy}/{mm}/{job id}/{archive name}
func (s *S3ArchivePublisher) objectKey(upload *docapp.ArchiveUpload) string {
	now := s.clock()
	return s.prefix + path.Join(
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		upload.JobID.String(),
		upload.Name,
	)
}

// GetBucket returns the bucket name
func (s *S3ArchivePublisher) GetBucket() string {
	return s.bucket
}
