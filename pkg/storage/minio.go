// Package storage uploads rendered reports to S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

const (
	reportPrefix = "reports"
	contentType  = "image/png"
)

// ErrMissingCredentials is returned when the endpoint or keys are empty
var ErrMissingCredentials = errors.New("storage endpoint, access key and secret key are required")

// Options configures the MinIO client
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

// MinioSink stores reports in a bucket under the reports/ prefix
type MinioSink struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a sink for the bucket in opts. It does not contact the server.
func New(opts Options) (*MinioSink, error) {
	if opts.Endpoint == "" || opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, ErrMissingCredentials
	}
	if opts.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinioSink{client: client, bucket: opts.Bucket, region: opts.Region}, nil
}

// EnsureBucket creates the bucket if it does not exist yet
func (s *MinioSink) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	log.WithField("prefix", "storage").WithField("bucket", s.bucket).Info("bucket created")
	return nil
}

// Save uploads a report as reports/<name>
func (s *MinioSink) Save(ctx context.Context, name string, r io.Reader, size int64) error {
	key := ObjectKey(name)
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}

	log.WithField("prefix", "storage").
		WithField("bucket", s.bucket).
		WithField("key", key).
		WithField("size", info.Size).
		Debug("report stored")
	return nil
}

// Bucket returns the target bucket name
func (s *MinioSink) Bucket() string {
	return s.bucket
}

// ObjectKey maps a report file name to its object key. Directory parts of
// name are dropped.
func ObjectKey(name string) string {
	return path.Join(reportPrefix, path.Base("/"+name))
}
