package filerepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
)

// nameMetaKey carries the original file name as user metadata.
const nameMetaKey = "Filename"

// S3 stores files as objects in one bucket.
type S3 struct {
	client *minio.Client
	bucket string
	region string
}

// NewS3 creates a client for cfg. Call EnsureBucket before first use.
func NewS3(cfg config.S3Config) (*S3, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}

	// Accept both "host:port" and full URLs.
	endpoint, secure := cfg.Endpoint, cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = secure || u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}
	return &S3{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

// HealthCheck verifies the bucket is reachable.
func (s *S3) HealthCheck(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("s3 health check: %w", err)
	}
	return nil
}

// Put uploads f with its content type and name as object metadata.
func (s *S3) Put(ctx context.Context, key string, f File) error {
	if err := validateKey(key); err != nil {
		return err
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(f.Data), int64(len(f.Data)),
		minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: map[string]string{nameMetaKey: f.Name},
		})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

// Get downloads the object and its metadata.
func (s *S3) Get(ctx context.Context, key string) (File, error) {
	if err := validateKey(key); err != nil {
		return File{}, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return File{}, classify(key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return File{}, classify(key, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return File{}, classify(key, err)
	}
	return File{
		Name:        info.UserMetadata[nameMetaKey],
		ContentType: info.ContentType,
		Data:        data,
	}, nil
}

// Delete removes the object. S3 deletes are idempotent.
func (s *S3) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Exists stats the object.
func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if err := classify(key, err); errors.Is(err, ErrFileNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("checking %s: %w", key, err)
}

func classify(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrFileNotFound, key)
	}
	return fmt.Errorf("reading %s: %w", key, err)
}
