package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig carries the S3-compatible endpoint settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioStore keeps uploaded media in an S3-compatible bucket. References are
// object keys prefixed with the upload date so lifecycle rules can expire
// old media per day.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket makes sure the media bucket exists before first use.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *MinioStore) Store(ctx context.Context, name, contentType string, size int64, payload io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	key := time.Now().UTC().Format("2006/01/02") + "/" + uuid.NewString() + ext
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, key, payload, size, opts); err != nil {
		return "", fmt.Errorf("upload media object: %w", err)
	}
	return key, nil
}

func (s *MinioStore) Resolve(ctx context.Context, fileReference string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, fileReference, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get media object: %w", err)
	}
	return obj, nil
}
