package photos

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"organograma/internal/platform/config"
	"organograma/pkg/platform/sentinel"
)

// MinIO stores photos in an S3-compatible bucket, created on first use.
type MinIO struct {
	client   *minio.Client
	bucket   string
	baseURL  string
	initOnce sync.Once
	initErr  error
}

func NewMinIO(cfg config.StorageConfig) (*MinIO, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &MinIO{client: client, bucket: bucket, baseURL: cfg.PublicBaseURL}, nil
}

func (s *MinIO) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})
	return s.initErr
}

func (s *MinIO) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put photo: %w", err)
	}
	return publicURL(s.baseURL, key), nil
}

func (s *MinIO) Get(ctx context.Context, key string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("read photo: %w", err)
	}
	info, err := obj.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat photo: %w", err)
	}
	return &Object{Data: data, ContentType: info.ContentType}, nil
}
