package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/henrymedina447/sbs-suptech-etl-v2/config"
	"github.com/henrymedina447/sbs-suptech-etl-v2/retry"
)

type MinioService struct {
	client       *minio.Client
	bucket       string
	sourceBucket string
}

// SourceObject is a stored object found under a source prefix
type SourceObject struct {
	Key  string
	Size int64
}

func NewMinioService(cfg *config.MinioConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioService{
		client:       client,
		bucket:       cfg.Bucket,
		sourceBucket: cfg.SourceBucket,
	}, nil
}

// EnsureBucket creates the text bucket if it doesn't exist
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Save writes data to key in the text bucket
func (s *MinioService) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return classifyMinio("storage.save", fmt.Errorf("failed to upload %s: %w", key, err))
	}
	return nil
}

// ListDocuments returns every object under prefix in the source bucket
func (s *MinioService) ListDocuments(ctx context.Context, prefix string) ([]SourceObject, error) {
	var objects []SourceObject
	for obj := range s.client.ListObjects(ctx, s.sourceBucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, classifyMinio("storage.list", fmt.Errorf("failed to list %s: %w", prefix, obj.Err))
		}
		objects = append(objects, SourceObject{Key: obj.Key, Size: obj.Size})
	}
	return objects, nil
}

// classifyMinio tags S3 error responses so the retry policy can tell
// throttling from permanent failures. Other errors pass through unchanged.
func classifyMinio(op string, err error) error {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return err
	}
	switch resp.Code {
	case "SlowDown", "SlowDownRead", "SlowDownWrite", "RequestLimitExceeded":
		return retry.Throttled(op, err)
	}
	if resp.StatusCode == 0 {
		return retry.Permanent(op, err)
	}
	return retry.FromStatus(op, resp.StatusCode, err)
}
