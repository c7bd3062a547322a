package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bdougie/framematch/internal/models"
)

// ObjectConfig holds connection details for an S3 compatible store
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// ObjectStorage mirrors saved frames into a bucket, keyed by run
type ObjectStorage struct {
	client *miniogo.Client
	bucket string
	runID  string
}

// NewObjectStorage creates a MinIO client for cfg
func NewObjectStorage(cfg ObjectConfig, run models.RunInfo) (*ObjectStorage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &ObjectStorage{client: client, bucket: cfg.Bucket, runID: run.ID.String()}, nil
}

// EnsureBucket creates the bucket when it does not exist yet
func (s *ObjectStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// ObjectKey returns the key an event's frame is uploaded under
func ObjectKey(runID string, event models.Event) string {
	return path.Join(runID, string(event.Kind), filepath.Base(event.Path))
}

// AddEvent uploads the event's frame. Events without a saved frame are skipped.
func (s *ObjectStorage) AddEvent(ctx context.Context, event models.Event) error {
	if event.Path == "" {
		return nil
	}
	contentType := mime.TypeByExtension(filepath.Ext(event.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.FPutObject(ctx, s.bucket, ObjectKey(s.runID, event), event.Path, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload frame: %w", err)
	}
	return nil
}

// Flush is a no-op; uploads happen immediately
func (s *ObjectStorage) Flush() error {
	return nil
}
