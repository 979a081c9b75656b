// Package artifact uploads files a job declares (coverage reports, build
// outputs) to an S3-compatible object store after the job succeeds.
package artifact

import (
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"matrixci/internal/storage"
)

// Uploader stores one artifact file and returns the object location.
type Uploader interface {
	Upload(ctx context.Context, runID, jobName, localPath, name string) (string, error)
}

// Config describes the object store connection.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseTLS    bool
	Region    string
}

// ObjectStore uploads artifacts to an S3-compatible bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore connects to the store and makes sure the bucket exists.
func NewObjectStore(ctx context.Context, cfg Config) (*ObjectStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("artifact store requires endpoint and bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseTLS,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connect artifact store: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check artifact bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create artifact bucket: %w", err)
		}
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// Upload stores localPath under <run-id>/<job>/<name> in the bucket.
func (s *ObjectStore) Upload(ctx context.Context, runID, jobName, localPath, name string) (string, error) {
	object := path.Join(runID, storage.Sanitize(jobName), name)
	_, err := s.client.FPutObject(ctx, s.bucket, object, localPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("upload artifact %s: %w", name, err)
	}
	return fmt.Sprintf("%s/%s", s.bucket, object), nil
}
