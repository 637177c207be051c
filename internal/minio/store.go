// Package minio is an S3-compatible ObjectStore for running the pipeline outside GCP.
package minio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/models"
	"github.com/Lllllllleong/documentindexflow/internal/services"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type ObjectStore struct {
	client *minio.Client
}

// NewClient initializes a MinIO client with static credentials.
func NewClient(config Config) (*minio.Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint must be set")
	}
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client init error: %w", err)
	}
	return client, nil
}

func NewObjectStore(client *minio.Client) *ObjectStore {
	return &ObjectStore{client: client}
}

// EnsureBucket creates bucket if it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("error creating bucket %s: %w", bucket, err)
	}
	slog.Info("Created bucket.", "bucket", bucket)
	return nil
}

func (s *ObjectStore) Head(ctx context.Context, loc models.Location) (*services.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, loc.Bucket, loc.Key, minio.StatObjectOptions{})
	if err != nil {
		return nil, translate(err, loc)
	}
	return &services.ObjectInfo{Location: loc, ContentType: info.ContentType, Size: info.Size}, nil
}

func (s *ObjectStore) Get(ctx context.Context, loc models.Location) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, loc.Bucket, loc.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err, loc)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller starts reading.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, translate(err, loc)
	}
	return obj, nil
}

func (s *ObjectStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s/%s: %w", bucket, prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// PresignPut returns a presigned PUT URL. MinIO presigned PUTs do not bind the content type;
// the trigger checks it on arrival.
func (s *ObjectStore) PresignPut(ctx context.Context, loc models.Location, _ string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, loc.Bucket, loc.Key, expiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign upload for %s/%s: %w", loc.Bucket, loc.Key, err)
	}
	return u.String(), nil
}

func translate(err error, loc models.Location) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s/%s", services.ErrObjectNotFound, loc.Bucket, loc.Key)
	}
	return fmt.Errorf("minio request for %s/%s failed: %w", loc.Bucket, loc.Key, err)
}
