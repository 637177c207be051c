package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/documentindexflow/internal/models"
	"github.com/Lllllllleong/documentindexflow/internal/services"
	"google.golang.org/api/iterator"
)

// ObjectStore serves uploads and OCR output from Cloud Storage.
type ObjectStore struct {
	client *storage.Client
}

func NewObjectStore(client *storage.Client) *ObjectStore {
	return &ObjectStore{client: client}
}

func (s *ObjectStore) object(loc models.Location) *storage.ObjectHandle {
	return s.client.Bucket(loc.Bucket).Object(loc.Key)
}

func (s *ObjectStore) Head(ctx context.Context, loc models.Location) (*services.ObjectInfo, error) {
	attrs, err := s.object(loc).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", services.ErrObjectNotFound, loc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read attributes of %s: %w", loc, err)
	}
	return &services.ObjectInfo{Location: loc, ContentType: attrs.ContentType, Size: attrs.Size}, nil
}

func (s *ObjectStore) Get(ctx context.Context, loc models.Location) (io.ReadCloser, error) {
	r, err := s.object(loc).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", services.ErrObjectNotFound, loc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for %s: %w", loc, err)
	}
	return r, nil
}

func (s *ObjectStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// PresignPut returns a V4 signed URL that accepts exactly one PUT with the given content type.
// Signing uses the ambient service account credentials.
func (s *ObjectStore) PresignPut(_ context.Context, loc models.Location, contentType string, expiry time.Duration) (string, error) {
	url, err := s.client.Bucket(loc.Bucket).SignedURL(loc.Key, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      "PUT",
		ContentType: contentType,
		Expires:     time.Now().Add(expiry),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign upload URL for %s: %w", loc, err)
	}
	return url, nil
}
