package services

import (
	"context"
	"io"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/models"
)

// ObjectInfo is what the object store reports about a stored object.
type ObjectInfo struct {
	Location    models.Location
	ContentType string
	Size        int64
}

// ObjectStore is the blob storage the pipeline reads uploads and OCR output from.
// Head and Get return ErrObjectNotFound for a missing object.
type ObjectStore interface {
	Head(ctx context.Context, loc models.Location) (*ObjectInfo, error)
	Get(ctx context.Context, loc models.Location) (io.ReadCloser, error)
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	PresignPut(ctx context.Context, loc models.Location, contentType string, expiry time.Duration) (string, error)
}

// ExtractionRequest asks the OCR service to process one document.
type ExtractionRequest struct {
	DocumentID string
	Source     models.Location
	Output     models.Location
	// IdempotencyToken makes repeated starts for the same document return the same job.
	IdempotencyToken string
}

// JobStatus is the OCR service's view of a job.
type JobStatus struct {
	State models.JobState
	Error string
}

type ExtractionStarter interface {
	StartExtraction(ctx context.Context, req ExtractionRequest) (string, error)
	ExtractionState(ctx context.Context, jobID string) (*JobStatus, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QueryEmbedder also embeds search queries, which some models encode differently.
type QueryEmbedder interface {
	Embedder
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores embedded chunks. Upsert with an existing ChunkID overwrites it.
type VectorIndex interface {
	Upsert(ctx context.Context, chunk *models.IndexedChunk) error
}

type PageCounter interface {
	CountPages(ctx context.Context, r io.ReadSeeker) (int, error)
}

// Limiter decides whether a client may be issued another upload credential.
// A rejected call does not consume quota.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
