package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/ledger"
	"github.com/Lllllllleong/documentindexflow/internal/models"
	"github.com/panjf2000/ants/v2"
)

// ErrNotIndexable is returned when a document is not in EXTRACTION_COMPLETED.
var ErrNotIndexable = errors.New("document is not ready for indexing")

type IndexerConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	Concurrency     int
	OCROutputBucket string
	OCROutputPrefix string
}

// ExtractionIndexer turns completed OCR output into embedded chunks in the vector index.
type ExtractionIndexer struct {
	ledger   ledger.Ledger
	reader   *OCRReader
	embedder Embedder
	index    VectorIndex
	config   IndexerConfig
	now      func() time.Time
}

func NewExtractionIndexer(l ledger.Ledger, store ObjectStore, embedder Embedder, index VectorIndex, config IndexerConfig) (*ExtractionIndexer, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkSize <= 0 || config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("%w: chunkSize=%d overlap=%d", ErrInvalidChunking, config.ChunkSize, config.ChunkOverlap)
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.OCROutputPrefix == "" {
		config.OCROutputPrefix = "ocr/"
	}
	return &ExtractionIndexer{
		ledger:   l,
		reader:   NewOCRReader(store),
		embedder: embedder,
		index:    index,
		config:   config,
		now:      time.Now,
	}, nil
}

// ShouldIndex reports whether a change is a real transition into EXTRACTION_COMPLETED.
func ShouldIndex(c models.StatusChange) bool {
	if c.NewStatus != models.StatusExtractionCompleted {
		return false
	}
	switch c.Operation {
	case models.OperationInsert:
		return true
	case models.OperationModify:
		return c.OldStatus != c.NewStatus
	}
	return false
}

// HandleBatch indexes every qualifying change concurrently and returns the joined errors
// of the documents that failed.
func (x *ExtractionIndexer) HandleBatch(ctx context.Context, changes []models.StatusChange) error {
	pool, err := ants.NewPool(x.config.Concurrency)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, c := range changes {
		if !ShouldIndex(c) {
			slog.Debug("Ignoring status change.", "documentId", c.DocumentID, "operation", c.Operation, "oldStatus", c.OldStatus, "newStatus", c.NewStatus)
			continue
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			_, err := x.IndexDocument(ctx, c.DocumentID)
			if err == nil || errors.Is(err, ErrNotIndexable) {
				return
			}
			mu.Lock()
			errs = append(errs, fmt.Errorf("document %s: %w", c.DocumentID, err))
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("document %s: failed to schedule: %w", c.DocumentID, submitErr))
			mu.Unlock()
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

// IndexDocument chunks, embeds and upserts the OCR output of one document and returns the
// number of chunks written. Chunks are embedded one at a time in sequence order.
func (x *ExtractionIndexer) IndexDocument(ctx context.Context, documentID string) (int, error) {
	logCtx := slog.With("documentId", documentID)

	rec, err := x.ledger.Get(ctx, documentID)
	if err != nil {
		logCtx.Error("Failed to load document record.", "error", err)
		return 0, fmt.Errorf("failed to load document record: %w", err)
	}
	if rec.Status != models.StatusExtractionCompleted {
		logCtx.Info("Document is not ready for indexing.", "status", rec.Status)
		return 0, fmt.Errorf("%w: status is %s", ErrNotIndexable, rec.Status)
	}
	logCtx.Info("Starting indexing.", "jobId", rec.ExtractionJobID)

	pages, err := x.reader.ReadPages(ctx, x.ocrLocation(rec))
	if err != nil {
		return 0, x.handleError(ctx, logCtx, documentID, "failed to read OCR output", err)
	}

	chunks, err := ChunkPages(pages, x.config.ChunkSize, x.config.ChunkOverlap)
	if err != nil {
		return 0, x.handleError(ctx, logCtx, documentID, "failed to chunk text", err)
	}
	logCtx.Info("Text chunked.", "pageCount", len(pages), "chunkCount", len(chunks))

	createdAt := x.now().UTC()
	for _, c := range chunks {
		vector, err := x.embedder.Embed(ctx, c.Text)
		if err != nil {
			return 0, x.handleError(ctx, logCtx, documentID, fmt.Sprintf("failed to embed chunk %d", c.SequenceIndex), err)
		}
		err = x.index.Upsert(ctx, &models.IndexedChunk{
			ChunkID:         models.ChunkID(documentID, c.SequenceIndex),
			DocumentID:      documentID,
			Filename:        rec.Filename,
			SequenceIndex:   c.SequenceIndex,
			Content:         c.Text,
			EmbeddingVector: vector,
			PageNumber:      c.PageNumber,
			CreatedAt:       createdAt,
		})
		if err != nil {
			return 0, x.handleError(ctx, logCtx, documentID, fmt.Sprintf("failed to index chunk %d", c.SequenceIndex), err)
		}
	}

	if _, err := x.ledger.Transition(ctx, documentID, models.Transition{To: models.StatusIndexed, ChunkCount: len(chunks)}); err != nil {
		logCtx.Warn("Chunks are indexed but the status update failed.", "error", err)
	}
	logCtx.Info("Indexing complete.", "chunkCount", len(chunks))
	return len(chunks), nil
}

func (x *ExtractionIndexer) ocrLocation(rec *models.DocumentRecord) models.Location {
	if rec.OCROutput.Key != "" {
		return rec.OCROutput
	}
	return models.Location{Bucket: x.config.OCROutputBucket, Key: x.config.OCROutputPrefix + rec.DocumentID + "/"}
}

func (x *ExtractionIndexer) handleError(ctx context.Context, logCtx *slog.Logger, documentID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if _, err := x.ledger.Transition(ctx, documentID, models.Transition{To: models.StatusIndexingFailed, ErrorMessage: fullError}); err != nil {
		logCtx.Error("CRITICAL: Failed to update status to INDEXING_FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}
