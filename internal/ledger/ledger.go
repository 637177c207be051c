// Package ledger is the single source of truth for document lifecycle state.
// Every pipeline stage reads and advances DocumentRecords only through a Ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for a document id.
	ErrNotFound = errors.New("document record not found")

	// ErrAlreadyExists is returned by Create when the document id is taken.
	ErrAlreadyExists = errors.New("document record already exists")

	// ErrInvalidTransition is returned when a transition breaks the lifecycle rules.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Ledger persists DocumentRecords and their status transitions.
type Ledger interface {
	Create(ctx context.Context, rec *models.DocumentRecord) error
	Get(ctx context.Context, documentID string) (*models.DocumentRecord, error)
	Transition(ctx context.Context, documentID string, t models.Transition) (*models.DocumentRecord, error)

	// TrackJob writes the secondary ProcessingJob record. It is best-effort:
	// implementations log a failed write and discard it.
	TrackJob(ctx context.Context, job *models.ProcessingJob)

	// ListStale returns records in status whose last transition is older than olderThan.
	ListStale(ctx context.Context, status models.Status, olderThan time.Time, limit int) ([]*models.DocumentRecord, error)

	// Redrive moves an INDEXED or INDEXING_FAILED record back to EXTRACTION_COMPLETED so the
	// change feed runs the indexer again. Operator action only.
	Redrive(ctx context.Context, documentID string) (*models.DocumentRecord, error)
}

// applyTransition validates t against rec and mutates rec in place.
func applyTransition(rec *models.DocumentRecord, t models.Transition, now time.Time) error {
	if !models.CanTransition(rec.Status, t.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, t.To)
	}

	jobID := rec.ExtractionJobID
	if t.ExtractionJobID != "" {
		jobID = t.ExtractionJobID
	}
	if t.To.HasJob() && jobID == "" {
		return fmt.Errorf("%w: %s requires an extraction job id", ErrInvalidTransition, t.To)
	}
	if !t.To.HasJob() && !t.To.IsFailure() && jobID != "" {
		return fmt.Errorf("%w: %s cannot carry an extraction job id", ErrInvalidTransition, t.To)
	}

	rec.Status = t.To
	rec.ExtractionJobID = jobID
	rec.ErrorMessage = t.ErrorMessage
	rec.UpdatedAt = now
	if t.OCROutput != nil {
		rec.OCROutput = *t.OCROutput
	}
	if t.ChunkCount > 0 {
		rec.ChunkCount = t.ChunkCount
	}
	if f := t.Facts; f != nil {
		rec.ContentType = f.ContentType
		rec.FileSize = f.Size
		rec.PageCount = f.PageCount
		if f.Location.Key != "" {
			rec.Location = f.Location
		}
	}
	return nil
}

// applyRedrive validates and applies an operator re-drive.
func applyRedrive(rec *models.DocumentRecord, now time.Time) error {
	if rec.Status != models.StatusIndexed && rec.Status != models.StatusIndexingFailed {
		return fmt.Errorf("%w: cannot redrive from %s", ErrInvalidTransition, rec.Status)
	}
	if rec.ExtractionJobID == "" {
		return fmt.Errorf("%w: record has no extraction output to redrive", ErrInvalidTransition)
	}
	rec.Status = models.StatusExtractionCompleted
	rec.ErrorMessage = ""
	rec.UpdatedAt = now
	return nil
}

func validateNew(rec *models.DocumentRecord) error {
	if rec.DocumentID == "" {
		return fmt.Errorf("document id must be provided")
	}
	if !rec.Status.Valid() || rec.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot create a record in %q", ErrInvalidTransition, rec.Status)
	}
	if rec.Status.HasJob() != (rec.ExtractionJobID != "") {
		return fmt.Errorf("%w: job id does not match status %s", ErrInvalidTransition, rec.Status)
	}
	return nil
}
