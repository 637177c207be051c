package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/ledger"
	"github.com/Lllllllleong/documentindexflow/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const pdfContentType = "application/pdf"

type TriggerConfig struct {
	UploadPrefix    string
	OCROutputBucket string
	OCROutputPrefix string
	MaxObjectBytes  int64
	MaxPages        int
	StartAttempts   int
	StartBaseDelay  time.Duration
	Concurrency     int
}

func (c *TriggerConfig) setDefaults() {
	if c.UploadPrefix == "" {
		c.UploadPrefix = "uploads/"
	}
	if c.OCROutputPrefix == "" {
		c.OCROutputPrefix = "ocr/"
	}
	if c.MaxObjectBytes <= 0 {
		c.MaxObjectBytes = 50 << 20
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 2000
	}
	if c.StartAttempts <= 0 {
		c.StartAttempts = 3
	}
	if c.StartBaseDelay <= 0 {
		c.StartBaseDelay = 300 * time.Millisecond
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 10
	}
}

// IngestionTrigger reacts to new objects: it validates the upload, records it and starts
// the asynchronous OCR job.
type IngestionTrigger struct {
	ledger  ledger.Ledger
	store   ObjectStore
	starter ExtractionStarter
	pages   PageCounter
	config  TriggerConfig
	now     func() time.Time
}

func NewIngestionTrigger(l ledger.Ledger, store ObjectStore, starter ExtractionStarter, pages PageCounter, config TriggerConfig) (*IngestionTrigger, error) {
	if config.OCROutputBucket == "" {
		return nil, fmt.Errorf("OCR output bucket must be set")
	}
	config.setDefaults()
	return &IngestionTrigger{
		ledger:  l,
		store:   store,
		starter: starter,
		pages:   pages,
		config:  config,
		now:     time.Now,
	}, nil
}

// Process handles every notification independently and concurrently. It never fails as a
// whole; per-item failures are reported in the result.
func (t *IngestionTrigger) Process(ctx context.Context, notifications []models.ObjectNotification) BatchResult {
	items := make([]ItemResult, len(notifications))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(t.config.Concurrency)
	for i, n := range notifications {
		eg.Go(func() error {
			items[i] = t.processOne(gctx, n)
			return nil
		})
	}
	_ = eg.Wait()

	res := newBatchResult(items)
	slog.Info("Ingestion batch processed.", "received", len(notifications), "succeeded", res.Succeeded, "skipped", res.Skipped, "failed", res.Failed)
	return res
}

func (t *IngestionTrigger) processOne(ctx context.Context, n models.ObjectNotification) ItemResult {
	logCtx := slog.With("gcsBucket", n.Bucket, "gcsObject", n.Key)
	item := ItemResult{Bucket: n.Bucket, Key: n.Key}

	if reason := structuralProblem(n); reason != "" {
		return skip(logCtx, item, reason)
	}
	loc := models.Location{Bucket: n.Bucket, Key: n.Key}

	facts, reason, err := t.inspect(ctx, loc)
	if err != nil {
		logCtx.Error("Failed to inspect uploaded object.", "error", err)
		item.Outcome, item.Err = OutcomeFailed, err
		return item
	}
	if reason != "" {
		return skip(logCtx, item, reason)
	}

	docID, reason, err := t.resolveDocument(ctx, loc, facts)
	item.DocumentID = docID
	if err != nil {
		logCtx.Error("Failed to record document.", "documentId", docID, "error", err)
		item.Outcome, item.Err = OutcomeFailed, &PersistenceError{Op: "record document", Err: err}
		return item
	}
	if reason != "" {
		return skip(logCtx.With("documentId", docID), item, reason)
	}
	logCtx = logCtx.With("documentId", docID)

	jobID, err := t.startExtraction(ctx, logCtx, docID, loc)
	if err != nil {
		item.Outcome, item.Err = OutcomeFailed, err
		return item
	}

	out := t.outputLocation(docID)
	_, err = t.ledger.Transition(ctx, docID, models.Transition{
		To:              models.StatusExtractionInProgress,
		ExtractionJobID: jobID,
		OCROutput:       &out,
	})
	if errors.Is(err, ledger.ErrInvalidTransition) && t.recordedJob(ctx, docID) == jobID {
		return skip(logCtx, item, fmt.Sprintf("duplicate delivery, job %s is already recorded", jobID))
	}
	if err != nil {
		logCtx.Error("Failed to record accepted extraction job.", "jobId", jobID, "error", err)
		item.Outcome, item.Err = OutcomeFailed, &PersistenceError{Op: "record extraction job", Err: err}
		return item
	}

	t.ledger.TrackJob(ctx, &models.ProcessingJob{
		JobID:      jobID,
		DocumentID: docID,
		Source:     loc,
		OCROutput:  out,
		StartedAt:  t.now().UTC(),
	})

	logCtx.Info("Extraction job started.", "jobId", jobID)
	item.Outcome = OutcomeSucceeded
	return item
}

// recordedJob returns the extraction job id stored on the record, or "" if it can't be read.
func (t *IngestionTrigger) recordedJob(ctx context.Context, docID string) string {
	rec, err := t.ledger.Get(ctx, docID)
	if err != nil {
		return ""
	}
	return rec.ExtractionJobID
}

func skip(logCtx *slog.Logger, item ItemResult, reason string) ItemResult {
	logCtx.Info("Skipping object.", "reason", reason)
	item.Outcome, item.Reason = OutcomeSkipped, reason
	return item
}

// structuralProblem returns why a notification cannot describe an uploaded file, if it can't.
func structuralProblem(n models.ObjectNotification) string {
	switch {
	case n.Bucket == "" || n.Key == "":
		return "notification has no bucket or object name"
	case strings.HasSuffix(n.Key, "/"):
		return "object is a folder placeholder"
	case !isCreationEvent(n.EventType):
		return fmt.Sprintf("event type %q is not an object creation", n.EventType)
	}
	return ""
}

func isCreationEvent(eventType string) bool {
	if eventType == "" {
		return true
	}
	e := strings.ToLower(eventType)
	return strings.Contains(e, "finalize") || strings.Contains(e, "objectcreated")
}

// inspect checks the stored object against the upload rules. A non-empty reason means the
// object should be skipped; an error means the check itself could not run.
func (t *IngestionTrigger) inspect(ctx context.Context, loc models.Location) (*models.ObjectFacts, string, error) {
	info, err := t.store.Head(ctx, loc)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, "object no longer exists", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object metadata: %w", err)
	}

	mediaType, _, _ := strings.Cut(info.ContentType, ";")
	if !strings.EqualFold(strings.TrimSpace(mediaType), pdfContentType) {
		return nil, fmt.Sprintf("content type %q is not %s", info.ContentType, pdfContentType), nil
	}
	if info.Size <= 0 || info.Size > t.config.MaxObjectBytes {
		return nil, fmt.Sprintf("size %d is outside (0, %d]", info.Size, t.config.MaxObjectBytes), nil
	}

	body, err := t.store.Get(ctx, loc)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, "object no longer exists", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open object: %w", err)
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, t.config.MaxObjectBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) > t.config.MaxObjectBytes {
		return nil, fmt.Sprintf("object grew beyond %d bytes", t.config.MaxObjectBytes), nil
	}

	pageCount, err := t.pages.CountPages(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Sprintf("not a readable PDF: %v", err), nil
	}
	if pageCount <= 0 || pageCount > t.config.MaxPages {
		return nil, fmt.Sprintf("page count %d is outside [1, %d]", pageCount, t.config.MaxPages), nil
	}

	return &models.ObjectFacts{
		ContentType: pdfContentType,
		Size:        int64(len(data)),
		PageCount:   pageCount,
		Location:    loc,
	}, "", nil
}

// resolveDocument finds or creates the record for an upload and leaves it in
// EXTRACTION_PENDING. Objects written through an issued credential carry their document id
// in the key, so redelivered notifications land on the same record.
func (t *IngestionTrigger) resolveDocument(ctx context.Context, loc models.Location, facts *models.ObjectFacts) (string, string, error) {
	docID, ok := t.documentIDFromKey(loc.Key)
	if !ok {
		docID = uuid.NewString()
	}

	rec, err := t.ledger.Get(ctx, docID)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return docID, "", t.createPending(ctx, docID, loc, facts)
	case err != nil:
		return docID, "", err
	}

	switch rec.Status {
	case models.StatusUploadPending:
		_, err := t.ledger.Transition(ctx, docID, models.Transition{To: models.StatusExtractionPending, Facts: facts})
		if errors.Is(err, ledger.ErrInvalidTransition) {
			return docID, "record advanced concurrently", nil
		}
		return docID, "", err
	case models.StatusExtractionPending:
		// A previous delivery recorded the document but never got the job accepted.
		return docID, "", nil
	default:
		return docID, fmt.Sprintf("duplicate delivery, document is already %s", rec.Status), nil
	}
}

func (t *IngestionTrigger) createPending(ctx context.Context, docID string, loc models.Location, facts *models.ObjectFacts) error {
	err := t.ledger.Create(ctx, &models.DocumentRecord{
		DocumentID:  docID,
		Filename:    path.Base(loc.Key),
		ContentType: facts.ContentType,
		FileSize:    facts.Size,
		PageCount:   facts.PageCount,
		Location:    loc,
		Status:      models.StatusExtractionPending,
	})
	if errors.Is(err, ledger.ErrAlreadyExists) {
		return nil
	}
	return err
}

// documentIDFromKey extracts <id> from "<UploadPrefix><id>/<name>" when id is a UUID.
func (t *IngestionTrigger) documentIDFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, t.config.UploadPrefix)
	if !ok {
		return "", false
	}
	id, name, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func (t *IngestionTrigger) outputLocation(docID string) models.Location {
	return models.Location{Bucket: t.config.OCROutputBucket, Key: t.config.OCROutputPrefix + docID + "/"}
}

// startExtraction asks the OCR service for a job, retrying with backoff. When every attempt
// fails the document is marked EXTRACTION_START_FAILED.
func (t *IngestionTrigger) startExtraction(ctx context.Context, logCtx *slog.Logger, docID string, loc models.Location) (string, error) {
	req := ExtractionRequest{
		DocumentID:       docID,
		Source:           loc,
		Output:           t.outputLocation(docID),
		IdempotencyToken: docID,
	}

	var jobID string
	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		id, err := t.starter.StartExtraction(ctx, req)
		if err != nil {
			return err
		}
		jobID = id
		return nil
	}, t.config.StartAttempts, t.config.StartBaseDelay)
	if err == nil {
		return jobID, nil
	}

	return "", t.handleError(ctx, logCtx, docID, models.StatusExtractionStartFailed, "failed to start extraction", err)
}

func (t *IngestionTrigger) handleError(ctx context.Context, logCtx *slog.Logger, docID string, status models.Status, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if _, err := t.ledger.Transition(ctx, docID, models.Transition{To: status, ErrorMessage: fullError}); err != nil {
		logCtx.Error("CRITICAL: Failed to mark document as failed after a processing error.", "status", status, "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}
