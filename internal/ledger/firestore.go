package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/documentindexflow/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig names the collections the ledger writes to.
type FirestoreConfig struct {
	DocumentsCollection string
	JobsCollection      string
}

// FirestoreLedger keeps DocumentRecords in a Firestore collection. Status updates on that
// collection are what drive the extraction indexer through the change feed.
type FirestoreLedger struct {
	client *firestore.Client
	config FirestoreConfig
	now    func() time.Time
}

func NewFirestoreLedger(client *firestore.Client, config FirestoreConfig) *FirestoreLedger {
	if config.DocumentsCollection == "" {
		config.DocumentsCollection = "documents"
	}
	if config.JobsCollection == "" {
		config.JobsCollection = "processing_jobs"
	}
	return &FirestoreLedger{client: client, config: config, now: time.Now}
}

func (l *FirestoreLedger) doc(documentID string) *firestore.DocumentRef {
	return l.client.Collection(l.config.DocumentsCollection).Doc(documentID)
}

func (l *FirestoreLedger) Create(ctx context.Context, rec *models.DocumentRecord) error {
	if err := validateNew(rec); err != nil {
		return err
	}
	now := l.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	if _, err := l.doc(rec.DocumentID).Create(ctx, rec); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, rec.DocumentID)
		}
		return fmt.Errorf("failed to create document record %s: %w", rec.DocumentID, err)
	}
	return nil
}

func (l *FirestoreLedger) Get(ctx context.Context, documentID string) (*models.DocumentRecord, error) {
	snap, err := l.doc(documentID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
		}
		return nil, fmt.Errorf("failed to read document record %s: %w", documentID, err)
	}
	return decodeRecord(snap)
}

// Transition reads and rewrites the record inside one transaction so concurrent
// stages cannot both advance the same record.
func (l *FirestoreLedger) Transition(ctx context.Context, documentID string, t models.Transition) (*models.DocumentRecord, error) {
	return l.update(ctx, documentID, func(rec *models.DocumentRecord, now time.Time) error {
		return applyTransition(rec, t, now)
	})
}

func (l *FirestoreLedger) Redrive(ctx context.Context, documentID string) (*models.DocumentRecord, error) {
	return l.update(ctx, documentID, applyRedrive)
}

func (l *FirestoreLedger) update(ctx context.Context, documentID string, mutate func(*models.DocumentRecord, time.Time) error) (*models.DocumentRecord, error) {
	ref := l.doc(documentID)
	var result *models.DocumentRecord

	err := l.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: %s", ErrNotFound, documentID)
			}
			return err
		}
		rec, err := decodeRecord(snap)
		if err != nil {
			return err
		}
		if err := mutate(rec, l.now().UTC()); err != nil {
			return err
		}
		result = rec
		return tx.Set(ref, rec)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update document record %s: %w", documentID, err)
	}
	return result, nil
}

func (l *FirestoreLedger) TrackJob(ctx context.Context, job *models.ProcessingJob) {
	_, err := l.client.Collection(l.config.JobsCollection).Doc(job.JobID).Set(ctx, job)
	if err != nil {
		slog.Warn("Failed to write processing job record.", "documentId", job.DocumentID, "jobId", job.JobID, "error", err)
	}
}

func (l *FirestoreLedger) ListStale(ctx context.Context, s models.Status, olderThan time.Time, limit int) ([]*models.DocumentRecord, error) {
	q := l.client.Collection(l.config.DocumentsCollection).
		Where("status", "==", string(s)).
		Where("updatedAt", "<", olderThan).
		OrderBy("updatedAt", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	it := q.Documents(ctx)
	defer it.Stop()

	var records []*models.DocumentRecord
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query stale %s records: %w", s, err)
		}
		rec, err := decodeRecord(snap)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(snap *firestore.DocumentSnapshot) (*models.DocumentRecord, error) {
	var rec models.DocumentRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode document record %s: %w", snap.Ref.ID, err)
	}
	if rec.DocumentID == "" {
		rec.DocumentID = snap.Ref.ID
	}
	return &rec, nil
}
