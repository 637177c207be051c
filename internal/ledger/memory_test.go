package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPending(id string) *models.DocumentRecord {
	return &models.DocumentRecord{
		DocumentID: id,
		Filename:   "report.pdf",
		Location:   models.Location{Bucket: "uploads", Key: "uploads/" + id + "/report.pdf"},
		Status:     models.StatusUploadPending,
	}
}

func TestMemoryLedger_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	require.NoError(t, l.Create(ctx, newPending("doc-1")))

	rec, err := l.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploadPending, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

	err = l.Create(ctx, newPending("doc-1"))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = l.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryLedger_CreateRejectsInconsistentRecords(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	rec := newPending("doc-1")
	rec.Status = models.StatusExtractionInProgress
	assert.ErrorIs(t, l.Create(ctx, rec), ErrInvalidTransition)

	rec = newPending("doc-2")
	rec.Status = models.StatusIndexed
	rec.ExtractionJobID = "job-1"
	assert.ErrorIs(t, l.Create(ctx, rec), ErrInvalidTransition)

	assert.Error(t, l.Create(ctx, newPending("")))
}

func TestMemoryLedger_HappyPath(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	require.NoError(t, l.Create(ctx, newPending("doc-1")))

	rec, err := l.Transition(ctx, "doc-1", models.Transition{
		To:    models.StatusExtractionPending,
		Facts: &models.ObjectFacts{ContentType: "application/pdf", Size: 2048, PageCount: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2048), rec.FileSize)
	assert.Equal(t, 3, rec.PageCount)
	assert.Equal(t, "uploads/doc-1/report.pdf", rec.Location.Key)

	out := models.Location{Bucket: "ocr", Key: "ocr/doc-1/"}
	rec, err = l.Transition(ctx, "doc-1", models.Transition{
		To:              models.StatusExtractionInProgress,
		ExtractionJobID: "job-1",
		OCROutput:       &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", rec.ExtractionJobID)
	assert.Equal(t, out, rec.OCROutput)

	_, err = l.Transition(ctx, "doc-1", models.Transition{To: models.StatusExtractionCompleted})
	require.NoError(t, err)

	rec, err = l.Transition(ctx, "doc-1", models.Transition{To: models.StatusIndexed, ChunkCount: 12})
	require.NoError(t, err)
	assert.Equal(t, models.StatusIndexed, rec.Status)
	assert.Equal(t, 12, rec.ChunkCount)
	assert.Equal(t, "job-1", rec.ExtractionJobID)
}

func TestMemoryLedger_TransitionRules(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	require.NoError(t, l.Create(ctx, newPending("doc-1")))

	_, err := l.Transition(ctx, "doc-1", models.Transition{To: models.StatusExtractionInProgress})
	assert.ErrorIs(t, err, ErrInvalidTransition, "in-progress requires a job id")

	_, err = l.Transition(ctx, "doc-1", models.Transition{To: models.StatusExtractionPending, ExtractionJobID: "job-1"})
	assert.ErrorIs(t, err, ErrInvalidTransition, "pending cannot carry a job id")

	rec, err := l.Transition(ctx, "doc-1", models.Transition{
		To:           models.StatusExtractionStartFailed,
		ErrorMessage: "quota exceeded",
	})
	require.NoError(t, err)
	assert.Equal(t, "quota exceeded", rec.ErrorMessage)

	_, err = l.Transition(ctx, "doc-1", models.Transition{To: models.StatusExtractionPending})
	assert.ErrorIs(t, err, ErrInvalidTransition, "terminal states have no exit")

	_, err = l.Transition(ctx, "missing", models.Transition{To: models.StatusExtractionPending})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryLedger_Redrive(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	l.Put(models.DocumentRecord{DocumentID: "a", Status: models.StatusIndexingFailed, ExtractionJobID: "job-a", ErrorMessage: "boom"})
	l.Put(models.DocumentRecord{DocumentID: "b", Status: models.StatusExtractionFailed, ExtractionJobID: "job-b"})
	l.Put(models.DocumentRecord{DocumentID: "c", Status: models.StatusIndexingFailed})

	rec, err := l.Redrive(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExtractionCompleted, rec.Status)
	assert.Empty(t, rec.ErrorMessage)

	_, err = l.Redrive(ctx, "b")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = l.Redrive(ctx, "c")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMemoryLedger_ListStale(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	l.Put(models.DocumentRecord{DocumentID: "old-2", Status: models.StatusExtractionInProgress, ExtractionJobID: "j2", UpdatedAt: base.Add(-2 * time.Hour)})
	l.Put(models.DocumentRecord{DocumentID: "old-3", Status: models.StatusExtractionInProgress, ExtractionJobID: "j3", UpdatedAt: base.Add(-3 * time.Hour)})
	l.Put(models.DocumentRecord{DocumentID: "fresh", Status: models.StatusExtractionInProgress, ExtractionJobID: "j4", UpdatedAt: base})
	l.Put(models.DocumentRecord{DocumentID: "other", Status: models.StatusExtractionPending, UpdatedAt: base.Add(-5 * time.Hour)})

	recs, err := l.ListStale(ctx, models.StatusExtractionInProgress, base.Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "old-3", recs[0].DocumentID)
	assert.Equal(t, "old-2", recs[1].DocumentID)

	recs, err = l.ListStale(ctx, models.StatusExtractionInProgress, base.Add(-time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestMemoryLedger_TrackJob(t *testing.T) {
	l := NewMemoryLedger()
	l.TrackJob(context.Background(), &models.ProcessingJob{JobID: "job-1", DocumentID: "doc-1"})

	job, ok := l.Job("job-1")
	require.True(t, ok)
	assert.Equal(t, "doc-1", job.DocumentID)
}
