package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/ledger"
	"github.com/Lllllllleong/documentindexflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaleReaper_Reap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-3 * time.Hour)

	l := ledger.NewMemoryLedger()
	l.Put(models.DocumentRecord{DocumentID: "failed-job", Status: models.StatusExtractionInProgress, ExtractionJobID: "j-failed", UpdatedAt: old})
	l.Put(models.DocumentRecord{DocumentID: "hung-job", Status: models.StatusExtractionInProgress, ExtractionJobID: "j-hung", UpdatedAt: old})
	l.Put(models.DocumentRecord{DocumentID: "done-job", Status: models.StatusExtractionInProgress, ExtractionJobID: "j-done", UpdatedAt: old})
	l.Put(models.DocumentRecord{DocumentID: "fresh-job", Status: models.StatusExtractionInProgress, ExtractionJobID: "j-fresh", UpdatedAt: now.Add(-time.Minute)})
	l.Put(models.DocumentRecord{DocumentID: "never-started", Status: models.StatusExtractionPending, UpdatedAt: old})
	l.Put(models.DocumentRecord{DocumentID: "never-uploaded", Status: models.StatusUploadPending, UpdatedAt: old})

	starter := &fakeStarter{states: map[string]*JobStatus{
		"j-failed": {State: models.JobStateFailed, Error: "Vision API quota exhausted"},
		"j-hung":   {State: models.JobStateActive},
		"j-done":   {State: models.JobStateSucceeded},
	}}

	r := NewStaleReaper(l, starter, ReaperConfig{StaleAfter: 2 * time.Hour})
	r.now = func() time.Time { return now }

	report, err := r.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Examined)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, 1, report.Left)
	assert.Empty(t, report.Errors)

	expect := map[string]models.Status{
		"failed-job":     models.StatusExtractionFailed,
		"hung-job":       models.StatusExtractionFailed,
		"done-job":       models.StatusExtractionInProgress,
		"fresh-job":      models.StatusExtractionInProgress,
		"never-started":  models.StatusExtractionStartFailed,
		"never-uploaded": models.StatusUploadPending,
	}
	for id, want := range expect {
		rec, err := l.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, rec.Status, id)
	}

	rec, _ := l.Get(ctx, "failed-job")
	assert.Contains(t, rec.ErrorMessage, "Vision API quota exhausted")
	rec, _ = l.Get(ctx, "hung-job")
	assert.Equal(t, "extraction did not complete within 2h0m0s", rec.ErrorMessage)
	assert.Equal(t, "j-hung", rec.ExtractionJobID)
}

func TestStaleReaper_JobStateErrorLeavesRecord(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()
	l.Put(models.DocumentRecord{DocumentID: "doc-1", Status: models.StatusExtractionInProgress, ExtractionJobID: "j-1", UpdatedAt: time.Now().Add(-5 * time.Hour)})

	r := NewStaleReaper(l, &fakeStarter{stateErr: errors.New("permission denied")}, ReaperConfig{})
	report, err := r.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Left)
	require.Len(t, report.Errors, 1)

	rec, _ := l.Get(ctx, "doc-1")
	assert.Equal(t, models.StatusExtractionInProgress, rec.Status)
}
