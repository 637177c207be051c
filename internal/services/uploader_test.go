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

func newCoordinator(t *testing.T, l ledger.Ledger, store ObjectStore, limiter Limiter) *UploadCoordinator {
	t.Helper()
	u, err := NewUploadCoordinator(l, store, limiter, UploadConfig{UploadBucket: uploadBucket, URLExpiry: 10 * time.Minute})
	require.NoError(t, err)
	u.newID = func() string { return "11111111-2222-3333-4444-555555555555" }
	return u
}

func TestIssueUpload_Success(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()
	store := newFakeStore()
	u := newCoordinator(t, l, store, &fakeLimiter{allow: true})

	grant, err := u.IssueUpload(ctx, UploadRequest{Filename: "Quarterly Report.pdf", ClientID: "10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, "11111111-2222-3333-4444-555555555555", grant.DocumentID)
	assert.Equal(t, "uploads/11111111-2222-3333-4444-555555555555/Quarterly_Report.pdf", grant.ObjectKey)
	assert.Equal(t, 10*time.Minute, grant.ExpiresIn)
	assert.Contains(t, grant.UploadURL, grant.ObjectKey)

	rec, err := u.Status(ctx, grant.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploadPending, rec.Status)
	assert.Equal(t, "Quarterly_Report.pdf", rec.Filename)
	assert.Equal(t, "application/pdf", rec.ContentType)
	assert.Equal(t, models.Location{Bucket: uploadBucket, Key: grant.ObjectKey}, rec.Location)
}

func TestIssueUpload_ValidationErrorsWriteNothing(t *testing.T) {
	tests := []UploadRequest{
		{Filename: "notes.txt"},
		{Filename: "   "},
		{Filename: "report.pdf", ContentType: "image/jpeg"},
	}
	for _, req := range tests {
		l := ledger.NewMemoryLedger()
		store := newFakeStore()
		limiter := &fakeLimiter{allow: true}
		u := newCoordinator(t, l, store, limiter)

		_, err := u.IssueUpload(context.Background(), req)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "%+v", req)
		assert.Zero(t, limiter.calls, "validation must run before the rate limiter")
		assert.Empty(t, store.presigned)
	}
}

func TestIssueUpload_RateLimited(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()
	store := newFakeStore()
	u := newCoordinator(t, l, store, &fakeLimiter{allow: false})

	_, err := u.IssueUpload(ctx, UploadRequest{Filename: "a.pdf", ClientID: "c1"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Empty(t, store.presigned)

	_, err = l.Get(ctx, "11111111-2222-3333-4444-555555555555")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestIssueUpload_LimiterErrorIsInternal(t *testing.T) {
	u := newCoordinator(t, ledger.NewMemoryLedger(), newFakeStore(), &fakeLimiter{err: errors.New("redis down")})
	_, err := u.IssueUpload(context.Background(), UploadRequest{Filename: "a.pdf"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestIssueUpload_PersistenceFailureReturnsNoGrant(t *testing.T) {
	l := ledger.NewMemoryLedger()
	l.CreateErr = func(*models.DocumentRecord) error { return errors.New("firestore unavailable") }
	u := newCoordinator(t, l, newFakeStore(), &fakeLimiter{allow: true})

	grant, err := u.IssueUpload(context.Background(), UploadRequest{Filename: "a.pdf"})
	assert.Nil(t, grant)
	var perr *PersistenceError
	assert.ErrorAs(t, err, &perr)
}

func TestIssueUpload_SigningFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()
	store := newFakeStore()
	store.presignErr = errors.New("no signing credentials")
	u := newCoordinator(t, l, store, &fakeLimiter{allow: true})

	_, err := u.IssueUpload(ctx, UploadRequest{Filename: "a.pdf"})
	require.Error(t, err)
	_, err = l.Get(ctx, "11111111-2222-3333-4444-555555555555")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
