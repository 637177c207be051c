package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/ledger"
	"github.com/Lllllllleong/documentindexflow/internal/models"
	"github.com/google/uuid"
)

type UploadConfig struct {
	UploadBucket string
	UploadPrefix string
	URLExpiry    time.Duration
}

type UploadRequest struct {
	Filename    string
	ContentType string
	ClientID    string
}

// UploadGrant is a time-limited credential for writing one object.
type UploadGrant struct {
	UploadURL  string
	DocumentID string
	ObjectKey  string
	ExpiresIn  time.Duration
}

// UploadCoordinator issues upload credentials and records the pending upload.
type UploadCoordinator struct {
	ledger  ledger.Ledger
	store   ObjectStore
	limiter Limiter
	config  UploadConfig
	newID   func() string
}

func NewUploadCoordinator(l ledger.Ledger, store ObjectStore, limiter Limiter, config UploadConfig) (*UploadCoordinator, error) {
	if config.UploadBucket == "" {
		return nil, fmt.Errorf("upload bucket must be set")
	}
	if config.UploadPrefix == "" {
		config.UploadPrefix = "uploads/"
	}
	if config.URLExpiry <= 0 {
		config.URLExpiry = 15 * time.Minute
	}
	return &UploadCoordinator{
		ledger:  l,
		store:   store,
		limiter: limiter,
		config:  config,
		newID:   uuid.NewString,
	}, nil
}

// IssueUpload validates the request, charges the client's quota and returns a presigned
// PUT URL. The DocumentRecord exists before the URL is handed out; a rejected request
// writes nothing.
func (u *UploadCoordinator) IssueUpload(ctx context.Context, req UploadRequest) (*UploadGrant, error) {
	filename, err := SanitizeFilename(req.Filename)
	if err != nil {
		return nil, err
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = pdfContentType
	}
	if !strings.EqualFold(contentType, pdfContentType) {
		return nil, &ValidationError{Field: "contentType", Reason: fmt.Sprintf("%q is not accepted, use %s", contentType, pdfContentType)}
	}
	contentType = pdfContentType

	allowed, err := u.limiter.Allow(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		slog.Warn("Upload request rate limited.", "clientId", req.ClientID)
		return nil, ErrRateLimited
	}

	docID := u.newID()
	loc := models.Location{Bucket: u.config.UploadBucket, Key: u.config.UploadPrefix + docID + "/" + filename}
	logCtx := slog.With("documentId", docID, "objectKey", loc.Key)

	url, err := u.store.PresignPut(ctx, loc, contentType, u.config.URLExpiry)
	if err != nil {
		logCtx.Error("Failed to sign upload URL.", "error", err)
		return nil, fmt.Errorf("failed to sign upload URL: %w", err)
	}

	err = u.ledger.Create(ctx, &models.DocumentRecord{
		DocumentID:  docID,
		Filename:    filename,
		ContentType: contentType,
		Location:    loc,
		Status:      models.StatusUploadPending,
	})
	if err != nil {
		logCtx.Error("Failed to create document record.", "error", err)
		return nil, &PersistenceError{Op: "create document record", Err: err}
	}

	logCtx.Info("Upload URL issued.", "clientId", req.ClientID)
	return &UploadGrant{
		UploadURL:  url,
		DocumentID: docID,
		ObjectKey:  loc.Key,
		ExpiresIn:  u.config.URLExpiry,
	}, nil
}

// Status returns the current record of a document.
func (u *UploadCoordinator) Status(ctx context.Context, documentID string) (*models.DocumentRecord, error) {
	return u.ledger.Get(ctx, documentID)
}
