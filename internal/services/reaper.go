package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/ledger"
	"github.com/Lllllllleong/documentindexflow/internal/models"
)

type ReaperConfig struct {
	StaleAfter time.Duration
	BatchLimit int
}

// ReapReport summarises one reaper run.
type ReapReport struct {
	Examined int      `json:"examined"`
	Failed   int      `json:"failed"`
	Left     int      `json:"left"`
	Errors   []string `json:"errors,omitempty"`
}

// StaleReaper fails documents that stopped making progress: extraction jobs that never
// signalled completion and records whose job was never accepted.
type StaleReaper struct {
	ledger  ledger.Ledger
	starter ExtractionStarter
	config  ReaperConfig
	now     func() time.Time
}

func NewStaleReaper(l ledger.Ledger, starter ExtractionStarter, config ReaperConfig) *StaleReaper {
	if config.StaleAfter <= 0 {
		config.StaleAfter = 2 * time.Hour
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = 100
	}
	return &StaleReaper{ledger: l, starter: starter, config: config, now: time.Now}
}

func (r *StaleReaper) Reap(ctx context.Context) (*ReapReport, error) {
	cutoff := r.now().Add(-r.config.StaleAfter)
	report := &ReapReport{}

	inProgress, err := r.ledger.ListStale(ctx, models.StatusExtractionInProgress, cutoff, r.config.BatchLimit)
	if err != nil {
		return nil, err
	}
	for _, rec := range inProgress {
		report.Examined++
		r.reapInProgress(ctx, rec, report)
	}

	pending, err := r.ledger.ListStale(ctx, models.StatusExtractionPending, cutoff, r.config.BatchLimit)
	if err != nil {
		return nil, err
	}
	for _, rec := range pending {
		report.Examined++
		r.fail(ctx, rec.DocumentID, models.StatusExtractionStartFailed,
			fmt.Sprintf("extraction was not started within %s", r.config.StaleAfter), report)
	}

	slog.Info("Stale document sweep complete.", "examined", report.Examined, "failed", report.Failed, "left", report.Left, "errors", len(report.Errors))
	return report, nil
}

func (r *StaleReaper) reapInProgress(ctx context.Context, rec *models.DocumentRecord, report *ReapReport) {
	logCtx := slog.With("documentId", rec.DocumentID, "jobId", rec.ExtractionJobID)

	job, err := r.starter.ExtractionState(ctx, rec.ExtractionJobID)
	if err != nil {
		logCtx.Error("Failed to read extraction job state.", "error", err)
		report.Left++
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", rec.DocumentID, err))
		return
	}

	switch job.State {
	case models.JobStateSucceeded:
		// The completion update is still on its way.
		logCtx.Info("Extraction job succeeded, waiting for its status update.")
		report.Left++
	case models.JobStateFailed:
		msg := "extraction job failed"
		if job.Error != "" {
			msg = fmt.Sprintf("%s: %s", msg, job.Error)
		}
		r.fail(ctx, rec.DocumentID, models.StatusExtractionFailed, msg, report)
	default:
		r.fail(ctx, rec.DocumentID, models.StatusExtractionFailed,
			fmt.Sprintf("extraction did not complete within %s", r.config.StaleAfter), report)
	}
}

func (r *StaleReaper) fail(ctx context.Context, documentID string, status models.Status, message string, report *ReapReport) {
	logCtx := slog.With("documentId", documentID)
	_, err := r.ledger.Transition(ctx, documentID, models.Transition{To: status, ErrorMessage: message})
	switch {
	case err == nil:
		logCtx.Warn("Marked stale document as failed.", "status", status, "reason", message)
		report.Failed++
	case errors.Is(err, ledger.ErrInvalidTransition):
		logCtx.Info("Document moved on before it could be reaped.")
		report.Left++
	default:
		logCtx.Error("Failed to mark stale document as failed.", "error", err)
		report.Left++
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", documentID, err))
	}
}
