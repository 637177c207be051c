package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/models"
)

// MemoryLedger is an in-process Ledger used by tests and local runs.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]models.DocumentRecord
	jobs    map[string]models.ProcessingJob

	// Now is the clock used for timestamps. Defaults to time.Now.
	Now func() time.Time

	// Failure hooks. A non-nil return is handed back to the caller unchanged.
	CreateErr     func(rec *models.DocumentRecord) error
	TransitionErr func(documentID string, t models.Transition) error
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string]models.DocumentRecord),
		jobs:    make(map[string]models.ProcessingJob),
		Now:     time.Now,
	}
}

func (l *MemoryLedger) Create(_ context.Context, rec *models.DocumentRecord) error {
	if l.CreateErr != nil {
		if err := l.CreateErr(rec); err != nil {
			return err
		}
	}
	if err := validateNew(rec); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[rec.DocumentID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, rec.DocumentID)
	}
	now := l.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	l.records[rec.DocumentID] = *rec
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, documentID string) (*models.DocumentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	return &rec, nil
}

func (l *MemoryLedger) Transition(_ context.Context, documentID string, t models.Transition) (*models.DocumentRecord, error) {
	if l.TransitionErr != nil {
		if err := l.TransitionErr(documentID, t); err != nil {
			return nil, err
		}
	}
	return l.update(documentID, func(rec *models.DocumentRecord, now time.Time) error {
		return applyTransition(rec, t, now)
	})
}

func (l *MemoryLedger) Redrive(_ context.Context, documentID string) (*models.DocumentRecord, error) {
	return l.update(documentID, applyRedrive)
}

func (l *MemoryLedger) update(documentID string, mutate func(*models.DocumentRecord, time.Time) error) (*models.DocumentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	if err := mutate(&rec, l.Now().UTC()); err != nil {
		return nil, err
	}
	l.records[documentID] = rec
	out := rec
	return &out, nil
}

func (l *MemoryLedger) TrackJob(_ context.Context, job *models.ProcessingJob) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs[job.JobID] = *job
}

// Job returns the tracked ProcessingJob for jobID, if any.
func (l *MemoryLedger) Job(jobID string) (models.ProcessingJob, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.jobs[jobID]
	return job, ok
}

func (l *MemoryLedger) ListStale(_ context.Context, s models.Status, olderThan time.Time, limit int) ([]*models.DocumentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var records []*models.DocumentRecord
	for _, rec := range l.records {
		if rec.Status == s && rec.UpdatedAt.Before(olderThan) {
			r := rec
			records = append(records, &r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.Before(records[j].UpdatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Put stores rec as-is, bypassing lifecycle validation. Test setup only.
func (l *MemoryLedger) Put(rec models.DocumentRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[rec.DocumentID] = rec
}
