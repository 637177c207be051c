package models

import (
	"fmt"
	"time"
)

// Status is a DocumentRecord lifecycle state. Values are stored verbatim in Firestore.
type Status string

const (
	StatusUploadPending        Status = "UPLOAD_PENDING"
	StatusExtractionPending    Status = "EXTRACTION_PENDING"
	StatusExtractionInProgress Status = "EXTRACTION_IN_PROGRESS"
	StatusExtractionCompleted  Status = "EXTRACTION_COMPLETED"
	StatusIndexed              Status = "INDEXED"

	StatusExtractionStartFailed Status = "EXTRACTION_START_FAILED"
	StatusExtractionFailed      Status = "EXTRACTION_FAILED"
	StatusIndexingFailed        Status = "INDEXING_FAILED"
)

// progress orders the happy-path states. Failure states are absent on purpose.
var progress = map[Status]int{
	StatusUploadPending:        0,
	StatusExtractionPending:    1,
	StatusExtractionInProgress: 2,
	StatusExtractionCompleted:  3,
	StatusIndexed:              4,
}

// IsFailure reports whether s is one of the failure states.
func (s Status) IsFailure() bool {
	switch s {
	case StatusExtractionStartFailed, StatusExtractionFailed, StatusIndexingFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the pipeline has no outgoing transition from s.
func (s Status) IsTerminal() bool {
	return s == StatusIndexed || s.IsFailure()
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	_, ok := progress[s]
	return ok || s.IsFailure()
}

// HasJob reports whether a record in state s must carry an extraction job id.
func (s Status) HasJob() bool {
	rank, ok := progress[s]
	return ok && rank >= progress[StatusExtractionInProgress]
}

// CanTransition reports whether the pipeline may move a record from one state to another.
// Happy-path states only advance; failure states are reachable from any non-terminal state.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from.IsTerminal() {
		return false
	}
	if to.IsFailure() {
		return true
	}
	return progress[to] > progress[from]
}

// Location identifies an object in a bucket.
type Location struct {
	Bucket string `firestore:"bucket" json:"bucket"`
	Key    string `firestore:"key" json:"key"`
}

func (l Location) String() string {
	return fmt.Sprintf("gs://%s/%s", l.Bucket, l.Key)
}

// DocumentRecord is the tracking entry for one uploaded file.
type DocumentRecord struct {
	DocumentID      string    `firestore:"documentId"`
	Filename        string    `firestore:"filename"`
	ContentType     string    `firestore:"contentType,omitempty"`
	FileSize        int64     `firestore:"fileSize,omitempty"`
	PageCount       int       `firestore:"pageCount,omitempty"`
	Location        Location  `firestore:"location"`
	Status          Status    `firestore:"status"`
	ExtractionJobID string    `firestore:"extractionJobId,omitempty"`
	OCROutput       Location  `firestore:"ocrOutput"`
	ChunkCount      int       `firestore:"chunkCount,omitempty"`
	ErrorMessage    string    `firestore:"errorMessage,omitempty"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

// ObjectFacts are the size and type the object store reported at validation time.
type ObjectFacts struct {
	ContentType string
	Size        int64
	PageCount   int
	Location    Location
}

// Transition describes one status change applied through the ledger.
type Transition struct {
	To              Status
	ExtractionJobID string
	OCROutput       *Location
	ErrorMessage    string
	ChunkCount      int
	Facts           *ObjectFacts
}

// ProcessingJob is the best-effort observability record for one accepted OCR job.
type ProcessingJob struct {
	JobID      string    `firestore:"jobId"`
	DocumentID string    `firestore:"documentId"`
	Source     Location  `firestore:"source"`
	OCROutput  Location  `firestore:"ocrOutput"`
	StartedAt  time.Time `firestore:"startedAt"`
}

// JobState is the coarse state of an extraction job as reported by the OCR launcher.
type JobState string

const (
	JobStateActive    JobState = "ACTIVE"
	JobStateSucceeded JobState = "SUCCEEDED"
	JobStateFailed    JobState = "FAILED"
	JobStateUnknown   JobState = "UNKNOWN"
)
