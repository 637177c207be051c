package models

import "time"

// These structs define the JSON payloads exchanged with callers and the
// normalized events handed to the pipeline stages.

// UploadURLRequest is the body of POST /uploads.
type UploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
}

// UploadURLResponse is returned when an upload credential was issued.
type UploadURLResponse struct {
	UploadURL  string `json:"uploadUrl"`
	DocumentID string `json:"documentId"`
	ObjectKey  string `json:"objectKey"`
	ExpiresIn  int    `json:"expiresIn"`
}

// ErrorResponse is the body of every 4xx/5xx answer of the upload endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// DocumentStatusResponse is the body of GET /documents/:id.
type DocumentStatusResponse struct {
	DocumentID      string    `json:"documentId"`
	Filename        string    `json:"filename"`
	Status          Status    `json:"status"`
	ExtractionJobID string    `json:"extractionJobId,omitempty"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	ChunkCount      int       `json:"chunkCount,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ObjectNotification is one object-creation notification from the object store.
type ObjectNotification struct {
	EventType string `json:"eventType"`
	Bucket    string `json:"bucket"`
	Key       string `json:"name"`
	// Size as reported by the notification. Never trusted; kept for logging.
	Size int64 `json:"size,string,omitempty"`
}

// ChangeOperation is the kind of change a status-store event describes.
type ChangeOperation string

const (
	OperationInsert ChangeOperation = "INSERT"
	OperationModify ChangeOperation = "MODIFY"
	OperationRemove ChangeOperation = "REMOVE"
)

// StatusChange is one change-feed event from the status store.
type StatusChange struct {
	DocumentID string
	Operation  ChangeOperation
	OldStatus  Status
	NewStatus  Status
}
