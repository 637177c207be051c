package httpapi

import (
	"errors"
	"net/http"

	"github.com/Lllllllleong/documentindexflow/internal/ledger"
	"github.com/Lllllllleong/documentindexflow/internal/services"
)

// AppError is an error with the HTTP status and machine-readable code it answers with.
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeRateLimited = "RATE_LIMITED"
	CodeNotFound    = "NOT_FOUND"
	CodeInternal    = "INTERNAL_ERROR"
)

func WrapError(err error, code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// toAppError classifies a service error. Anything unrecognised is internal and its
// detail is not echoed to the caller.
func toAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		return WrapError(err, CodeValidation, vErr.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrRateLimited):
		return WrapError(err, CodeRateLimited, "Too many upload requests, retry later", http.StatusTooManyRequests)
	case errors.Is(err, ledger.ErrNotFound):
		return WrapError(err, CodeNotFound, "Document not found", http.StatusNotFound)
	default:
		return WrapError(err, CodeInternal, "Internal server error", http.StatusInternalServerError)
	}
}
