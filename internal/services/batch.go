package services

import (
	"errors"
	"fmt"
)

// Outcome is the result of processing one event of a batch.
type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeSkipped   Outcome = "SKIPPED"
	OutcomeFailed    Outcome = "FAILED"
)

// ItemResult describes how one notification of a batch was handled.
type ItemResult struct {
	Bucket     string
	Key        string
	DocumentID string
	Outcome    Outcome
	Reason     string
	Err        error
}

// BatchResult aggregates the outcome of one invocation. One failed item never
// affects its siblings.
type BatchResult struct {
	Succeeded int
	Skipped   int
	Failed    int
	Items     []ItemResult
}

func newBatchResult(items []ItemResult) BatchResult {
	res := BatchResult{Items: items}
	for _, it := range items {
		switch it.Outcome {
		case OutcomeSucceeded:
			res.Succeeded++
		case OutcomeSkipped:
			res.Skipped++
		case OutcomeFailed:
			res.Failed++
		}
	}
	return res
}

// Err joins the errors of the failed items, or returns nil when nothing failed.
func (b BatchResult) Err() error {
	var errs []error
	for _, it := range b.Items {
		if it.Outcome != OutcomeFailed {
			continue
		}
		err := it.Err
		if err == nil {
			err = errors.New(it.Reason)
		}
		errs = append(errs, fmt.Errorf("gs://%s/%s: %w", it.Bucket, it.Key, err))
	}
	return errors.Join(errs...)
}
