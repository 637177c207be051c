package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusUploadPending, StatusExtractionPending, true},
		{StatusExtractionPending, StatusExtractionInProgress, true},
		{StatusExtractionInProgress, StatusExtractionCompleted, true},
		{StatusExtractionCompleted, StatusIndexed, true},
		{StatusUploadPending, StatusExtractionInProgress, true},
		{StatusExtractionInProgress, StatusExtractionPending, false},
		{StatusExtractionCompleted, StatusExtractionCompleted, false},
		{StatusUploadPending, StatusExtractionStartFailed, true},
		{StatusExtractionInProgress, StatusExtractionFailed, true},
		{StatusExtractionCompleted, StatusIndexingFailed, true},
		{StatusIndexed, StatusIndexingFailed, false},
		{StatusIndexingFailed, StatusIndexed, false},
		{StatusExtractionStartFailed, StatusExtractionPending, false},
		{StatusExtractionFailed, StatusExtractionFailed, false},
		{Status("BOGUS"), StatusIndexed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStatusHasJob(t *testing.T) {
	assert.False(t, StatusUploadPending.HasJob())
	assert.False(t, StatusExtractionPending.HasJob())
	assert.True(t, StatusExtractionInProgress.HasJob())
	assert.True(t, StatusExtractionCompleted.HasJob())
	assert.True(t, StatusIndexed.HasJob())
	assert.False(t, StatusExtractionStartFailed.HasJob())
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "doc-1-chunk-0", ChunkID("doc-1", 0))
	assert.Equal(t, "abc-chunk-12", ChunkID("abc", 12))
}
