package models

import (
	"strconv"
	"time"
)

// Chunk is a window of one page's text. Start and End are rune offsets of the
// untrimmed window within the page.
type Chunk struct {
	Text          string
	PageNumber    int
	SequenceIndex int
	Start         int
	End           int
}

// PageText is the extracted text of one page.
type PageText struct {
	PageNumber int
	Text       string
}

// IndexedChunk is the record written to the vector index.
type IndexedChunk struct {
	ChunkID         string
	DocumentID      string
	Filename        string
	SequenceIndex   int
	Content         string
	EmbeddingVector []float32
	PageNumber      int
	CreatedAt       time.Time
}

// ChunkID derives the deterministic vector-index id of a chunk.
func ChunkID(documentID string, sequenceIndex int) string {
	return documentID + "-chunk-" + strconv.Itoa(sequenceIndex)
}
