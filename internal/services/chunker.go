package services

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/documentindexflow/internal/models"
)

// ChunkPages splits every page into overlapping rune windows of chunkSize, advancing by
// chunkSize-overlap. Pages are processed in the given order and the sequence index runs
// across all of them. Windows that are blank after trimming are dropped but still advance
// the window.
func ChunkPages(pages []models.PageText, chunkSize, overlap int) ([]models.Chunk, error) {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunkSize=%d overlap=%d", ErrInvalidChunking, chunkSize, overlap)
	}
	step := chunkSize - overlap

	var chunks []models.Chunk
	seq := 0
	for _, page := range pages {
		runes := []rune(page.Text)
		for start := 0; start < len(runes); start += step {
			end := min(start+chunkSize, len(runes))
			text := strings.TrimSpace(string(runes[start:end]))
			if text == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Text:          text,
				PageNumber:    page.PageNumber,
				SequenceIndex: seq,
				Start:         start,
				End:           end,
			})
			seq++
		}
	}
	return chunks, nil
}
