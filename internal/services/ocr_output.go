package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/Lllllllleong/documentindexflow/internal/models"
)

// annotateFileResponse is the subset of a Cloud Vision async batch output shard we read.
type annotateFileResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		Context struct {
			PageNumber int `json:"pageNumber"`
		} `json:"context"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// OCRReader turns the output shards of an extraction job into page texts.
type OCRReader struct {
	store ObjectStore
}

func NewOCRReader(store ObjectStore) *OCRReader {
	return &OCRReader{store: store}
}

// ReadPages lists every .json shard under loc.Key, parses them in key order and returns the
// non-empty pages sorted by page number.
func (r *OCRReader) ReadPages(ctx context.Context, loc models.Location) ([]models.PageText, error) {
	keys, err := r.store.List(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to list OCR output under %s: %w", loc, err)
	}
	sort.Strings(keys)

	lines := make(map[int][]string)
	shards := 0
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		shards++
		if err := r.readShard(ctx, models.Location{Bucket: loc.Bucket, Key: key}, lines); err != nil {
			return nil, err
		}
	}
	if shards == 0 {
		return nil, fmt.Errorf("no OCR output found under %s", loc)
	}

	return assemblePages(lines), nil
}

func (r *OCRReader) readShard(ctx context.Context, loc models.Location, lines map[int][]string) error {
	body, err := r.store.Get(ctx, loc)
	if err != nil {
		return fmt.Errorf("failed to read OCR shard %s: %w", loc, err)
	}
	defer body.Close()

	if err := parseAnnotateFileResponse(body, lines); err != nil {
		return fmt.Errorf("failed to parse OCR shard %s: %w", loc, err)
	}
	return nil
}

// parseAnnotateFileResponse appends the non-blank lines of every response to lines, keyed
// by page number.
func parseAnnotateFileResponse(r io.Reader, lines map[int][]string) error {
	var shard annotateFileResponse
	if err := json.NewDecoder(r).Decode(&shard); err != nil {
		return err
	}
	for _, resp := range shard.Responses {
		page := resp.Context.PageNumber
		if resp.Error != nil {
			slog.Warn("OCR reported an error for a page.", "pageNumber", page, "code", resp.Error.Code, "message", resp.Error.Message)
			continue
		}
		if resp.FullTextAnnotation == nil {
			continue
		}
		for _, line := range strings.Split(resp.FullTextAnnotation.Text, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				lines[page] = append(lines[page], line)
			}
		}
	}
	return nil
}

func assemblePages(lines map[int][]string) []models.PageText {
	pageNumbers := make([]int, 0, len(lines))
	for p := range lines {
		pageNumbers = append(pageNumbers, p)
	}
	sort.Ints(pageNumbers)

	pages := make([]models.PageText, 0, len(pageNumbers))
	for _, p := range pageNumbers {
		if len(lines[p]) == 0 {
			continue
		}
		pages = append(pages, models.PageText{PageNumber: p, Text: strings.Join(lines[p], "\n")})
	}
	return pages
}
