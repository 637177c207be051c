// Package weaviate stores embedded chunks in a Weaviate class with externally computed vectors.
package weaviate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/models"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wm "github.com/weaviate/weaviate/entities/models"
)

type Config struct {
	Host      string
	Scheme    string
	ClassName string
}

type Index struct {
	client    *weaviate.Client
	className string
}

func NewClient(config Config) (*weaviate.Client, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("weaviate host must be set")
	}
	scheme := config.Scheme
	if scheme == "" {
		scheme = "http"
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: config.Host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize weaviate client: %w", err)
	}
	return client, nil
}

func NewIndex(client *weaviate.Client, className string) *Index {
	if className == "" {
		className = "DocumentChunk"
	}
	return &Index{client: client, className: className}
}

// ObjectID maps a chunk id to the stable UUID Weaviate stores it under.
func ObjectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String())
}

// EnsureClass creates the chunk class when it is missing. Vectors are supplied by the
// pipeline, so the class has no vectorizer.
func (x *Index) EnsureClass(ctx context.Context) error {
	exists, err := x.client.Schema().ClassExistenceChecker().WithClassName(x.className).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check class %s: %w", x.className, err)
	}
	if exists {
		return nil
	}

	err = x.client.Schema().ClassCreator().WithClass(&wm.Class{
		Class:           x.className,
		Description:     "OCR text chunks of uploaded documents",
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		Properties: []*wm.Property{
			{Name: "chunkId", DataType: []string{"text"}},
			{Name: "documentId", DataType: []string{"text"}},
			{Name: "filename", DataType: []string{"text"}},
			{Name: "sequenceIndex", DataType: []string{"int"}},
			{Name: "pageNumber", DataType: []string{"int"}},
			{Name: "content", DataType: []string{"text"}},
			{Name: "createdAt", DataType: []string{"date"}},
		},
	}).Do(ctx)
	if err != nil {
		// Another instance may have created it in between.
		if ok, _ := x.client.Schema().ClassExistenceChecker().WithClassName(x.className).Do(ctx); ok {
			return nil
		}
		return fmt.Errorf("failed to create class %s: %w", x.className, err)
	}
	slog.Info("Created vector index class.", "class", x.className)
	return nil
}

// Upsert writes the chunk under its deterministic object id, replacing any earlier version.
func (x *Index) Upsert(ctx context.Context, c *models.IndexedChunk) error {
	obj := &wm.Object{
		Class: x.className,
		ID:    ObjectID(c.ChunkID),
		Properties: map[string]interface{}{
			"chunkId":       c.ChunkID,
			"documentId":    c.DocumentID,
			"filename":      c.Filename,
			"sequenceIndex": c.SequenceIndex,
			"pageNumber":    c.PageNumber,
			"content":       c.Content,
			"createdAt":     c.CreatedAt.UTC().Format(time.RFC3339),
		},
		Vector: c.EmbeddingVector,
	}

	resp, err := x.client.Batch().ObjectsBatcher().WithObjects(obj).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", c.ChunkID, err)
	}
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			if e != nil {
				return fmt.Errorf("failed to upsert chunk %s: %s", c.ChunkID, e.Message)
			}
		}
	}
	return nil
}

// SearchHit is one nearest-neighbour match.
type SearchHit struct {
	ChunkID    string
	DocumentID string
	PageNumber int
	Content    string
	Distance   float64
}

// Search returns the chunks closest to vector.
func (x *Index) Search(ctx context.Context, vector []float32, limit int) ([]SearchHit, error) {
	resp, err := x.client.GraphQL().Get().
		WithClassName(x.className).
		WithFields(
			graphql.Field{Name: "chunkId"},
			graphql.Field{Name: "documentId"},
			graphql.Field{Name: "pageNumber"},
			graphql.Field{Name: "content"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
		).
		WithNearVector(x.client.GraphQL().NearVectorArgBuilder().WithVector(vector)).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("vector search failed: %s", resp.Errors[0].Message)
	}
	return parseHits(resp.Data, x.className), nil
}

func parseHits(data map[string]wm.JSONObject, className string) []SearchHit {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := get[className].([]interface{})
	if !ok {
		return nil
	}

	hits := make([]SearchHit, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		hit := SearchHit{}
		hit.ChunkID, _ = m["chunkId"].(string)
		hit.DocumentID, _ = m["documentId"].(string)
		hit.Content, _ = m["content"].(string)
		if p, ok := m["pageNumber"].(float64); ok {
			hit.PageNumber = int(p)
		}
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			hit.Distance, _ = add["distance"].(float64)
		}
		hits = append(hits, hit)
	}
	return hits
}
