package weaviate

import (
	"testing"

	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wm "github.com/weaviate/weaviate/entities/models"
)

func TestObjectID_Deterministic(t *testing.T) {
	a := ObjectID("doc-1-chunk-0")
	assert.Equal(t, a, ObjectID("doc-1-chunk-0"))
	assert.NotEqual(t, a, ObjectID("doc-1-chunk-1"))
	assert.True(t, strfmt.IsUUID(a.String()))
}

func TestParseHits(t *testing.T) {
	data := map[string]wm.JSONObject{
		"Get": map[string]interface{}{
			"DocumentChunk": []interface{}{
				map[string]interface{}{
					"chunkId":     "doc-1-chunk-3",
					"documentId":  "doc-1",
					"pageNumber":  float64(2),
					"content":     "Pressure vessel rating",
					"_additional": map[string]interface{}{"distance": 0.125},
				},
				"garbage",
			},
		},
	}

	hits := parseHits(data, "DocumentChunk")
	require.Len(t, hits, 1)
	assert.Equal(t, SearchHit{
		ChunkID:    "doc-1-chunk-3",
		DocumentID: "doc-1",
		PageNumber: 2,
		Content:    "Pressure vessel rating",
		Distance:   0.125,
	}, hits[0])

	assert.Empty(t, parseHits(map[string]wm.JSONObject{}, "DocumentChunk"))
}
