package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func prediction(t *testing.T, values ...any) *structpb.Value {
	t.Helper()
	v, err := structpb.NewValue(map[string]any{
		"embeddings": map[string]any{
			"statistics": map[string]any{"token_count": 4, "truncated": false},
			"values":     values,
		},
	})
	require.NoError(t, err)
	return v
}

func TestEmbeddingFromPrediction(t *testing.T) {
	vec, err := embeddingFromPrediction([]*structpb.Value{prediction(t, 0.25, -1.5, 3.0)}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -1.5, 3}, vec)
}

func TestEmbeddingFromPrediction_Errors(t *testing.T) {
	_, err := embeddingFromPrediction(nil, 0)
	assert.Error(t, err)

	_, err = embeddingFromPrediction([]*structpb.Value{prediction(t)}, 0)
	assert.Error(t, err)

	_, err = embeddingFromPrediction([]*structpb.Value{prediction(t, 1.0, 2.0)}, 768)
	assert.ErrorContains(t, err, "want 768")
}

func TestPredictionInstance(t *testing.T) {
	doc, err := predictionInstance("chunk text", taskRetrievalDocument)
	require.NoError(t, err)
	assert.Equal(t, "RETRIEVAL_DOCUMENT", doc.GetStructValue().GetFields()["task_type"].GetStringValue())
	assert.Equal(t, "chunk text", doc.GetStructValue().GetFields()["content"].GetStringValue())

	query, err := predictionInstance("invoice total", taskRetrievalQuery)
	require.NoError(t, err)
	assert.Equal(t, "RETRIEVAL_QUERY", query.GetStructValue().GetFields()["task_type"].GetStringValue())
}
