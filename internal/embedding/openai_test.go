package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	vector []float32
	err    error
	seen   []string
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.seen = append(f.seen, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func TestOpenAI_Embed(t *testing.T) {
	client := &fakeClient{vector: []float32{0.1, 0.2, 0.3}}
	e, err := newOpenAI(client, 3)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "line one\nline two")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, []string{"line one line two"}, client.seen)
}

func TestOpenAI_EmbedDimensionMismatch(t *testing.T) {
	e, err := newOpenAI(&fakeClient{vector: []float32{1, 2}}, 768)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "text")
	assert.ErrorContains(t, err, "want 768")
}

func TestOpenAI_EmbedError(t *testing.T) {
	e, err := newOpenAI(&fakeClient{err: errors.New("429 too many requests")}, 0)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "text")
	assert.ErrorContains(t, err, "429")
}

func TestOpenAI_EmbedQuery(t *testing.T) {
	client := &fakeClient{vector: []float32{0.5, 0.5}}
	e, err := newOpenAI(client, 2)
	require.NoError(t, err)

	vec, err := e.EmbedQuery(context.Background(), "where is\nthe invoice total")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
	assert.Equal(t, []string{"where is the invoice total"}, client.seen)

	e, err = newOpenAI(&fakeClient{vector: []float32{0.5}}, 2)
	require.NoError(t, err)
	_, err = e.EmbedQuery(context.Background(), "q")
	assert.ErrorContains(t, err, "want 2")
}

func TestNewOpenAI_RequiresConfig(t *testing.T) {
	_, err := NewOpenAI(Config{})
	assert.Error(t, err)
}
