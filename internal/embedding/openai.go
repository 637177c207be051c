// Package embedding provides an Embedder for OpenAI-compatible embedding servers.
package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

type Config struct {
	BaseURL    string
	Token      string
	Model      string
	Dimensions int
}

// OpenAI embeds text through any server speaking the OpenAI embeddings API.
type OpenAI struct {
	embedder   embeddings.Embedder
	dimensions int
	logger     *slog.Logger
}

func NewOpenAI(config Config) (*OpenAI, error) {
	if config.BaseURL == "" || config.Model == "" {
		return nil, fmt.Errorf("embedding base URL and model must be set")
	}
	token := config.Token
	if token == "" {
		// Local OpenAI-compatible servers accept any token.
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(config.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return newOpenAI(client, config.Dimensions)
}

func newOpenAI(client embeddings.EmbedderClient, dimensions int) (*OpenAI, error) {
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	return &OpenAI{
		embedder:   embedder,
		dimensions: dimensions,
		logger:     slog.Default().With("component", "openai-embedder"),
	}, nil
}

func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Error("Failed to generate embedding.", "length", len(text), "error", err)
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding response is empty")
	}
	return e.checked(vectors[0])
}

// EmbedQuery embeds a search query.
func (e *OpenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("Failed to generate query embedding.", "length", len(text), "error", err)
		return nil, fmt.Errorf("query embedding request failed: %w", err)
	}
	return e.checked(vector)
}

func (e *OpenAI) checked(vector []float32) ([]float32, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("embedding response is empty")
	}
	if e.dimensions > 0 && len(vector) != e.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(vector), e.dimensions)
	}
	return vector, nil
}
