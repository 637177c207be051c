package gcp

import (
	"context"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

type VertexConfig struct {
	ProjectID  string
	Region     string
	Model      string
	Dimensions int
}

const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// VertexEmbedder computes embeddings with a Vertex AI text-embedding model. Documents and
// search queries use different task types so they land in the same retrieval space.
type VertexEmbedder struct {
	client   *aiplatform.PredictionClient
	endpoint string
	params   *structpb.Value
	config   VertexConfig
}

func NewVertexEmbedder(ctx context.Context, config VertexConfig) (*VertexEmbedder, error) {
	if config.ProjectID == "" || config.Region == "" {
		return nil, fmt.Errorf("NewVertexEmbedder: projectID and region cannot be empty")
	}
	if config.Model == "" {
		config.Model = "text-embedding-005"
	}

	client, err := aiplatform.NewPredictionClient(ctx, option.WithEndpoint(config.Region+"-aiplatform.googleapis.com:443"))
	if err != nil {
		return nil, fmt.Errorf("aiplatform.NewPredictionClient: %w", err)
	}

	var params *structpb.Value
	if config.Dimensions > 0 {
		params, err = structpb.NewValue(map[string]any{"outputDimensionality": config.Dimensions})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to build prediction parameters: %w", err)
		}
	}

	return &VertexEmbedder{
		client:   client,
		endpoint: fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", config.ProjectID, config.Region, config.Model),
		params:   params,
		config:   config,
	}, nil
}

func (e *VertexEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.predict(ctx, text, taskRetrievalDocument)
}

// EmbedQuery embeds a search query.
func (e *VertexEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.predict(ctx, text, taskRetrievalQuery)
}

func (e *VertexEmbedder) predict(ctx context.Context, text, taskType string) ([]float32, error) {
	instance, err := predictionInstance(text, taskType)
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction instance: %w", err)
	}

	resp, err := e.client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:   e.endpoint,
		Instances:  []*structpb.Value{instance},
		Parameters: e.params,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding prediction failed: %w", err)
	}
	return embeddingFromPrediction(resp.GetPredictions(), e.config.Dimensions)
}

func predictionInstance(text, taskType string) (*structpb.Value, error) {
	return structpb.NewValue(map[string]any{
		"content":   text,
		"task_type": taskType,
	})
}

// embeddingFromPrediction reads predictions[0].embeddings.values.
func embeddingFromPrediction(predictions []*structpb.Value, dimensions int) ([]float32, error) {
	if len(predictions) == 0 {
		return nil, fmt.Errorf("embedding response has no predictions")
	}
	embeddings := predictions[0].GetStructValue().GetFields()["embeddings"]
	values := embeddings.GetStructValue().GetFields()["values"].GetListValue().GetValues()
	if len(values) == 0 {
		return nil, fmt.Errorf("embedding response has no values")
	}
	if dimensions > 0 && len(values) != dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(values), dimensions)
	}

	vector := make([]float32, len(values))
	for i, v := range values {
		vector[i] = float32(v.GetNumberValue())
	}
	return vector, nil
}

func (e *VertexEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
