package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/Lllllllleong/documentindexflow/internal/models"
	"github.com/Lllllllleong/documentindexflow/internal/services"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const requestTokenLabel = "request_token"

type WorkflowConfig struct {
	ProjectID  string
	Location   string
	WorkflowID string
}

// WorkflowLauncher runs OCR jobs as Cloud Workflows executions. The workflow calls the
// Vision async batch annotation API, writes the output shards and moves the document to
// EXTRACTION_COMPLETED once the operation finishes.
type WorkflowLauncher struct {
	client *executions.Client
	parent string
}

func NewWorkflowLauncher(client *executions.Client, config WorkflowConfig) (*WorkflowLauncher, error) {
	if config.ProjectID == "" || config.Location == "" || config.WorkflowID == "" {
		return nil, fmt.Errorf("project, location and workflow id must be set")
	}
	return &WorkflowLauncher{
		client: client,
		parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", config.ProjectID, config.Location, config.WorkflowID),
	}, nil
}

type workflowArgument struct {
	DocumentID   string `json:"documentId"`
	SourceURI    string `json:"sourceUri"`
	OutputBucket string `json:"outputBucket"`
	OutputPrefix string `json:"outputPrefix"`
	OutputURI    string `json:"outputUri"`
}

// StartExtraction returns the live execution labelled with the request's idempotency token
// if one exists, and creates a new execution otherwise.
func (w *WorkflowLauncher) StartExtraction(ctx context.Context, req services.ExtractionRequest) (string, error) {
	logCtx := slog.With("documentId", req.DocumentID, "workflow", w.parent)

	existing, err := w.findExecution(ctx, req.IdempotencyToken)
	if err != nil {
		return "", err
	}
	if existing != "" {
		logCtx.Info("Reusing existing workflow execution.", "jobId", existing)
		return existing, nil
	}

	payload, err := json.Marshal(workflowArgument{
		DocumentID:   req.DocumentID,
		SourceURI:    req.Source.String(),
		OutputBucket: req.Output.Bucket,
		OutputPrefix: req.Output.Key,
		OutputURI:    req.Output.String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}

	exec, err := w.client.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent: w.parent,
		Execution: &executionspb.Execution{
			Argument: string(payload),
			Labels:   map[string]string{requestTokenLabel: req.IdempotencyToken},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	jobID := path.Base(exec.GetName())
	logCtx.Info("Workflow execution created.", "jobId", jobID)
	return jobID, nil
}

// findExecution looks for a non-failed execution carrying the token label.
func (w *WorkflowLauncher) findExecution(ctx context.Context, token string) (string, error) {
	it := w.client.ListExecutions(ctx, &executionspb.ListExecutionsRequest{
		Parent: w.parent,
		Filter: fmt.Sprintf("labels.%s=%q", requestTokenLabel, token),
	})
	for {
		exec, err := it.Next()
		if err == iterator.Done {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to list workflow executions: %w", err)
		}
		switch exec.GetState() {
		case executionspb.Execution_FAILED, executionspb.Execution_CANCELLED:
			continue
		}
		return path.Base(exec.GetName()), nil
	}
}

func (w *WorkflowLauncher) ExtractionState(ctx context.Context, jobID string) (*services.JobStatus, error) {
	exec, err := w.client.GetExecution(ctx, &executionspb.GetExecutionRequest{
		Name: w.parent + "/executions/" + jobID,
	})
	if status.Code(err) == codes.NotFound {
		return &services.JobStatus{State: models.JobStateUnknown, Error: "workflow execution not found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow execution %s: %w", jobID, err)
	}

	switch exec.GetState() {
	case executionspb.Execution_SUCCEEDED:
		return &services.JobStatus{State: models.JobStateSucceeded}, nil
	case executionspb.Execution_FAILED, executionspb.Execution_CANCELLED:
		msg := exec.GetError().GetPayload()
		if msg == "" {
			msg = exec.GetState().String()
		}
		return &services.JobStatus{State: models.JobStateFailed, Error: msg}, nil
	case executionspb.Execution_ACTIVE, executionspb.Execution_QUEUED:
		return &services.JobStatus{State: models.JobStateActive}, nil
	}
	return &services.JobStatus{State: models.JobStateUnknown}, nil
}
