package main

import (
	"context"
	"log/slog"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/documentindexflow/internal/bootstrap"
	"github.com/Lllllllleong/documentindexflow/internal/events"
	"github.com/Lllllllleong/documentindexflow/internal/models"
	"github.com/Lllllllleong/documentindexflow/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	indexerInstance *services.ExtractionIndexer
	initErr         error
)

func init() {
	indexerInstance, initErr = setup(context.Background())

	// Triggered by google.cloud.firestore.document.v1.written on the documents collection,
	// created with --event-data-content-type=application/json.
	functions.CloudEvent("HandleStatusChange", handleStatusChange)
}

// main is required by the Go Functions Framework.
func main() {}

func setup(ctx context.Context) (*services.ExtractionIndexer, error) {
	cfg, err := bootstrap.LoadAndSetup()
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg).ExtractionIndexer(ctx)
}

func handleStatusChange(ctx context.Context, e cloudevents.Event) error {
	if initErr != nil {
		slog.Error("Critical error during function initialization.", "error", initErr)
		return initErr
	}

	change, err := events.StatusChange(e)
	if err != nil {
		slog.Error("Failed to decode document event, dropping it.", "error", err, "eventId", e.ID(), "subject", e.Subject())
		return nil
	}

	return indexerInstance.HandleBatch(ctx, []models.StatusChange{change})
}
