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
	triggerInstance *services.IngestionTrigger
	initErr         error
)

func init() {
	triggerInstance, initErr = setup(context.Background())

	// Triggered by google.cloud.storage.object.v1.finalized on the upload bucket.
	functions.CloudEvent("HandleObjectFinalized", handleObjectFinalized)
}

// main is required by the Go Functions Framework.
func main() {}

func setup(ctx context.Context) (*services.IngestionTrigger, error) {
	cfg, err := bootstrap.LoadAndSetup()
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg).IngestionTrigger(ctx)
}

func handleObjectFinalized(ctx context.Context, e cloudevents.Event) error {
	if initErr != nil {
		slog.Error("Critical error during function initialization.", "error", initErr)
		return initErr
	}

	n, err := events.ObjectNotification(e)
	if err != nil {
		// A malformed event never becomes valid on redelivery.
		slog.Error("Failed to decode storage event, dropping it.", "error", err, "eventId", e.ID())
		return nil
	}

	res := triggerInstance.Process(ctx, []models.ObjectNotification{n})
	slog.Info("Storage event handled.", "eventId", e.ID(), "succeeded", res.Succeeded, "skipped", res.Skipped, "failed", res.Failed)
	// A redelivery resumes an EXTRACTION_PENDING record and skips one already marked failed.
	return res.Err()
}
