package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/documentindexflow/internal/bootstrap"
	"github.com/Lllllllleong/documentindexflow/internal/services"
)

var (
	reaperInstance *services.StaleReaper
	initErr        error
)

func init() {
	reaperInstance, initErr = setup(context.Background())

	// Invoked on a schedule by Cloud Scheduler.
	functions.HTTP("HandleReap", handleReap)
}

// main is required by the Go Functions Framework.
func main() {}

func setup(ctx context.Context) (*services.StaleReaper, error) {
	cfg, err := bootstrap.LoadAndSetup()
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg).StaleReaper(ctx)
}

func handleReap(w http.ResponseWriter, r *http.Request) {
	if initErr != nil {
		slog.Error("Critical error during function initialization.", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	report, err := reaperInstance.Reap(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error: reaping failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		slog.Error("Failed to encode reap report.", "error", err)
	}
}
