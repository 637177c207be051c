package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/documentindexflow/internal/bootstrap"
	"github.com/Lllllllleong/documentindexflow/internal/httpapi"
	"github.com/gin-gonic/gin"
)

var (
	router  *gin.Engine
	initErr error
)

func init() {
	gin.SetMode(gin.ReleaseMode)
	router, initErr = setup(context.Background())

	functions.HTTP("HandleUploads", handleUploads)
}

// main is required by the Go Functions Framework.
func main() {}

func setup(ctx context.Context) (*gin.Engine, error) {
	cfg, err := bootstrap.LoadAndSetup()
	if err != nil {
		return nil, err
	}
	uploads, err := bootstrap.New(cfg).UploadCoordinator(ctx)
	if err != nil {
		return nil, err
	}
	return httpapi.NewRouter(uploads, httpapi.RouterConfig{
		ClientIDHeader: cfg.HTTP.TrustedClientIDHeader,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
}

func handleUploads(w http.ResponseWriter, r *http.Request) {
	if initErr != nil {
		slog.Error("Critical error during function initialization.", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}
