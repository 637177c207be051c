// Package bootstrap builds the pipeline stages and their clients from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/Lllllllleong/documentindexflow/internal/config"
	"github.com/Lllllllleong/documentindexflow/internal/embedding"
	"github.com/Lllllllleong/documentindexflow/internal/gcp"
	"github.com/Lllllllleong/documentindexflow/internal/ledger"
	"github.com/Lllllllleong/documentindexflow/internal/logging"
	"github.com/Lllllllleong/documentindexflow/internal/minio"
	"github.com/Lllllllleong/documentindexflow/internal/ratelimit"
	"github.com/Lllllllleong/documentindexflow/internal/services"
	"github.com/Lllllllleong/documentindexflow/internal/weaviate"
)

// Env owns the clients built for one process. Each client is created on first use, so a
// stage only needs the settings of the collaborators it actually calls.
type Env struct {
	Config *config.Config

	ledger   ledger.Ledger
	store    services.ObjectStore
	launcher *gcp.WorkflowLauncher
	embedder services.QueryEmbedder
	index    *weaviate.Index

	closers []func() error
}

func New(cfg *config.Config) *Env {
	return &Env{Config: cfg}
}

// Close releases every client in reverse creation order.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func (e *Env) Ledger(ctx context.Context) (ledger.Ledger, error) {
	if e.ledger != nil {
		return e.ledger, nil
	}
	client, err := gcp.NewFirestoreClient(ctx, e.Config.ProjectID, e.Config.Firestore.DatabaseID)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, client.Close)
	e.ledger = ledger.NewFirestoreLedger(client, ledger.FirestoreConfig{
		DocumentsCollection: e.Config.Firestore.DocumentsCollection,
		JobsCollection:      e.Config.Firestore.JobsCollection,
	})
	return e.ledger, nil
}

func (e *Env) ObjectStore(ctx context.Context) (services.ObjectStore, error) {
	if e.store != nil {
		return e.store, nil
	}
	switch e.Config.Storage.Backend {
	case "minio":
		m := e.Config.MinIO
		if err := config.Require(map[string]string{"MINIO_ENDPOINT": m.Endpoint}); err != nil {
			return nil, err
		}
		client, err := minio.NewClient(minio.Config{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			UseSSL:    m.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		e.store = minio.NewObjectStore(client)
	default:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		e.closers = append(e.closers, client.Close)
		e.store = gcp.NewObjectStore(client)
	}
	return e.store, nil
}

func (e *Env) Launcher(ctx context.Context) (*gcp.WorkflowLauncher, error) {
	if e.launcher != nil {
		return e.launcher, nil
	}
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflows executions client: %w", err)
	}
	launcher, err := gcp.NewWorkflowLauncher(client, gcp.WorkflowConfig{
		ProjectID:  e.Config.ProjectID,
		Location:   e.Config.Workflow.Location,
		WorkflowID: e.Config.Workflow.WorkflowID,
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	e.closers = append(e.closers, client.Close)
	e.launcher = launcher
	return launcher, nil
}

func (e *Env) Embedder(ctx context.Context) (services.QueryEmbedder, error) {
	if e.embedder != nil {
		return e.embedder, nil
	}
	c := e.Config.Embedding
	switch c.Provider {
	case "openai":
		emb, err := embedding.NewOpenAI(embedding.Config{
			BaseURL:    c.BaseURL,
			Token:      c.APIKey,
			Model:      c.Model,
			Dimensions: c.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		e.embedder = emb
	default:
		emb, err := gcp.NewVertexEmbedder(ctx, gcp.VertexConfig{
			ProjectID:  e.Config.ProjectID,
			Region:     e.Config.Region,
			Model:      c.Model,
			Dimensions: c.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, emb.Close)
		e.embedder = emb
	}
	return e.embedder, nil
}

// Index connects to Weaviate and makes sure the chunk class exists.
func (e *Env) Index(ctx context.Context) (*weaviate.Index, error) {
	if e.index != nil {
		return e.index, nil
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   e.Config.Weaviate.Host,
		Scheme: e.Config.Weaviate.Scheme,
	})
	if err != nil {
		return nil, err
	}
	index := weaviate.NewIndex(client, e.Config.Weaviate.ClassName)
	if err := index.EnsureClass(ctx); err != nil {
		return nil, err
	}
	e.index = index
	return index, nil
}

func (e *Env) Limiter(ctx context.Context) (services.Limiter, error) {
	rl := e.Config.RateLimit
	if rl.Backend != "redis" {
		return ratelimit.NewMemory(rl.Limit, rl.Window), nil
	}
	if err := config.Require(map[string]string{"REDIS_ADDR": rl.RedisAddr}); err != nil {
		return nil, err
	}
	client, err := ratelimit.NewRedisClient(ctx, rl.RedisAddr, rl.RedisUsername, rl.RedisPassword)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, client.Close)
	return ratelimit.NewRedis(client, "", rl.Limit, rl.Window), nil
}

func (e *Env) UploadCoordinator(ctx context.Context) (*services.UploadCoordinator, error) {
	if err := config.Require(map[string]string{"UPLOAD_BUCKET": e.Config.Storage.UploadBucket}); err != nil {
		return nil, err
	}
	l, err := e.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	store, err := e.ObjectStore(ctx)
	if err != nil {
		return nil, err
	}
	limiter, err := e.Limiter(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewUploadCoordinator(l, store, limiter, services.UploadConfig{
		UploadBucket: e.Config.Storage.UploadBucket,
		UploadPrefix: e.Config.Storage.UploadPrefix,
		URLExpiry:    e.Config.Storage.UploadURLExpiry,
	})
}

func (e *Env) IngestionTrigger(ctx context.Context) (*services.IngestionTrigger, error) {
	if err := config.Require(map[string]string{"OCR_OUTPUT_BUCKET": e.Config.Storage.OCROutputBucket}); err != nil {
		return nil, err
	}
	l, err := e.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	store, err := e.ObjectStore(ctx)
	if err != nil {
		return nil, err
	}
	launcher, err := e.Launcher(ctx)
	if err != nil {
		return nil, err
	}
	t := e.Config.Trigger
	return services.NewIngestionTrigger(l, store, launcher, services.PDFPageCounter{}, services.TriggerConfig{
		UploadPrefix:    e.Config.Storage.UploadPrefix,
		OCROutputBucket: e.Config.Storage.OCROutputBucket,
		OCROutputPrefix: e.Config.Storage.OCROutputPrefix,
		MaxObjectBytes:  t.MaxObjectBytes,
		MaxPages:        t.MaxPages,
		StartAttempts:   t.StartAttempts,
		StartBaseDelay:  t.StartBaseDelay,
		Concurrency:     t.Concurrency,
	})
}

func (e *Env) ExtractionIndexer(ctx context.Context) (*services.ExtractionIndexer, error) {
	l, err := e.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	store, err := e.ObjectStore(ctx)
	if err != nil {
		return nil, err
	}
	embedder, err := e.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	index, err := e.Index(ctx)
	if err != nil {
		return nil, err
	}
	ic := e.Config.Indexer
	return services.NewExtractionIndexer(l, store, embedder, index, services.IndexerConfig{
		ChunkSize:       ic.ChunkSize,
		ChunkOverlap:    ic.ChunkOverlap,
		Concurrency:     ic.Concurrency,
		OCROutputBucket: e.Config.Storage.OCROutputBucket,
		OCROutputPrefix: e.Config.Storage.OCROutputPrefix,
	})
}

func (e *Env) StaleReaper(ctx context.Context) (*services.StaleReaper, error) {
	l, err := e.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	launcher, err := e.Launcher(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewStaleReaper(l, launcher, services.ReaperConfig{
		StaleAfter: e.Config.Reaper.StaleAfter,
		BatchLimit: e.Config.Reaper.BatchLimit,
	}), nil
}

// LoadAndSetup reads the configuration and installs the logger. Every entry point starts here.
func LoadAndSetup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logging.Setup(cfg.LogLevel); err != nil {
		return nil, err
	}
	slog.Debug("Configuration loaded.", "storageBackend", cfg.Storage.Backend, "embeddingProvider", cfg.Embedding.Provider)
	return cfg, nil
}
