package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/Lllllllleong/documentindexflow/internal/config"
	"github.com/Lllllllleong/documentindexflow/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		ProjectID: "docs-test",
		Region:    "us-central1",
		Storage:   config.StorageConfig{Backend: "gcs"},
		RateLimit: config.RateLimitConfig{Backend: "memory", Limit: 5, Window: time.Minute},
	}
}

func TestLimiter_Memory(t *testing.T) {
	env := New(testConfig())
	limiter, err := env.Limiter(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.Memory{}, limiter)
}

func TestLimiter_RedisNeedsAddress(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Backend = "redis"
	_, err := New(cfg).Limiter(context.Background())
	assert.EqualError(t, err, "REDIS_ADDR must be set")
}

func TestStages_RequireTheirSettings(t *testing.T) {
	ctx := context.Background()
	env := New(testConfig())
	t.Cleanup(func() { env.Close() })

	_, err := env.UploadCoordinator(ctx)
	assert.EqualError(t, err, "UPLOAD_BUCKET must be set")

	_, err = env.IngestionTrigger(ctx)
	assert.EqualError(t, err, "OCR_OUTPUT_BUCKET must be set")
}

func TestObjectStore_MinIONeedsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Backend = "minio"
	_, err := New(cfg).ObjectStore(context.Background())
	assert.EqualError(t, err, "MINIO_ENDPOINT must be set")
}

func TestClose_RunsInReverse(t *testing.T) {
	env := New(testConfig())
	var order []int
	env.closers = append(env.closers,
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return assert.AnError },
	)
	assert.ErrorIs(t, env.Close(), assert.AnError)
	assert.Equal(t, []int{2, 1}, order)
	assert.NoError(t, env.Close())
}
