// Package config reads the pipeline configuration from the environment.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ProjectID string
	Region    string
	LogLevel  string

	Firestore FirestoreConfig
	Storage   StorageConfig
	MinIO     MinIOConfig
	Workflow  WorkflowConfig
	Trigger   TriggerConfig
	Embedding EmbeddingConfig
	Weaviate  WeaviateConfig
	Indexer   IndexerConfig
	RateLimit RateLimitConfig
	HTTP      HTTPConfig
	Reaper    ReaperConfig
}

type FirestoreConfig struct {
	DatabaseID          string
	DocumentsCollection string
	JobsCollection      string
}

type StorageConfig struct {
	// Backend is "gcs" or "minio".
	Backend         string
	UploadBucket    string
	UploadPrefix    string
	OCROutputBucket string
	OCROutputPrefix string
	UploadURLExpiry time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type WorkflowConfig struct {
	Location   string
	WorkflowID string
}

type TriggerConfig struct {
	MaxObjectBytes int64
	MaxPages       int
	StartAttempts  int
	StartBaseDelay time.Duration
	Concurrency    int
}

type EmbeddingConfig struct {
	// Provider is "vertex" or "openai".
	Provider   string
	Model      string
	Dimensions int
	BaseURL    string
	APIKey     string
}

type WeaviateConfig struct {
	Host      string
	Scheme    string
	ClassName string
}

type IndexerConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Concurrency  int
}

type RateLimitConfig struct {
	// Backend is "memory" or "redis".
	Backend       string
	Limit         int
	Window        time.Duration
	RedisAddr     string
	RedisUsername string
	RedisPassword string
}

type HTTPConfig struct {
	// TrustedClientIDHeader names a header that a fronting gateway sets to identify the
	// caller. When empty, callers are rate limited by client IP.
	TrustedClientIDHeader string
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is believed. When empty
	// the connection's remote address is the client IP.
	TrustedProxies []string
}

type ReaperConfig struct {
	StaleAfter time.Duration
	BatchLimit int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("REGION", "us-central1")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("FIRESTORE_COLLECTION", "documents")
	v.SetDefault("JOBS_COLLECTION", "processing_jobs")

	v.SetDefault("STORAGE_BACKEND", "gcs")
	v.SetDefault("UPLOAD_PREFIX", "uploads/")
	v.SetDefault("OCR_OUTPUT_PREFIX", "ocr/")
	v.SetDefault("UPLOAD_URL_EXPIRY", "15m")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("WORKFLOW_ID", "document-ocr-extraction")

	v.SetDefault("MAX_OBJECT_BYTES", 50<<20)
	v.SetDefault("MAX_PAGES", 2000)
	v.SetDefault("START_ATTEMPTS", 3)
	v.SetDefault("START_BASE_DELAY", "300ms")
	v.SetDefault("TRIGGER_CONCURRENCY", 10)

	v.SetDefault("EMBEDDING_PROVIDER", "vertex")
	v.SetDefault("EMBEDDING_MODEL", "text-embedding-005")
	v.SetDefault("EMBEDDING_DIMENSIONS", 768)

	v.SetDefault("WEAVIATE_SCHEME", "http")
	v.SetDefault("WEAVIATE_CLASS", "DocumentChunk")

	v.SetDefault("CHUNK_SIZE", 1000)
	v.SetDefault("CHUNK_OVERLAP", 200)
	v.SetDefault("INDEXER_CONCURRENCY", 4)

	v.SetDefault("RATE_LIMIT_BACKEND", "memory")
	v.SetDefault("RATE_LIMIT_PER_WINDOW", 10)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")

	v.SetDefault("STALE_AFTER", "2h")
	v.SetDefault("REAP_BATCH_LIMIT", 100)
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ProjectID: v.GetString("PROJECT_ID"),
		Region:    v.GetString("REGION"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		Firestore: FirestoreConfig{
			DatabaseID:          v.GetString("FIRESTORE_DATABASE"),
			DocumentsCollection: v.GetString("FIRESTORE_COLLECTION"),
			JobsCollection:      v.GetString("JOBS_COLLECTION"),
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(v.GetString("STORAGE_BACKEND")),
			UploadBucket:    v.GetString("UPLOAD_BUCKET"),
			UploadPrefix:    v.GetString("UPLOAD_PREFIX"),
			OCROutputBucket: v.GetString("OCR_OUTPUT_BUCKET"),
			OCROutputPrefix: v.GetString("OCR_OUTPUT_PREFIX"),
			UploadURLExpiry: v.GetDuration("UPLOAD_URL_EXPIRY"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		Workflow: WorkflowConfig{
			Location:   v.GetString("WORKFLOW_LOCATION"),
			WorkflowID: v.GetString("WORKFLOW_ID"),
		},
		Trigger: TriggerConfig{
			MaxObjectBytes: v.GetInt64("MAX_OBJECT_BYTES"),
			MaxPages:       v.GetInt("MAX_PAGES"),
			StartAttempts:  v.GetInt("START_ATTEMPTS"),
			StartBaseDelay: v.GetDuration("START_BASE_DELAY"),
			Concurrency:    v.GetInt("TRIGGER_CONCURRENCY"),
		},
		Embedding: EmbeddingConfig{
			Provider:   strings.ToLower(v.GetString("EMBEDDING_PROVIDER")),
			Model:      v.GetString("EMBEDDING_MODEL"),
			Dimensions: v.GetInt("EMBEDDING_DIMENSIONS"),
			BaseURL:    v.GetString("EMBEDDING_BASE_URL"),
			APIKey:     v.GetString("EMBEDDING_API_KEY"),
		},
		Weaviate: WeaviateConfig{
			Host:      v.GetString("WEAVIATE_HOST"),
			Scheme:    v.GetString("WEAVIATE_SCHEME"),
			ClassName: v.GetString("WEAVIATE_CLASS"),
		},
		Indexer: IndexerConfig{
			ChunkSize:    v.GetInt("CHUNK_SIZE"),
			ChunkOverlap: v.GetInt("CHUNK_OVERLAP"),
			Concurrency:  v.GetInt("INDEXER_CONCURRENCY"),
		},
		RateLimit: RateLimitConfig{
			Backend:       strings.ToLower(v.GetString("RATE_LIMIT_BACKEND")),
			Limit:         v.GetInt("RATE_LIMIT_PER_WINDOW"),
			Window:        v.GetDuration("RATE_LIMIT_WINDOW"),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisUsername: v.GetString("REDIS_USERNAME"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
		},
		HTTP: HTTPConfig{
			TrustedClientIDHeader: strings.TrimSpace(v.GetString("TRUSTED_CLIENT_ID_HEADER")),
			TrustedProxies:        splitList(v.GetString("TRUSTED_PROXIES")),
		},
		Reaper: ReaperConfig{
			StaleAfter: v.GetDuration("STALE_AFTER"),
			BatchLimit: v.GetInt("REAP_BATCH_LIMIT"),
		},
	}
	if cfg.Workflow.Location == "" {
		cfg.Workflow.Location = cfg.Region
	}
	return cfg, cfg.validate()
}

// splitList parses a comma-separated setting, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	switch c.Storage.Backend {
	case "gcs", "minio":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be gcs or minio, got %q", c.Storage.Backend)
	}
	switch c.Embedding.Provider {
	case "vertex", "openai":
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be vertex or openai, got %q", c.Embedding.Provider)
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", c.RateLimit.Backend)
	}
	if c.Indexer.ChunkSize <= 0 || c.Indexer.ChunkOverlap < 0 || c.Indexer.ChunkOverlap >= c.Indexer.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got size=%d overlap=%d", c.Indexer.ChunkSize, c.Indexer.ChunkOverlap)
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_WINDOW and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// Require fails unless every named setting is non-empty. Each stage checks only what it uses.
func Require(settings map[string]string) error {
	var missing []string
	for name, value := range settings {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%s must be set", strings.Join(missing, ", "))
}
