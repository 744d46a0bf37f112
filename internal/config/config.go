package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"docuchat"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"docuchat"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	ExtractorURL string `envconfig:"EXTRACTOR_URL" default:"http://docling:8000"`
	NSQLookupd   string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost     string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP     string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	EnableAPI      bool   `envconfig:"ENABLE_API" default:"true"`
	EnablePipeline bool   `envconfig:"ENABLE_PIPELINE" default:"true"`
	MigrationPath  string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8080"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`

	// Retrieval
	ChunkSize    int     `envconfig:"RAG_CHUNK_SIZE" default:"1000"`
	ChunkOverlap int     `envconfig:"RAG_CHUNK_OVERLAP" default:"200"`
	TopK         int     `envconfig:"RAG_TOP_K" default:"10"`
	MinScore     float64 `envconfig:"RAG_MIN_SCORE" default:"0.5"`

	// Providers
	GeminiAPIKey     string  `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey     string  `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey  string  `envconfig:"ANTHROPIC_API_KEY"`
	OpenAIBaseURL    string  `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	AnthropicBaseURL string  `envconfig:"ANTHROPIC_BASE_URL" default:"https://api.anthropic.com"`
	OpenAIModel      string  `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	AnthropicModel   string  `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-sonnet-20241022"`
	GeminiModel      string  `envconfig:"GEMINI_MODEL" default:"gemini-1.5-pro"`
	PrimaryProvider  string  `envconfig:"PRIMARY_PROVIDER" default:"openai"`
	FallbackOrder    string  `envconfig:"FALLBACK_ORDER" default:"openai,anthropic,gemini"`
	MaxOutputTokens  int     `envconfig:"MAX_OUTPUT_TOKENS" default:"5000"`
	Temperature      float64 `envconfig:"TEMPERATURE" default:"0.3"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may be set in the shell; a missing .env is not an error.
	_ = godotenv.Load(".env")

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("RAG_CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("RAG_CHUNK_OVERLAP must be in [0, chunk size), got %d", c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("RAG_TOP_K must be positive, got %d", c.TopK)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("RAG_MIN_SCORE must be in [0, 1], got %f", c.MinScore)
	}
	return nil
}
