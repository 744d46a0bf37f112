package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"docuchat/internal/adapter/gemini"
	"docuchat/internal/config"
	"docuchat/internal/index"
	"docuchat/internal/llm"
	"docuchat/internal/vector"
)

type Dependencies struct {
	DB          *sql.DB
	Weaviate    *weaviate.Client
	NSQProducer *nsq.Producer
}

// Bootstrap connects the infrastructure: Postgres (with migrations),
// Weaviate (with schema), and the NSQ producer. Dependent services may
// come up in any order, so connections retry per the configured policy.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Database
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("migration up error: %w", err)
	}

	// Weaviate
	wCfg := weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme}
	wClient, err := weaviate.NewClient(wCfg)
	if err != nil {
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}

	schemaClient := vector.NewWeaviateClientAdapter(wClient)
	if err := EnsureSchemaWithRetry(ctx, schemaClient, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		return nil, fmt.Errorf("weaviate schema error: %w", err)
	}

	// NSQ Producer
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}

	createTopics(cfg.NSQDHTTP)

	return &Dependencies{
		DB:          db,
		Weaviate:    wClient,
		NSQProducer: producer,
	}, nil
}

// BuildChatModels constructs a client for every provider with an API key.
func BuildChatModels(ctx context.Context, cfg *config.Config) (map[llm.Provider]llm.ChatModel, error) {
	models := make(map[llm.Provider]llm.ChatModel)

	if cfg.OpenAIAPIKey != "" {
		models[llm.ProviderOpenAI] = llm.NewOpenAIModel(
			cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.MaxOutputTokens, cfg.Temperature,
			llm.WithOpenAIBaseURL(cfg.OpenAIBaseURL))
	}
	if cfg.AnthropicAPIKey != "" {
		models[llm.ProviderAnthropic] = llm.NewAnthropicModel(
			cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.MaxOutputTokens, cfg.Temperature,
			llm.WithAnthropicBaseURL(cfg.AnthropicBaseURL))
	}
	if cfg.GeminiAPIKey != "" {
		model, err := llm.NewGeminiModel(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.MaxOutputTokens, cfg.Temperature)
		if err != nil {
			return nil, fmt.Errorf("gemini chat client error: %w", err)
		}
		models[llm.ProviderGemini] = model
	}

	if len(models) == 0 {
		slog.Warn("no chat provider API keys configured, chat requests will fail")
	}
	return models, nil
}

// NewEmbedder builds the Gemini embedding client used by the index. With
// no API key the service still starts, but indexing and retrieval fail
// until one is provided.
func NewEmbedder(ctx context.Context, cfg *config.Config) (index.Embedder, func(), error) {
	if cfg.GeminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, embedding operations will fail")
		return unavailableEmbedder{}, func() {}, nil
	}
	e, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, nil, err
	}
	return e, func() { _ = e.Close() }, nil
}

type unavailableEmbedder struct{}

func (unavailableEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embeddings unavailable: GEMINI_API_KEY not configured")
}

func createTopics(nsqdHTTP string) {
	go func() {
		time.Sleep(2 * time.Second)
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, config.TopicDocumentProcess)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", config.TopicDocumentProcess, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}()
}

// EnsureSchemaWithRetry retries schema creation until Weaviate is reachable.
func EnsureSchemaWithRetry(ctx context.Context, client vector.SchemaClient, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = vector.EnsureSchema(ctx, client); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
