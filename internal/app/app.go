package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"docuchat/features/chat"
	"docuchat/features/document"
	"docuchat/internal/config"
	"docuchat/internal/extract"
	"docuchat/internal/index"
	"docuchat/internal/llm"
	"docuchat/internal/middleware"
	"docuchat/internal/pipeline"
	"docuchat/internal/text"
)

type App struct {
	Handler         http.Handler
	DocumentService *document.Service
	ChatService     *chat.Service
	Consumer        *pipeline.Consumer

	llmGateway *llm.Gateway
	port       int
}

func New(
	cfg *config.Config,
	db *sql.DB,
	embedder index.Embedder,
	vecStore index.VectorStore,
	chatModels map[llm.Provider]llm.ChatModel,
	taskPub document.EventPublisher,
) (*App, error) {
	chunker, err := text.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}

	indexGateway := index.NewGateway(embedder, vecStore)
	llmGateway := llm.NewGateway(chatModels, cfg.PrimaryProvider, cfg.FallbackOrder)

	// Feature: Document
	docRepo := document.NewPostgresRepo(db)
	fileStore := document.NewDiskStore(cfg.UploadDir)
	docService := document.NewService(docRepo, fileStore, indexGateway, taskPub, document.PageCount, cfg.MaxUploadSizeMB)
	docHandler := document.NewHandler(docService, cfg.MaxUploadSizeMB)

	// Feature: Chat
	historyRepo := chat.NewPostgresHistoryRepo(db)
	chatService := chat.NewService(docRepo, indexGateway, llmGateway, historyRepo, cfg.TopK, cfg.MinScore)
	chatHandler := chat.NewHandler(chatService)

	// Pipeline
	extractor := extract.NewClient(cfg.ExtractorURL)
	processor := pipeline.NewProcessor(docRepo, extractor, chunker, indexGateway)
	consumer := pipeline.NewConsumer(processor)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	app := &App{
		DocumentService: docService,
		ChatService:     chatService,
		Consumer:        consumer,
		llmGateway:      llmGateway,
		port:            cfg.ServerPort,
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(docHandler.Upload)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(docHandler.List)))
	mux.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Get)))
	mux.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Delete)))

	mux.Handle("POST /documents/{id}/chat", middleware.CorrelationID(enableCORS(chatHandler.Chat)))
	mux.Handle("GET /documents/{id}/history", middleware.CorrelationID(enableCORS(chatHandler.History)))

	mux.Handle("GET /providers", middleware.CorrelationID(enableCORS(app.listProviders)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	app.Handler = mux
	return app, nil
}

func (a *App) listProviders(w http.ResponseWriter, r *http.Request) {
	active := a.llmGateway.ActiveProvider()

	type providerInfo struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		Available   bool   `json:"available"`
		Active      bool   `json:"active"`
	}

	providers := make([]providerInfo, 0, len(llm.AllProviders))
	for _, p := range llm.AllProviders {
		providers = append(providers, providerInfo{
			Name:        string(p),
			DisplayName: p.DisplayName(),
			Available:   a.llmGateway.IsAvailable(p),
			Active:      p == active,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{
		"data": map[string]any{
			"active":    string(active),
			"providers": providers,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
