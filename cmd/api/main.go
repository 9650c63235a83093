package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docvault/backend/internal/api"
	"github.com/docvault/backend/internal/auth"
	"github.com/docvault/backend/internal/cache"
	"github.com/docvault/backend/internal/chat"
	"github.com/docvault/backend/internal/config"
	"github.com/docvault/backend/internal/database"
	"github.com/docvault/backend/internal/document"
	"github.com/docvault/backend/internal/embedding"
	"github.com/docvault/backend/internal/ingest"
	"github.com/docvault/backend/internal/llm"
	"github.com/docvault/backend/internal/queue"
	"github.com/docvault/backend/internal/search"
	"github.com/docvault/backend/internal/storage"
	"github.com/docvault/backend/internal/store"
	"github.com/docvault/backend/internal/vectorstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, caching and queueing degraded", "error", err)
	}
	defer rdb.Close()

	docStore := store.NewDocumentStore(db)
	chunkStore := store.NewChunkStore(db)
	tagStore := store.NewTagStore(db)
	chatStore := store.NewChatStore(db)

	blobs := storage.NewSupabaseStore(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket)
	index := vectorstore.NewPgVectorIndex(db)
	gateway := llm.NewGateway(cfg.LLM)
	embedder := embedding.NewService(gateway, cfg.LLM.EmbeddingModel)

	chunkOpts := ingest.ChunkOptions{
		TargetTokens:  cfg.Ingest.TargetTokens,
		OverlapTokens: cfg.Ingest.OverlapTokens,
	}
	pipeline := ingest.NewPipeline(
		docStore, chunkStore, tagStore, blobs, index, embedder,
		ingest.NewExtractor(gateway, cfg.LLM.VisionModel),
		ingest.NewTagger(gateway, tagStore, cfg.LLM.ChatModel),
		chunkOpts,
	)

	var scheduler document.IngestScheduler
	if cfg.Ingest.Mode == config.IngestModeInline {
		scheduler = queue.NewInlineScheduler(pipeline)
	} else {
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		scheduler = qc
	}

	docSvc := document.NewService(docStore, chunkStore, tagStore, blobs, index, scheduler)
	retriever := search.NewRetriever(embedder, index, docStore, chunkStore, tagStore, cache.NewCache(rdb))
	chatSvc := chat.NewService(chatStore, docStore, index, embedder, gateway, cfg.LLM.ChatModel)

	handler := api.NewRouter(api.Deps{
		DB:         db,
		Redis:      rdb,
		Cfg:        cfg,
		Authorizer: auth.NewJWTAuthorizer(cfg.Auth.JWTSecret),
		Documents:  docSvc,
		Retriever:  retriever,
		Chat:       chatSvc,
		DocStore:   docStore,
		TagStore:   tagStore,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "ingest_mode", cfg.Ingest.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
