package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/docvault/backend/internal/config"
	"github.com/docvault/backend/internal/database"
	"github.com/docvault/backend/internal/embedding"
	"github.com/docvault/backend/internal/ingest"
	"github.com/docvault/backend/internal/llm"
	"github.com/docvault/backend/internal/queue"
	"github.com/docvault/backend/internal/queue/workers"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	docStore := store.NewDocumentStore(db)
	chunkStore := store.NewChunkStore(db)
	tagStore := store.NewTagStore(db)

	blobs := storage.NewSupabaseStore(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket)
	index := vectorstore.NewPgVectorIndex(db)
	gateway := llm.NewGateway(cfg.LLM)
	embedder := embedding.NewService(gateway, cfg.LLM.EmbeddingModel)

	pipeline := ingest.NewPipeline(
		docStore, chunkStore, tagStore, blobs, index, embedder,
		ingest.NewExtractor(gateway, cfg.LLM.VisionModel),
		ingest.NewTagger(gateway, tagStore, cfg.LLM.ChatModel),
		ingest.ChunkOptions{
			TargetTokens:  cfg.Ingest.TargetTokens,
			OverlapTokens: cfg.Ingest.OverlapTokens,
		},
	)

	qc := queue.NewClient(cfg.Redis)
	defer qc.Close()

	reclaimer := workers.NewReclaimer(docStore, qc, cfg.Ingest.ProcessingLease)
	go reclaimer.Run(ctx)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()
	registry.Register(queue.TypeDocumentIngest, asynq.HandlerFunc(workers.NewIngestWorker(pipeline).ProcessTask))

	go func() {
		<-ctx.Done()
		slog.Info("shutting down worker...")
		srv.Shutdown()
	}()

	slog.Info("starting worker", "concurrency", 10, "lease", cfg.Ingest.ProcessingLease.String())
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
	slog.Info("worker stopped")
}
