package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ragchat/internal/config"
	"ragchat/internal/index"
	"ragchat/internal/memory"
	"ragchat/internal/observability"
	"ragchat/internal/redis"
	"ragchat/internal/service/ai"
	"ragchat/internal/service/assistant"
	"ragchat/internal/storage"
	"ragchat/internal/worker"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	db       *sql.DB
	rdb      *redis.Client
	store    *index.ChunkStore
	embedder *index.OpenAIEmbedder
	builder  *index.Builder

	assistant *assistant.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg.BasicConfig.LogLevel)
	a := &app{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}

	a.db, err = storage.Open(cfg.Index.Driver, cfg.Index.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(a.db, cfg.Index.Driver); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	a.store = index.NewChunkStore(a.db)

	loader, err := index.NewFileLoader(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	splitter, err := index.NewSplitter(ctx, cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.embedder, err = index.NewOpenAIEmbedder(cfg.Embedding)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.builder, err = index.NewBuilder(index.BuilderConfig{
		Store:    a.store,
		Loader:   loader,
		Splitter: splitter,
		Embedder: a.embedder,
		Source:   cfg.Index.SourcePath,
		Logger:   logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("config loaded",
		"source", cfg.Index.SourcePath,
		"driver", cfg.Index.Driver,
		"provider", cfg.Chat.Provider,
		"memory", cfg.Memory.Backend,
	)
	return a, nil
}

// loadIndex bootstraps the vector index and publishes its size.
func (a *app) loadIndex(ctx context.Context) (*index.VectorIndex, error) {
	idx, err := a.builder.BuildOrLoad(ctx)
	if err != nil {
		if errors.Is(err, index.ErrIndexUnavailable) {
			return nil, fmt.Errorf("%w (source %s)", err, a.cfg.Index.SourcePath)
		}
		return nil, err
	}
	a.metrics.IndexChunks.Set(float64(idx.Len()))
	return idx, nil
}

// startAssistant wires retrieval, generation and memory on top of idx.
func (a *app) startAssistant(ctx context.Context, idx *index.VectorIndex) error {
	retriever, err := index.NewRetriever(idx, a.embedder, a.cfg.Index.TopK)
	if err != nil {
		return err
	}
	chatModel, err := ai.NewChatModel(ctx, a.cfg.Chat)
	if err != nil {
		return err
	}
	generator, err := ai.NewGenerator(chatModel, a.cfg.Generator.Facts)
	if err != nil {
		return err
	}

	if a.cfg.Memory.Backend == "redis" {
		a.rdb, err = redis.NewRedisClient(a.cfg.Redis)
		if err != nil {
			return fmt.Errorf("create redis client: %w", err)
		}
	}
	store, err := memory.New(a.cfg.Memory, a.rdb)
	if err != nil {
		return err
	}

	workers := worker.NewManager(worker.Config{
		IdleTimeout: time.Duration(a.cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
		Logger:      a.logger,
	})
	a.assistant, err = assistant.NewService(assistant.Config{
		Memory:    store,
		Retriever: retriever,
		Generator: generator,
		Workers:   workers,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
	if err != nil {
		_ = store.Close()
		return err
	}
	return nil
}

func (a *app) Close() {
	if a.assistant != nil {
		if err := a.assistant.Close(); err != nil {
			a.logger.Warn("close assistant", "error", err)
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
