package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/embedding"

	"ragchat/internal/models"
)

// ErrIndexUnavailable means neither a persisted index nor the source
// document could be used. No request can be served without an index.
var ErrIndexUnavailable = errors.New("index unavailable")

// Builder bootstraps the vector index once: it loads the persisted copy when
// present, and otherwise builds it from the source document and persists it.
type Builder struct {
	store    *ChunkStore
	loader   document.Loader
	splitter document.Transformer
	embedder embedding.Embedder
	source   string
	logger   *slog.Logger

	mu    sync.Mutex
	index *VectorIndex
}

type BuilderConfig struct {
	Store    *ChunkStore
	Loader   document.Loader
	Splitter document.Transformer
	Embedder embedding.Embedder
	// Source is the path of the document to index.
	Source string
	Logger *slog.Logger
}

func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.Store == nil || cfg.Loader == nil || cfg.Splitter == nil || cfg.Embedder == nil {
		return nil, errors.New("index builder requires store, loader, splitter and embedder")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:    cfg.Store,
		loader:   cfg.Loader,
		splitter: cfg.Splitter,
		embedder: cfg.Embedder,
		source:   cfg.Source,
		logger:   logger,
	}, nil
}

// BuildOrLoad returns the index, constructing it on the first successful
// call. Concurrent callers wait for the same construction.
func (b *Builder) BuildOrLoad(ctx context.Context) (*VectorIndex, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index != nil {
		return b.index, nil
	}

	exists, err := b.store.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		idx, err := b.load(ctx)
		if err == nil {
			b.index = idx
			return idx, nil
		}
		b.logger.Warn("persisted index unusable, rebuilding", "error", err)
	}

	if err := sourceExists(b.source); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	idx, err := b.build(ctx)
	if err != nil {
		return nil, err
	}
	b.index = idx
	return idx, nil
}

func (b *Builder) load(ctx context.Context) (*VectorIndex, error) {
	start := time.Now()
	chunks, err := b.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := NewVectorIndex(chunks)
	if err != nil {
		return nil, fmt.Errorf("index corrupt: %w", err)
	}
	b.logger.Info("index loaded", "chunks", idx.Len(), "elapsed", time.Since(start))
	return idx, nil
}

func (b *Builder) build(ctx context.Context) (*VectorIndex, error) {
	start := time.Now()
	docs, err := b.loader.Load(ctx, document.Source{URI: b.source})
	if err != nil {
		return nil, fmt.Errorf("load source %s: %w", b.source, err)
	}
	parts, err := b.splitter.Transform(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("split source: %w", err)
	}

	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.Content
	}
	var vectors [][]float64
	if len(texts) > 0 {
		vectors, err = b.embedder.EmbedStrings(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(texts))
		}
	}

	chunks := make([]models.Chunk, len(parts))
	for i, p := range parts {
		source, _ := p.MetaData[MetaSource].(string)
		if source == "" {
			source = b.source
		}
		chunks[i] = models.Chunk{
			ID:        p.ID,
			Index:     i,
			Source:    source,
			Content:   p.Content,
			Embedding: vectors[i],
		}
	}
	idx, err := NewVectorIndex(chunks)
	if err != nil {
		return nil, err
	}
	if err := b.store.Save(ctx, chunks); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	b.logger.Info("index built", "source", b.source, "documents", len(docs), "chunks", len(chunks), "elapsed", time.Since(start))
	return idx, nil
}
