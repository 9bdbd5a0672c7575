package index

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"ragchat/internal/observability"
	"ragchat/internal/storage"
)

var testVocabulary = []string{"go", "python", "kubernetes", "postgres", "rust", "teaching"}

// keywordEmbedder counts vocabulary words, giving predictable similarities.
type keywordEmbedder struct {
	calls int32
	texts int32
	err   error
}

var _ embedding.Embedder = (*keywordEmbedder)(nil)

func (e *keywordEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	atomic.AddInt32(&e.calls, 1)
	atomic.AddInt32(&e.texts, int32(len(texts)))
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, len(testVocabulary))
		words := strings.Fields(strings.ToLower(text))
		for _, w := range words {
			w = strings.Trim(w, ".,;:?!")
			for j, v := range testVocabulary {
				if w == v {
					vec[j]++
				}
			}
		}
		out[i] = vec
	}
	return out, nil
}

// staticLoader returns fixed documents, counting invocations.
type staticLoader struct {
	docs  []*schema.Document
	calls int32
}

func (l *staticLoader) Load(_ context.Context, src document.Source, _ ...document.LoaderOption) ([]*schema.Document, error) {
	atomic.AddInt32(&l.calls, 1)
	if len(l.docs) == 0 {
		return nil, errors.New("nothing to load")
	}
	out := make([]*schema.Document, len(l.docs))
	copy(out, l.docs)
	return out, nil
}

func newTestStore(t *testing.T) (*ChunkStore, string) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "index.db")
	return openTestStore(t, dsn), dsn
}

func openTestStore(t *testing.T, dsn string) *ChunkStore {
	t.Helper()
	db, err := storage.Open("sqlite3", dsn)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db, "sqlite3"))
	t.Cleanup(func() { db.Close() })
	return NewChunkStore(db)
}

func newTestBuilder(t *testing.T, store *ChunkStore, loader document.Loader, emb embedding.Embedder, source string) *Builder {
	t.Helper()
	splitter, err := NewSplitter(context.Background(), 60, 10)
	require.NoError(t, err)
	b, err := NewBuilder(BuilderConfig{
		Store:    store,
		Loader:   loader,
		Splitter: splitter,
		Embedder: emb,
		Source:   source,
		Logger:   observability.Discard(),
	})
	require.NoError(t, err)
	return b
}

const resumeText = "Jane writes Go services every day.\n\n" +
	"She also scripts in Python for data work.\n\n" +
	"Operations experience includes Kubernetes clusters.\n\n" +
	"Databases: Postgres tuning and migrations.\n\n" +
	"Hobby projects are written in Rust.\n\n" +
	"She enjoys teaching workshops."
