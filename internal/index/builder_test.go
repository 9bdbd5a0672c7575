package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resume.txt")
	require.NoError(t, os.WriteFile(path, []byte(resumeText), 0o600))
	return path
}

func resumeLoader() *staticLoader {
	return &staticLoader{docs: []*schema.Document{{ID: "resume.txt", Content: resumeText}}}
}

func TestBuilderBuildsAndPersists(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	emb := &keywordEmbedder{}
	b := newTestBuilder(t, store, resumeLoader(), emb, writeSource(t))

	idx, err := b.BuildOrLoad(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, idx.Len())

	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int32(6), atomic.LoadInt32(&emb.texts))
}

func TestBuilderSecondCallDoesNotRebuild(t *testing.T) {
	ctx := context.Background()
	store, dsn := newTestStore(t)
	source := writeSource(t)

	loader := resumeLoader()
	emb := &keywordEmbedder{}
	first := newTestBuilder(t, store, loader, emb, source)
	idx1, err := first.BuildOrLoad(ctx)
	require.NoError(t, err)
	idx2, err := first.BuildOrLoad(ctx)
	require.NoError(t, err)
	assert.Same(t, idx1, idx2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&emb.calls))

	// a fresh process with the index already persisted only loads it
	loader2 := resumeLoader()
	emb2 := &keywordEmbedder{}
	second := newTestBuilder(t, openTestStore(t, dsn), loader2, emb2, source)
	idx3, err := second.BuildOrLoad(ctx)
	require.NoError(t, err)
	assert.Equal(t, idx1.Len(), idx3.Len())
	assert.Zero(t, atomic.LoadInt32(&loader2.calls))
	assert.Zero(t, atomic.LoadInt32(&emb2.calls))
}

func TestBuilderUnavailableWithoutIndexOrSource(t *testing.T) {
	store, _ := newTestStore(t)
	b := newTestBuilder(t, store, resumeLoader(), &keywordEmbedder{}, filepath.Join(t.TempDir(), "missing.docx"))

	_, err := b.BuildOrLoad(context.Background())
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.ErrorIs(t, err, ErrSourceMissing)
}

func TestBuilderLoadsWithoutSourceWhenPersisted(t *testing.T) {
	ctx := context.Background()
	store, dsn := newTestStore(t)
	_, err := newTestBuilder(t, store, resumeLoader(), &keywordEmbedder{}, writeSource(t)).BuildOrLoad(ctx)
	require.NoError(t, err)

	b := newTestBuilder(t, openTestStore(t, dsn), resumeLoader(), &keywordEmbedder{}, filepath.Join(t.TempDir(), "gone.docx"))
	idx, err := b.BuildOrLoad(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, idx.Len())
}

func TestBuilderRebuildsCorruptIndex(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	source := writeSource(t)
	_, err := newTestBuilder(t, store, resumeLoader(), &keywordEmbedder{}, source).BuildOrLoad(ctx)
	require.NoError(t, err)

	_, err = store.db.Exec(`UPDATE chunks SET embedding = 'not json'`)
	require.NoError(t, err)

	emb := &keywordEmbedder{}
	idx, err := newTestBuilder(t, store, resumeLoader(), emb, source).BuildOrLoad(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, idx.Len())
	assert.Equal(t, int32(1), atomic.LoadInt32(&emb.calls))
}

func TestBuilderEmbeddingFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	emb := &keywordEmbedder{err: errors.New("quota exceeded")}
	b := newTestBuilder(t, store, resumeLoader(), emb, writeSource(t))

	_, err := b.BuildOrLoad(ctx)
	require.Error(t, err)
	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	emb.err = nil
	idx, err := b.BuildOrLoad(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, idx.Len())
}

func TestBuilderConcurrentCallsBuildOnce(t *testing.T) {
	store, _ := newTestStore(t)
	loader := resumeLoader()
	b := newTestBuilder(t, store, loader, &keywordEmbedder{}, writeSource(t))

	var wg sync.WaitGroup
	results := make([]*VectorIndex, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := b.BuildOrLoad(context.Background())
			if err == nil {
				results[i] = idx
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))
	for _, idx := range results {
		assert.Same(t, results[0], idx)
	}
}
