package index

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResumeRetriever(t *testing.T) (*Retriever, *keywordEmbedder) {
	t.Helper()
	store, _ := newTestStore(t)
	emb := &keywordEmbedder{}
	idx, err := newTestBuilder(t, store, resumeLoader(), emb, writeSource(t)).BuildOrLoad(context.Background())
	require.NoError(t, err)
	r, err := NewRetriever(idx, emb, DefaultTopK)
	require.NoError(t, err)
	return r, emb
}

func TestRetrieverJoinsTopThree(t *testing.T) {
	r, _ := newResumeRetriever(t)

	got, err := r.Context(context.Background(), "Which languages: Go, Python or Rust?")
	require.NoError(t, err)

	want := strings.Join([]string{
		"Jane writes Go services every day.",
		"She also scripts in Python for data work.",
		"Hobby projects are written in Rust.",
	}, "\n\n")
	assert.Equal(t, want, got)
}

func TestRetrieverIsDeterministic(t *testing.T) {
	r, _ := newResumeRetriever(t)
	ctx := context.Background()

	first, err := r.Context(ctx, "kubernetes and postgres")
	require.NoError(t, err)
	second, err := r.Context(ctx, "kubernetes and postgres")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "Operations experience includes Kubernetes clusters."))
}

func TestRetrieverRanksAndBounds(t *testing.T) {
	r, _ := newResumeRetriever(t)

	docs, err := r.Retrieve(context.Background(), "")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(docs), DefaultTopK)

	docs, err = r.Retrieve(context.Background(), "teaching teaching go")
	require.NoError(t, err)
	require.Len(t, docs, DefaultTopK)
	assert.Equal(t, "She enjoys teaching workshops.", docs[0].Content)
	for i := 1; i < len(docs); i++ {
		assert.GreaterOrEqual(t, docs[i-1].Score(), docs[i].Score())
	}

	docs, err = r.Retrieve(context.Background(), "go", retriever.WithTopK(1))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestRetrieverEmptyIndex(t *testing.T) {
	idx, err := NewVectorIndex(nil)
	require.NoError(t, err)
	emb := &keywordEmbedder{}
	r, err := NewRetriever(idx, emb, DefaultTopK)
	require.NoError(t, err)

	got, err := r.Context(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Zero(t, atomic.LoadInt32(&emb.calls))
}

func TestRetrieverPropagatesEmbeddingFailure(t *testing.T) {
	r, emb := newResumeRetriever(t)
	boom := errors.New("embedding backend down")
	emb.err = boom

	_, err := r.Context(context.Background(), "go")
	assert.ErrorIs(t, err, boom)
}
