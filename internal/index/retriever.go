package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

// DefaultTopK is the number of chunks joined into the answer context.
const DefaultTopK = 3

// ContextSeparator separates chunks in the joined context.
const ContextSeparator = "\n\n"

// Retriever maps a question to the most similar indexed chunks.
type Retriever struct {
	index    *VectorIndex
	embedder embedding.Embedder
	topK     int
}

var _ retriever.Retriever = (*Retriever)(nil)

func NewRetriever(idx *VectorIndex, embedder embedding.Embedder, topK int) (*Retriever, error) {
	if idx == nil || embedder == nil {
		return nil, errors.New("retriever requires an index and an embedder")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{index: idx, embedder: embedder, topK: topK}, nil
}

// Retrieve returns the top-k chunks for query, best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := r.topK
	o := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	k := topK
	if o.TopK != nil {
		k = *o.TopK
	}
	if r.index.Len() == 0 {
		return nil, nil
	}

	vectors, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	docs, err := r.index.Search(vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return docs, nil
}

// Context returns the retrieved chunk texts joined by a blank line.
func (r *Retriever) Context(ctx context.Context, question string) (string, error) {
	docs, err := r.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, ContextSeparator), nil
}
