package index

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50

	MetaChunkIndex = "chunk_index"
	MetaSource     = "source"
)

// paragraph, line, word, then any rune boundary
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts documents into overlapping chunks with the eino recursive
// splitter, sizes measured in runes. It numbers the chunks and records where
// each one came from.
type Splitter struct {
	inner document.Transformer
}

var _ document.Transformer = (*Splitter)(nil)

func NewSplitter(ctx context.Context, chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, chunkSize)
	}
	inner, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   chunkSize,
		OverlapSize: overlap,
		Separators:  defaultSeparators,
		LenFunc:     utf8.RuneCountInString,
	})
	if err != nil {
		return nil, fmt.Errorf("init splitter: %w", err)
	}
	return &Splitter{inner: inner}, nil
}

// Transform splits every source document. Chunk ids are "<doc id>#<n>" and
// chunk_index counts across all documents of one call. Blank chunks are dropped.
func (s *Splitter) Transform(ctx context.Context, src []*schema.Document, opts ...document.TransformerOption) ([]*schema.Document, error) {
	var out []*schema.Document
	next := 0
	for _, doc := range src {
		if doc == nil {
			continue
		}
		source := doc.ID
		if v, ok := doc.MetaData[MetaSource].(string); ok && v != "" {
			source = v
		}
		parts, err := s.inner.Transform(ctx, []*schema.Document{doc}, opts...)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", doc.ID, err)
		}
		i := 0
		for _, part := range parts {
			text := strings.TrimSpace(part.Content)
			if text == "" {
				continue
			}
			meta := make(map[string]any, len(doc.MetaData)+2)
			for k, v := range doc.MetaData {
				meta[k] = v
			}
			meta[MetaChunkIndex] = next
			meta[MetaSource] = source
			out = append(out, &schema.Document{
				ID:       fmt.Sprintf("%s#%d", doc.ID, i),
				Content:  text,
				MetaData: meta,
			})
			i++
			next++
		}
	}
	return out, nil
}

// SplitText returns the chunks of text in document order.
func (s *Splitter) SplitText(ctx context.Context, text string) ([]string, error) {
	docs, err := s.Transform(ctx, []*schema.Document{{ID: "text", Content: text}})
	if err != nil {
		return nil, err
	}
	chunks := make([]string, len(docs))
	for i, d := range docs {
		chunks[i] = d.Content
	}
	return chunks, nil
}
