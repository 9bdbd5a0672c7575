package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/cloudwego/eino/schema"

	"ragchat/internal/models"
)

// VectorIndex is an exact cosine-similarity index over a fixed set of
// chunks. It is never mutated after construction and is safe for
// concurrent readers.
type VectorIndex struct {
	chunks []models.Chunk
	norms  []float64
	dim    int
}

func NewVectorIndex(chunks []models.Chunk) (*VectorIndex, error) {
	idx := &VectorIndex{
		chunks: make([]models.Chunk, len(chunks)),
		norms:  make([]float64, len(chunks)),
	}
	copy(idx.chunks, chunks)
	for i, c := range idx.chunks {
		if i == 0 {
			idx.dim = len(c.Embedding)
		} else if len(c.Embedding) != idx.dim {
			return nil, fmt.Errorf("chunk %s has dimension %d, want %d", c.ID, len(c.Embedding), idx.dim)
		}
		idx.norms[i] = norm(c.Embedding)
	}
	return idx, nil
}

func (x *VectorIndex) Len() int {
	return len(x.chunks)
}

// Search returns at most k chunks ranked by similarity descending. Equal
// scores keep chunk order, so the same query always yields the same result.
func (x *VectorIndex) Search(query []float64, k int) ([]*schema.Document, error) {
	if len(x.chunks) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), x.dim)
	}

	type scored struct {
		pos   int
		score float64
	}
	qn := norm(query)
	results := make([]scored, len(x.chunks))
	for i, c := range x.chunks {
		results[i] = scored{pos: i, score: cosine(query, c.Embedding, qn, x.norms[i])}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if k > len(results) {
		k = len(results)
	}

	docs := make([]*schema.Document, 0, k)
	for _, r := range results[:k] {
		c := x.chunks[r.pos]
		doc := &schema.Document{
			ID:      c.ID,
			Content: c.Content,
			MetaData: map[string]any{
				MetaChunkIndex: c.Index,
				MetaSource:     c.Source,
			},
		}
		docs = append(docs, doc.WithScore(r.score))
	}
	return docs, nil
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float64, an, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (an * bn)
}
