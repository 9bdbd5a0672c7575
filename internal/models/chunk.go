package models

// Chunk is a fragment of a source document together with its embedding.
type Chunk struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"embedding,omitempty"`
}
