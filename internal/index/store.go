package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ragchat/internal/models"
)

const (
	metaBuiltAt    = "built_at"
	metaChunkCount = "chunk_count"
)

// ChunkStore persists the chunks and embeddings of one index. The built_at
// marker is written in the same transaction as the chunks, so its presence
// means a complete index is stored.
type ChunkStore struct {
	db *sql.DB
}

func NewChunkStore(db *sql.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// Exists reports whether a completed index has been persisted.
func (s *ChunkStore) Exists(ctx context.Context) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT meta_value FROM index_meta WHERE meta_key = ?`, metaBuiltAt,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check index marker: %w", err)
	}
	return true, nil
}

// Load returns every stored chunk ordered by chunk index.
func (s *ChunkStore) Load(ctx context.Context) ([]models.Chunk, error) {
	var expected string
	if err := s.db.QueryRowContext(ctx,
		`SELECT meta_value FROM index_meta WHERE meta_key = ?`, metaChunkCount,
	).Scan(&expected); err != nil {
		return nil, fmt.Errorf("read chunk count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chunk_index, source, content, embedding FROM chunks ORDER BY chunk_index ASC`)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var (
			c   models.Chunk
			raw string
		)
		if err := rows.Scan(&c.ID, &c.Index, &c.Source, &c.Content, &raw); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &c.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding of chunk %s: %w", c.ID, err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	if strconv.Itoa(len(chunks)) != expected {
		return nil, fmt.Errorf("index corrupt: expected %s chunks, found %d", expected, len(chunks))
	}
	return chunks, nil
}

// Save replaces the stored index with chunks.
func (s *ChunkStore) Save(ctx context.Context, chunks []models.Chunk) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM index_meta`); err != nil {
		return fmt.Errorf("clear index meta: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, chunk_index, source, content, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()
	for _, c := range chunks {
		var vec []byte
		vec, err = json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding of chunk %s: %w", c.ID, err)
		}
		if _, err = stmt.ExecContext(ctx, c.ID, c.Index, c.Source, c.Content, string(vec)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	meta := map[string]string{
		metaChunkCount: strconv.Itoa(len(chunks)),
		metaBuiltAt:    time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err = tx.ExecContext(ctx, `INSERT INTO index_meta (meta_key, meta_value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write index meta %s: %w", k, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

// Clear drops the completion marker so the next bootstrap rebuilds.
func (s *ChunkStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM index_meta WHERE meta_key = ?`, metaBuiltAt); err != nil {
		return fmt.Errorf("clear index marker: %w", err)
	}
	return nil
}
