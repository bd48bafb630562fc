package storage

import (
	"context"
	"fmt"
)

// ChunkRecord is one embedded slice of a knowledge document, stored in a
// namespace scoped to (owner, document) so deletes never cross documents.
type ChunkRecord struct {
	ChunkID         string
	Namespace       string
	DocID           string
	OwnerID         string
	ChunkIndex      int
	Text            string
	Category        string
	Priority        int
	EmbeddingVector *string
}

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) UpsertChunks(ctx context.Context, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx upsert chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO kb_chunks (chunk_id, namespace, doc_id, owner_id, chunk_index, text, category, priority, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CASE WHEN $9::text IS NULL THEN NULL ELSE $9::vector END)
ON CONFLICT (chunk_id)
DO UPDATE SET
  text = EXCLUDED.text,
  category = EXCLUDED.category,
  priority = EXCLUDED.priority,
  embedding = COALESCE(EXCLUDED.embedding, kb_chunks.embedding)`,
			c.ChunkID, c.Namespace, c.DocID, c.OwnerID, c.ChunkIndex, c.Text, c.Category, c.Priority, c.EmbeddingVector,
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

// DeleteNamespace removes every vector in one document's namespace and
// nothing else.
func (r *ChunkRepo) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM kb_chunks WHERE namespace=$1`, namespace)
	if err != nil {
		return fmt.Errorf("delete namespace %s: %w", namespace, err)
	}
	return nil
}

func (r *ChunkRepo) CountNamespace(ctx context.Context, namespace string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM kb_chunks WHERE namespace=$1`, namespace).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count namespace %s: %w", namespace, err)
	}
	return n, nil
}
