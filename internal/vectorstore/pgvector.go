package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PgVectorIndex struct {
	db *pgxpool.Pool
}

func NewPgVectorIndex(db *pgxpool.Pool) *PgVectorIndex {
	return &PgVectorIndex{db: db}
}

func (s *PgVectorIndex) Upsert(ctx context.Context, entries []Entry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		embedding := pgvector.NewVector(e.Embedding)

		_, err := tx.Exec(ctx,
			`INSERT INTO vector_entries (id, document_id, workspace_id, chunk_index, snippet, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET snippet = $5, embedding = $6`,
			e.ID, e.Metadata.DocumentID, e.Metadata.WorkspaceID, e.Metadata.ChunkIndex, e.Metadata.Snippet, embedding,
		)
		if err != nil {
			return fmt.Errorf("upsert vector %s: %w", e.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgVectorIndex) Query(ctx context.Context, vector []float32, topK int, filter QueryFilter) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}
	if len(filter.WorkspaceIDs) == 0 {
		return nil, fmt.Errorf("query requires at least one workspace")
	}

	embedding := pgvector.NewVector(vector)

	rows, err := s.db.Query(ctx,
		`SELECT id, document_id, workspace_id, chunk_index, snippet,
		        1 - (embedding <=> $1) AS score
		 FROM vector_entries
		 WHERE workspace_id = ANY($2)
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		embedding, filter.WorkspaceIDs, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Metadata.DocumentID, &m.Metadata.WorkspaceID, &m.Metadata.ChunkIndex, &m.Metadata.Snippet, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PgVectorIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, "DELETE FROM vector_entries WHERE id = ANY($1)", ids)
	return err
}
