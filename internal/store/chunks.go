package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docvault/backend/internal/models"
)

type PgChunkStore struct {
	db *pgxpool.Pool
}

func NewChunkStore(db *pgxpool.Pool) *PgChunkStore {
	return &PgChunkStore{db: db}
}

func (s *PgChunkStore) InsertChunk(ctx context.Context, chunk *models.Chunk) error {
	// Re-ingestion re-derives the same id, so the row is overwritten rather
	// than duplicated.
	_, err := s.db.Exec(ctx,
		`INSERT INTO document_chunks (id, document_id, chunk_index, content, token_count, page)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET content = $4, token_count = $5, page = $6`,
		chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Content, chunk.TokenCount, chunk.Page,
	)
	if err != nil {
		return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
	}
	return nil
}

func (s *PgChunkStore) ChunkIDsByDocument(ctx context.Context, documentID uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index", documentID)
	if err != nil {
		return nil, fmt.Errorf("chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PgChunkStore) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := s.db.Exec(ctx, "DELETE FROM document_chunks WHERE document_id = $1", documentID)
	return err
}

func (s *PgChunkStore) FirstChunkText(ctx context.Context, documentIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(documentIDs) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT ON (document_id) document_id, content
		 FROM document_chunks WHERE document_id = ANY($1)
		 ORDER BY document_id, chunk_index`,
		documentIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("first chunks: %w", err)
	}
	defer rows.Close()

	snippets := make(map[uuid.UUID]string)
	for rows.Next() {
		var id uuid.UUID
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("scan first chunk: %w", err)
		}
		snippets[id] = content
	}
	return snippets, rows.Err()
}
