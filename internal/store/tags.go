package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docvault/backend/internal/apperr"
	"github.com/docvault/backend/internal/models"
)

type PgTagStore struct {
	db *pgxpool.Pool
}

func NewTagStore(db *pgxpool.Pool) *PgTagStore {
	return &PgTagStore{db: db}
}

const tagColumns = "id, workspace_id, name, category, usage_count, created_at"

func (s *PgTagStore) TopByUsage(ctx context.Context, workspaceID uuid.UUID, limit int) ([]models.Tag, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE workspace_id = $1
		 ORDER BY usage_count DESC, name LIMIT $2`,
		workspaceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top tags: %w", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

func (s *PgTagStore) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.Tag, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE workspace_id = $1 ORDER BY name`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

func (s *PgTagStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error) {
	var t models.Tag
	err := s.db.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1`, id).
		Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.Category, &t.UsageCount, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return &t, nil
}

func (s *PgTagStore) FindOrCreate(ctx context.Context, workspaceID uuid.UUID, name, category string) (*models.Tag, error) {
	var t models.Tag
	// Insert-or-fetch under the (workspace_id, name) unique constraint. The
	// no-op DO UPDATE makes RETURNING yield the existing row on conflict.
	err := s.db.QueryRow(ctx,
		`INSERT INTO tags (id, workspace_id, name, category)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (workspace_id, name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING `+tagColumns,
		uuid.New(), workspaceID, name, category,
	).Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.Category, &t.UsageCount, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("find or create tag %q: %w", name, err)
	}
	return &t, nil
}

func (s *PgTagStore) Attach(ctx context.Context, documentID, tagID uuid.UUID, source string, confidence *float64) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx,
		`INSERT INTO document_tags (document_id, tag_id, source, confidence)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (document_id, tag_id) DO NOTHING`,
		documentID, tagID, source, confidence,
	)
	if err != nil {
		return false, fmt.Errorf("attach tag: %w", err)
	}
	if res.RowsAffected() == 0 {
		return false, nil
	}

	// Counter moves only when the association row actually appeared, so
	// repeated attaches never double-count.
	if _, err := tx.Exec(ctx,
		"UPDATE tags SET usage_count = usage_count + 1 WHERE id = $1", tagID); err != nil {
		return false, fmt.Errorf("increment usage: %w", err)
	}

	return true, tx.Commit(ctx)
}

func (s *PgTagStore) Detach(ctx context.Context, documentID, tagID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx,
		"DELETE FROM document_tags WHERE document_id = $1 AND tag_id = $2", documentID, tagID)
	if err != nil {
		return fmt.Errorf("detach tag: %w", err)
	}
	if res.RowsAffected() == 0 {
		return nil
	}

	if _, err := tx.Exec(ctx,
		"UPDATE tags SET usage_count = GREATEST(usage_count - 1, 0) WHERE id = $1", tagID); err != nil {
		return fmt.Errorf("decrement usage: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PgTagStore) DetachAllForDocument(ctx context.Context, documentID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE tags SET usage_count = GREATEST(usage_count - 1, 0)
		 WHERE id IN (SELECT tag_id FROM document_tags WHERE document_id = $1)`,
		documentID); err != nil {
		return fmt.Errorf("decrement usages: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM document_tags WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("detach all: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PgTagStore) Rename(ctx context.Context, id uuid.UUID, name string) error {
	res, err := s.db.Exec(ctx, "UPDATE tags SET name = $1 WHERE id = $2", name, id)
	if err != nil {
		return fmt.Errorf("rename tag: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("tag %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *PgTagStore) Merge(ctx context.Context, srcID, dstID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Move associations; documents already carrying dst keep their existing
	// row and the src row is dropped by the conflict clause.
	if _, err := tx.Exec(ctx,
		`UPDATE document_tags SET tag_id = $1 WHERE tag_id = $2
		 AND document_id NOT IN (SELECT document_id FROM document_tags WHERE tag_id = $1)`,
		dstID, srcID); err != nil {
		return fmt.Errorf("repoint associations: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM document_tags WHERE tag_id = $1", srcID); err != nil {
		return fmt.Errorf("drop src associations: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE tags SET usage_count = (SELECT count(*) FROM document_tags WHERE tag_id = $1)
		 WHERE id = $1`, dstID); err != nil {
		return fmt.Errorf("recount dst usage: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM tags WHERE id = $1", srcID); err != nil {
		return fmt.Errorf("delete src tag: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PgTagStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.Exec(ctx, "DELETE FROM tags WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("tag %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *PgTagStore) ForDocuments(ctx context.Context, documentIDs []uuid.UUID) (map[uuid.UUID][]models.Tag, error) {
	if len(documentIDs) == 0 {
		return map[uuid.UUID][]models.Tag{}, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT dt.document_id, t.id, t.workspace_id, t.name, t.category, t.usage_count, t.created_at
		 FROM document_tags dt JOIN tags t ON t.id = dt.tag_id
		 WHERE dt.document_id = ANY($1)
		 ORDER BY t.name`,
		documentIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("tags for documents: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]models.Tag)
	for rows.Next() {
		var docID uuid.UUID
		var t models.Tag
		if err := rows.Scan(&docID, &t.ID, &t.WorkspaceID, &t.Name, &t.Category, &t.UsageCount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document tag: %w", err)
		}
		out[docID] = append(out[docID], t)
	}
	return out, rows.Err()
}

func scanTags(rows pgx.Rows) ([]models.Tag, error) {
	var tags []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.Category, &t.UsageCount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
