package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docvault/backend/internal/apperr"
	"github.com/docvault/backend/internal/models"
)

type PgDocumentStore struct {
	db *pgxpool.Pool
}

func NewDocumentStore(db *pgxpool.Pool) *PgDocumentStore {
	return &PgDocumentStore{db: db}
}

const docColumns = `id, workspace_id, title, file_key, text_key, content_hash, mime_type,
	size_bytes, page_count, status, error_message, degraded_reason, created_by, created_at, updated_at`

func (s *PgDocumentStore) Insert(ctx context.Context, doc *models.Document) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO documents (id, workspace_id, title, file_key, content_hash, mime_type, size_bytes, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		doc.ID, doc.WorkspaceID, doc.Title, doc.FileKey, doc.ContentHash, doc.MimeType, doc.SizeBytes, doc.Status, doc.CreatedBy,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert document: %w", apperr.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// isUniqueViolation reports SQLSTATE 23505, a lost insert race on a
// uniqueness constraint.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PgDocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	row := s.db.QueryRow(ctx, `SELECT `+docColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (s *PgDocumentStore) FindByHash(ctx context.Context, workspaceID uuid.UUID, hash string) (*models.Document, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+docColumns+` FROM documents WHERE workspace_id = $1 AND content_hash = $2`,
		workspaceID, hash,
	)
	return scanDocument(row)
}

func (s *PgDocumentStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *PgDocumentStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, models.DocStatusProcessing, "")
}

func (s *PgDocumentStore) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	return s.setStatus(ctx, id, models.DocStatusError, message)
}

func (s *PgDocumentStore) setStatus(ctx context.Context, id uuid.UUID, status, message string) error {
	_, err := s.db.Exec(ctx,
		"UPDATE documents SET status = $1, error_message = $2, updated_at = now() WHERE id = $3",
		status, message, id,
	)
	if err != nil {
		return fmt.Errorf("set status %s: %w", status, err)
	}
	return nil
}

func (s *PgDocumentStore) MarkReady(ctx context.Context, id uuid.UUID, textKey string, pageCount int, degradedReason string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE documents SET status = $1, error_message = '', text_key = $2, page_count = $3, degraded_reason = $4, updated_at = now()
		 WHERE id = $5`,
		models.DocStatusReady, textKey, pageCount, degradedReason, id,
	)
	if err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	return nil
}

func (s *PgDocumentStore) Search(ctx context.Context, f SearchFilter, limit, offset int) ([]models.Document, error) {
	where, args := facetConditions(f, nil)
	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT %s FROM documents d WHERE %s ORDER BY d.created_at DESC LIMIT $%d OFFSET $%d`,
		prefixColumns("d"), where, len(args)-1, len(args),
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (s *PgDocumentStore) Count(ctx context.Context, f SearchFilter) (int, error) {
	where, args := facetConditions(f, nil)
	var count int
	err := s.db.QueryRow(ctx, "SELECT count(*) FROM documents d WHERE "+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func (s *PgDocumentStore) FilterByIDs(ctx context.Context, ids []uuid.UUID, f SearchFilter) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := []any{ids}
	where, args := facetConditions(f, args)
	query := fmt.Sprintf(
		`SELECT %s FROM documents d WHERE d.id = ANY($1) AND %s`,
		prefixColumns("d"), where,
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (s *PgDocumentStore) TitlesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	rows, err := s.db.Query(ctx, "SELECT id, title FROM documents WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("titles by ids: %w", err)
	}
	defer rows.Close()

	titles := make(map[uuid.UUID]string, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles[id] = title
	}
	return titles, rows.Err()
}

func (s *PgDocumentStore) ReclaimStuck(ctx context.Context, lease time.Duration) ([]models.Document, error) {
	rows, err := s.db.Query(ctx,
		`UPDATE documents SET status = $1, updated_at = now()
		 WHERE status = $2 AND updated_at < now() - $3::interval
		 RETURNING `+docColumns,
		models.DocStatusPending, models.DocStatusProcessing, fmt.Sprintf("%d seconds", int(lease.Seconds())),
	)
	if err != nil {
		return nil, fmt.Errorf("reclaim stuck documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// facetConditions renders f as a WHERE clause over alias d, appending to any
// preseeded args (FilterByIDs passes the id set as $1).
func facetConditions(f SearchFilter, args []any) (string, []any) {
	var conds []string

	args = append(args, f.WorkspaceIDs)
	conds = append(conds, fmt.Sprintf("d.workspace_id = ANY($%d)", len(args)))

	if f.Text != "" {
		args = append(args, "%"+f.Text+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			`(d.title ILIKE $%d OR EXISTS (
				SELECT 1 FROM document_chunks c WHERE c.document_id = d.id AND c.content ILIKE $%d))`, n, n))
	}

	for _, name := range f.TagNames {
		args = append(args, name)
		conds = append(conds, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM document_tags dt
			  JOIN tags t ON t.id = dt.tag_id
			  WHERE dt.document_id = d.id AND t.name = $%d)`, len(args)))
	}

	if f.MimeFamily != "" {
		if strings.Contains(f.MimeFamily, "/") {
			args = append(args, f.MimeFamily)
			conds = append(conds, fmt.Sprintf("d.mime_type = $%d", len(args)))
		} else {
			args = append(args, f.MimeFamily+"/%")
			conds = append(conds, fmt.Sprintf("d.mime_type LIKE $%d", len(args)))
		}
	}

	if f.CreatedAfter != nil {
		args = append(args, *f.CreatedAfter)
		conds = append(conds, fmt.Sprintf("d.created_at >= $%d", len(args)))
	}
	if f.CreatedBefore != nil {
		args = append(args, *f.CreatedBefore)
		conds = append(conds, fmt.Sprintf("d.created_at <= $%d", len(args)))
	}

	return strings.Join(conds, " AND "), args
}

func prefixColumns(alias string) string {
	cols := strings.Split(docColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.WorkspaceID, &d.Title, &d.FileKey, &d.TextKey, &d.ContentHash,
		&d.MimeType, &d.SizeBytes, &d.PageCount, &d.Status, &d.ErrorMessage, &d.DegradedReason,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &d, nil
}

func scanDocuments(rows pgx.Rows) ([]models.Document, error) {
	var docs []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}
