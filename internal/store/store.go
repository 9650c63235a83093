// Package store holds the relational metadata contracts the pipeline,
// retriever, and chat loop consume, plus their Postgres implementations.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/docvault/backend/internal/models"
)

// SearchFilter is the faceted side of document search. Zero values mean "no
// constraint" except WorkspaceIDs, which must always scope the query.
type SearchFilter struct {
	WorkspaceIDs  []uuid.UUID
	Text          string // substring match over title and chunk text
	TagNames      []string
	MimeFamily    string // e.g. "image", "application/pdf"
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

type DocumentStore interface {
	Insert(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	FindByHash(ctx context.Context, workspaceID uuid.UUID, hash string) (*models.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error

	MarkProcessing(ctx context.Context, id uuid.UUID) error
	// MarkReady records the extracted-text key and, when extraction had to
	// degrade, the reason — visible for operators, not an error state.
	MarkReady(ctx context.Context, id uuid.UUID, textKey string, pageCount int, degradedReason string) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error

	// Search runs the pure faceted path: newest first, caller passes
	// limit+1 to detect a further page.
	Search(ctx context.Context, f SearchFilter, limit, offset int) ([]models.Document, error)
	// Count is issued only for the pure faceted path.
	Count(ctx context.Context, f SearchFilter) (int, error)
	// FilterByIDs returns the subset of ids whose documents satisfy the
	// facet filter, in no particular order. Used to post-filter semantic
	// candidates without re-ranking them.
	FilterByIDs(ctx context.Context, ids []uuid.UUID, f SearchFilter) ([]models.Document, error)

	TitlesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)

	// ReclaimStuck resets documents left in processing longer than the
	// lease back to pending and returns them for re-enqueueing.
	ReclaimStuck(ctx context.Context, lease time.Duration) ([]models.Document, error)
}

type ChunkStore interface {
	InsertChunk(ctx context.Context, chunk *models.Chunk) error
	ChunkIDsByDocument(ctx context.Context, documentID uuid.UUID) ([]string, error)
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
	// FirstChunkText returns a display snippet per document for results that
	// did not arrive through the vector index.
	FirstChunkText(ctx context.Context, documentIDs []uuid.UUID) (map[uuid.UUID]string, error)
}

type TagStore interface {
	TopByUsage(ctx context.Context, workspaceID uuid.UUID, limit int) ([]models.Tag, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.Tag, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tag, error)
	FindOrCreate(ctx context.Context, workspaceID uuid.UUID, name, category string) (*models.Tag, error)

	// Attach inserts the (document, tag) association if absent and bumps the
	// usage counter only when a row was actually inserted. Returns whether
	// the association was created.
	Attach(ctx context.Context, documentID, tagID uuid.UUID, source string, confidence *float64) (bool, error)
	Detach(ctx context.Context, documentID, tagID uuid.UUID) error
	DetachAllForDocument(ctx context.Context, documentID uuid.UUID) error

	Rename(ctx context.Context, id uuid.UUID, name string) error
	// Merge re-points every association from src onto dst, recounts dst's
	// usage, and deletes src. Owner-only at the API boundary.
	Merge(ctx context.Context, srcID, dstID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error

	ForDocuments(ctx context.Context, documentIDs []uuid.UUID) (map[uuid.UUID][]models.Tag, error)
}

type ChatStore interface {
	CreateSession(ctx context.Context, s *models.ChatSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)
	ListSessions(ctx context.Context, workspaceID, userID uuid.UUID) ([]models.ChatSession, error)
	TouchSession(ctx context.Context, id uuid.UUID) error
	DeleteSession(ctx context.Context, id uuid.UUID) error

	InsertMessage(ctx context.Context, m *models.ChatMessage) error
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error)
	// RecentMessages returns the last limit messages, oldest first.
	RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatMessage, error)
	SetFeedback(ctx context.Context, messageID uuid.UUID, feedback string) error
}
