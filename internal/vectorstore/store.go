package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

// Entry is one indexed vector. The ID matches the chunk row it came from
// ({document_id}_{chunk_index}) so re-ingestion overwrites in place.
type Entry struct {
	ID        string
	Embedding []float32
	Metadata  Metadata
}

// Metadata is the payload stored alongside each vector, enough to render a
// search hit without a chunk lookup.
type Metadata struct {
	DocumentID  uuid.UUID `json:"document_id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	ChunkIndex  int       `json:"chunk_index"`
	Snippet     string    `json:"snippet"`
}

// QueryFilter scopes a nearest-neighbor query. WorkspaceIDs must be
// non-empty; a query never crosses workspaces the caller cannot see.
type QueryFilter struct {
	WorkspaceIDs []uuid.UUID
}

type Match struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

type VectorIndex interface {
	Upsert(ctx context.Context, entries []Entry) error
	Query(ctx context.Context, vector []float32, topK int, filter QueryFilter) ([]Match, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}
