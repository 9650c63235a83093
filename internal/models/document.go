package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID           uuid.UUID `json:"id" db:"id"`
	WorkspaceID  uuid.UUID `json:"workspace_id" db:"workspace_id"`
	Title        string    `json:"title" db:"title"`
	FileKey      string    `json:"file_key,omitempty" db:"file_key"`
	TextKey      string    `json:"text_key,omitempty" db:"text_key"`
	ContentHash  string    `json:"content_hash" db:"content_hash"`
	MimeType     string    `json:"mime_type,omitempty" db:"mime_type"`
	SizeBytes    int64     `json:"size_bytes,omitempty" db:"size_bytes"`
	PageCount    int       `json:"page_count,omitempty" db:"page_count"`
	Status       string    `json:"status" db:"status"`
	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	// DegradedReason is set when extraction fell back to a placeholder or a
	// vision transcription; the document is still ready.
	DegradedReason string     `json:"degraded_reason,omitempty" db:"degraded_reason"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Chunk is one embedded segment of a document's extracted text. Its ID is
// derived from the document and the chunk ordinal so that the row and its
// vector-index entry share an identity.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	DocumentID uuid.UUID `json:"document_id" db:"document_id"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Content    string    `json:"content" db:"content"`
	TokenCount int       `json:"token_count" db:"token_count"`
	Page       *int      `json:"page,omitempty" db:"page"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ChunkID derives the identity shared by a chunk row and its vector entry.
func ChunkID(documentID uuid.UUID, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}

const (
	DocStatusPending    = "pending"
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
	DocStatusError      = "error"
)
