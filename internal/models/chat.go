package models

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	ID          uuid.UUID `json:"id" db:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id" db:"workspace_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Title       string    `json:"title,omitempty" db:"title"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type ChatMessage struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	SessionID uuid.UUID    `json:"session_id" db:"session_id"`
	Role      string       `json:"role" db:"role"`
	Content   string       `json:"content" db:"content"`
	Sources   []ChatSource `json:"sources,omitempty" db:"sources"`
	Feedback  string       `json:"feedback,omitempty" db:"feedback"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// ChatSource is one citation attached to an assistant message. It is a
// point-in-time snapshot of the retrieval result used for that answer and is
// never recomputed.
type ChatSource struct {
	DocumentID uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
	ChunkID    string    `json:"chunk_id"`
	Snippet    string    `json:"snippet"`
	Score      float64   `json:"score"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	FeedbackUp   = "up"
	FeedbackDown = "down"
)
