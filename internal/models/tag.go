package models

import (
	"time"

	"github.com/google/uuid"
)

type Tag struct {
	ID          uuid.UUID `json:"id" db:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id" db:"workspace_id"`
	Name        string    `json:"name" db:"name"`
	Category    string    `json:"category,omitempty" db:"category"`
	UsageCount  int       `json:"usage_count" db:"usage_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// DocumentTag links a document to a tag. Confidence is only present when the
// association came from auto-tagging.
type DocumentTag struct {
	DocumentID uuid.UUID `json:"document_id" db:"document_id"`
	TagID      uuid.UUID `json:"tag_id" db:"tag_id"`
	Source     string    `json:"source" db:"source"`
	Confidence *float64  `json:"confidence,omitempty" db:"confidence"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

const (
	TagSourceAISuggested  = "ai_suggested"
	TagSourceUserAdded    = "user_added"
	TagSourceUserModified = "user_modified"
)

// TagCategoryTopic is the default category for user-added tags.
const TagCategoryTopic = "topic"

// TagCategories is the closed category set the tagger may assign.
var TagCategories = []string{"document_type", "vendor", "date", "amount", "person", TagCategoryTopic}

func ValidTagCategory(c string) bool {
	for _, v := range TagCategories {
		if v == c {
			return true
		}
	}
	return false
}
