package queue

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/docvault/backend/internal/models"
)

// Processor runs the ingestion pipeline for one document.
type Processor interface {
	Process(ctx context.Context, documentID uuid.UUID) error
}

// InlineScheduler runs the ingestion pipeline synchronously inside the
// calling request, so the upload response carries whatever terminal status
// processing reached. Meant for single-binary deployments and tests.
type InlineScheduler struct {
	pipeline Processor
}

func NewInlineScheduler(p Processor) *InlineScheduler {
	return &InlineScheduler{pipeline: p}
}

func (s *InlineScheduler) Schedule(ctx context.Context, doc *models.Document) error {
	// A pipeline failure is recorded on the document itself; the upload
	// still succeeds and reports the error status.
	if err := s.pipeline.Process(ctx, doc.ID); err != nil {
		slog.Error("inline ingestion failed", "document_id", doc.ID, "error", err)
	}
	return nil
}
