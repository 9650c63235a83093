// Package workers contains asynq task handlers.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/docvault/backend/internal/ingest"
	"github.com/docvault/backend/internal/queue"
)

type IngestWorker struct {
	pipeline *ingest.Pipeline
}

func NewIngestWorker(p *ingest.Pipeline) *IngestWorker {
	return &IngestWorker{pipeline: p}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("parse document ID: %w", err)
	}

	slog.Info("ingesting document", "document_id", docID, "workspace_id", payload.WorkspaceID)
	return w.pipeline.Process(ctx, docID)
}
