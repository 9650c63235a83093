package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvault/backend/internal/models"
)

type recordingProcessor struct {
	processed []uuid.UUID
	err       error
}

func (p *recordingProcessor) Process(ctx context.Context, documentID uuid.UUID) error {
	p.processed = append(p.processed, documentID)
	return p.err
}

func TestInlineScheduler_RunsPipelineBeforeReturning(t *testing.T) {
	proc := &recordingProcessor{}
	sched := NewInlineScheduler(proc)
	doc := &models.Document{ID: uuid.New()}

	require.NoError(t, sched.Schedule(context.Background(), doc))

	// Schedule is synchronous, so processing has already happened by the
	// time it returns and the caller can read the terminal status.
	assert.Equal(t, []uuid.UUID{doc.ID}, proc.processed)
}

func TestInlineScheduler_PipelineFailureDoesNotFailSchedule(t *testing.T) {
	proc := &recordingProcessor{err: errors.New("extraction blew up")}
	sched := NewInlineScheduler(proc)

	// The failure lands on the document record, not the upload response.
	require.NoError(t, sched.Schedule(context.Background(), &models.Document{ID: uuid.New()}))
}
