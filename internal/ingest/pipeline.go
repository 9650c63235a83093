package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/docvault/backend/internal/embedding"
	"github.com/docvault/backend/internal/models"
	"github.com/docvault/backend/internal/storage"
	"github.com/docvault/backend/internal/store"
	"github.com/docvault/backend/internal/vectorstore"
)

// snippetChars is how much chunk text travels with each vector entry for
// retrieval display.
const snippetChars = 200

type textExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) *ExtractResult
}

type tagSuggester interface {
	SuggestTags(ctx context.Context, workspaceID uuid.UUID, text string) []TagSuggestion
}

// Pipeline turns an uploaded document into chunks, vectors, and tags. The
// same instance serves both the queued worker and the inline upload path.
type Pipeline struct {
	docs      store.DocumentStore
	chunks    store.ChunkStore
	tags      store.TagStore
	blobs     storage.BlobStore
	index     vectorstore.VectorIndex
	embedder  embedding.Embedder
	extractor textExtractor
	tagger    tagSuggester
	chunkOpts ChunkOptions
}

func NewPipeline(
	docs store.DocumentStore,
	chunks store.ChunkStore,
	tags store.TagStore,
	blobs storage.BlobStore,
	index vectorstore.VectorIndex,
	embedder embedding.Embedder,
	extractor textExtractor,
	tagger tagSuggester,
	chunkOpts ChunkOptions,
) *Pipeline {
	if chunkOpts.TargetTokens <= 0 {
		chunkOpts = DefaultChunkOptions()
	}
	return &Pipeline{
		docs:      docs,
		chunks:    chunks,
		tags:      tags,
		blobs:     blobs,
		index:     index,
		embedder:  embedder,
		extractor: extractor,
		tagger:    tagger,
		chunkOpts: chunkOpts,
	}
}

// Process runs the full ingestion state machine for one document:
// pending -> processing -> ready|error. Re-invoking it on the same document
// is safe: chunk ids are derived deterministically, vector upserts overwrite,
// and tag attachment checks for existing associations.
func (p *Pipeline) Process(ctx context.Context, documentID uuid.UUID) error {
	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	if err := p.docs.MarkProcessing(ctx, documentID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	slog.Info("processing document", "document_id", documentID, "mime_type", doc.MimeType)

	if err := p.run(ctx, doc); err != nil {
		// Terminal: the failure reason is persisted for the uploader; the
		// document never stays stuck in processing on this path.
		slog.Error("ingestion failed", "document_id", documentID, "error", err)
		if markErr := p.docs.MarkError(ctx, documentID, err.Error()); markErr != nil {
			slog.Error("failed to record error status", "document_id", documentID, "error", markErr)
		}
		return err
	}

	slog.Info("document ready", "document_id", documentID)
	return nil
}

func (p *Pipeline) run(ctx context.Context, doc *models.Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion panic: %v", r)
		}
	}()

	// A missing source blob is the one fatal precondition: nothing can be
	// extracted, now or on retry.
	data, err := p.blobs.Get(ctx, doc.FileKey)
	if err != nil {
		return fmt.Errorf("fetch source blob: %w", err)
	}

	extracted := p.extractor.Extract(ctx, data, doc.MimeType)
	if extracted.Degraded != "" {
		slog.Warn("extraction degraded", "document_id", doc.ID, "reason", extracted.Degraded)
	}

	textKey := storage.TextKey(doc.ID)
	if err := p.blobs.Put(ctx, textKey, []byte(extracted.Text), "text/plain; charset=utf-8"); err != nil {
		return fmt.Errorf("persist extracted text: %w", err)
	}

	if err := p.indexChunks(ctx, doc, extracted.Text); err != nil {
		return err
	}

	p.autoTag(ctx, doc, extracted.Text)

	if err := p.docs.MarkReady(ctx, doc.ID, textKey, extracted.Pages, extracted.Degraded); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	return nil
}

// indexChunks embeds and persists chunks one at a time. The loop is not
// transactional: an embedding failure partway leaves the chunks written so
// far, and a retry overwrites them under the same derived ids.
func (p *Pipeline) indexChunks(ctx context.Context, doc *models.Document, text string) error {
	chunks := ChunkText(text, p.chunkOpts)

	for _, chunk := range chunks {
		vecs, err := p.embedder.Embed(ctx, []string{chunk.Content})
		if err != nil {
			// Fatal: partial embedding coverage would silently degrade
			// recall with no visible signal.
			return fmt.Errorf("embed chunk %d: %w", chunk.Index, err)
		}

		id := models.ChunkID(doc.ID, chunk.Index)

		entry := vectorstore.Entry{
			ID:        id,
			Embedding: vecs[0],
			Metadata: vectorstore.Metadata{
				DocumentID:  doc.ID,
				WorkspaceID: doc.WorkspaceID,
				ChunkIndex:  chunk.Index,
				Snippet:     truncate(chunk.Content, snippetChars),
			},
		}
		if err := p.index.Upsert(ctx, []vectorstore.Entry{entry}); err != nil {
			return fmt.Errorf("upsert vector %s: %w", id, err)
		}

		row := &models.Chunk{
			ID:         id,
			DocumentID: doc.ID,
			ChunkIndex: chunk.Index,
			Content:    chunk.Content,
			TokenCount: chunk.TokenCount,
		}
		if err := p.chunks.InsertChunk(ctx, row); err != nil {
			return fmt.Errorf("persist chunk %s: %w", id, err)
		}
	}

	slog.Info("indexed chunks", "document_id", doc.ID, "count", len(chunks))
	return nil
}

// autoTag is best-effort: every failure is logged and skipped, never fatal.
func (p *Pipeline) autoTag(ctx context.Context, doc *models.Document, text string) {
	suggestions := p.tagger.SuggestTags(ctx, doc.WorkspaceID, text)

	for _, s := range suggestions {
		tag, err := p.tags.FindOrCreate(ctx, doc.WorkspaceID, s.Name, s.Category)
		if err != nil {
			slog.Warn("failed to create suggested tag", "name", s.Name, "error", err)
			continue
		}

		confidence := s.Confidence
		if _, err := p.tags.Attach(ctx, doc.ID, tag.ID, models.TagSourceAISuggested, &confidence); err != nil {
			slog.Warn("failed to attach suggested tag", "name", s.Name, "error", err)
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
