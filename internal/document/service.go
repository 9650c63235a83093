package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/docvault/backend/internal/apperr"
	"github.com/docvault/backend/internal/models"
	"github.com/docvault/backend/internal/storage"
	"github.com/docvault/backend/internal/store"
	"github.com/docvault/backend/internal/vectorstore"
)

// IngestScheduler hands a freshly created document to the ingestion pipeline.
// The queued implementation enqueues a task; the inline one runs the pipeline
// before returning. Both invoke the same pipeline — the mode is purely a
// scheduling decision.
type IngestScheduler interface {
	Schedule(ctx context.Context, doc *models.Document) error
}

type Service struct {
	docs      store.DocumentStore
	chunks    store.ChunkStore
	tags      store.TagStore
	blobs     storage.BlobStore
	index     vectorstore.VectorIndex
	scheduler IngestScheduler
}

func NewService(
	docs store.DocumentStore,
	chunks store.ChunkStore,
	tags store.TagStore,
	blobs storage.BlobStore,
	index vectorstore.VectorIndex,
	scheduler IngestScheduler,
) *Service {
	return &Service{
		docs:      docs,
		chunks:    chunks,
		tags:      tags,
		blobs:     blobs,
		index:     index,
		scheduler: scheduler,
	}
}

type UploadRequest struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	Title       string
	Filename    string
	MimeType    string
	Data        []byte
}

// Upload stores the file and creates the document record. Identical bytes
// uploaded twice into the same workspace resolve to the existing document;
// the second caller gets it back with duplicate=true and no new record. The
// same bytes in another workspace are a distinct document.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.Document, bool, error) {
	sum := sha256.Sum256(req.Data)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.docs.FindByHash(ctx, req.WorkspaceID, hash)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, fmt.Errorf("check content hash: %w", err)
	}

	docID := uuid.New()
	fileKey := storage.FileKey(req.WorkspaceID, docID, req.Filename)

	if err := s.blobs.Put(ctx, fileKey, req.Data, req.MimeType); err != nil {
		return nil, false, fmt.Errorf("store file: %w", err)
	}

	title := req.Title
	if title == "" {
		title = req.Filename
	}

	doc := &models.Document{
		ID:          docID,
		WorkspaceID: req.WorkspaceID,
		Title:       title,
		FileKey:     fileKey,
		ContentHash: hash,
		MimeType:    req.MimeType,
		SizeBytes:   int64(len(req.Data)),
		Status:      models.DocStatusPending,
		CreatedBy:   &req.UserID,
	}
	if err := s.docs.Insert(ctx, doc); err != nil {
		// A concurrent upload of the same bytes can win the insert race;
		// resolve to its row just like a sequential duplicate.
		if apperr.IsDuplicate(err) {
			if existing, ferr := s.docs.FindByHash(ctx, req.WorkspaceID, hash); ferr == nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}

	if err := s.scheduler.Schedule(ctx, doc); err != nil {
		// The record exists; the reclaim sweep or a manual retry can pick
		// it up later.
		slog.Error("failed to schedule ingestion", "document_id", doc.ID, "error", err)
	}

	// Inline scheduling has already run the pipeline by now, so re-read the
	// row to report the status it actually reached.
	if fresh, err := s.docs.GetByID(ctx, doc.ID); err == nil {
		doc = fresh
	}

	return doc, false, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return s.docs.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, workspaceIDs []uuid.UUID, limit, offset int) ([]models.Document, error) {
	return s.docs.Search(ctx, store.SearchFilter{WorkspaceIDs: workspaceIDs}, limit, offset)
}

// Delete removes the document and everything derived from it: tag links (with
// usage counters decremented), chunk rows, vector entries, and blobs.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.tags.DetachAllForDocument(ctx, id); err != nil {
		return fmt.Errorf("detach tags: %w", err)
	}

	chunkIDs, err := s.chunks.ChunkIDsByDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("list chunk ids: %w", err)
	}
	if err := s.index.DeleteByIDs(ctx, chunkIDs); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.chunks.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	if doc.FileKey != "" {
		if err := s.blobs.Delete(ctx, doc.FileKey); err != nil {
			slog.Warn("failed to delete file blob", "key", doc.FileKey, "error", err)
		}
	}
	if doc.TextKey != "" {
		if err := s.blobs.Delete(ctx, doc.TextKey); err != nil {
			slog.Warn("failed to delete text blob", "key", doc.TextKey, "error", err)
		}
	}

	return s.docs.Delete(ctx, id)
}
