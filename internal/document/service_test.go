package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvault/backend/internal/apperr"
	"github.com/docvault/backend/internal/models"
	"github.com/docvault/backend/internal/store"
	"github.com/docvault/backend/internal/vectorstore"
)

type fakeDocStore struct {
	store.DocumentStore

	mu        sync.Mutex
	docs      map[uuid.UUID]*models.Document
	deleted   []uuid.UUID
	findErr   error // returned by FindByHash when set
	missFinds int   // FindByHash misses this many times before matching
	insertErr error // returned by Insert when set
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: map[uuid.UUID]*models.Document{}}
}

func (s *fakeDocStore) Insert(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	doc.CreatedAt = time.Now()
	s.docs[doc.ID] = doc
	return nil
}

func (s *fakeDocStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return d, nil
}

func (s *fakeDocStore) FindByHash(ctx context.Context, workspaceID uuid.UUID, hash string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.missFinds > 0 {
		s.missFinds--
		return nil, apperr.ErrNotFound
	}
	for _, d := range s.docs {
		if d.WorkspaceID == workspaceID && d.ContentHash == hash {
			return d, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *fakeDocStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type fakeChunkStore struct {
	store.ChunkStore

	ids     []string
	cleared []uuid.UUID
}

func (s *fakeChunkStore) ChunkIDsByDocument(ctx context.Context, documentID uuid.UUID) ([]string, error) {
	return s.ids, nil
}

func (s *fakeChunkStore) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	s.cleared = append(s.cleared, documentID)
	return nil
}

type fakeTagStore struct {
	store.TagStore

	detachedAll []uuid.UUID
}

func (s *fakeTagStore) DetachAllForDocument(ctx context.Context, documentID uuid.UUID) error {
	s.detachedAll = append(s.detachedAll, documentID)
	return nil
}

type fakeBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	deleted []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string][]byte{}}
}

func (s *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return nil
}

func (s *fakeBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return data, nil
}

func (s *fakeBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	s.deleted = append(s.deleted, key)
	return nil
}

type fakeIndex struct {
	deletedIDs []string
}

func (s *fakeIndex) Upsert(ctx context.Context, entries []vectorstore.Entry) error { return nil }

func (s *fakeIndex) Query(ctx context.Context, v []float32, k int, f vectorstore.QueryFilter) ([]vectorstore.Match, error) {
	return nil, nil
}

func (s *fakeIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	s.deletedIDs = append(s.deletedIDs, ids...)
	return nil
}

type recordingScheduler struct {
	scheduled []uuid.UUID
}

func (s *recordingScheduler) Schedule(ctx context.Context, doc *models.Document) error {
	s.scheduled = append(s.scheduled, doc.ID)
	return nil
}

func newTestService() (*Service, *fakeDocStore, *fakeChunkStore, *fakeTagStore, *fakeBlobStore, *fakeIndex, *recordingScheduler) {
	docs := newFakeDocStore()
	chunks := &fakeChunkStore{}
	tags := &fakeTagStore{}
	blobs := newFakeBlobStore()
	index := &fakeIndex{}
	sched := &recordingScheduler{}
	return NewService(docs, chunks, tags, blobs, index, sched), docs, chunks, tags, blobs, index, sched
}

func TestUpload_NewDocument(t *testing.T) {
	svc, _, _, _, blobs, _, sched := newTestService()
	ws, user := uuid.New(), uuid.New()

	doc, duplicate, err := svc.Upload(context.Background(), UploadRequest{
		WorkspaceID: ws,
		UserID:      user,
		Filename:    "receipt.png",
		MimeType:    "image/png",
		Data:        []byte("png-bytes"),
	})
	require.NoError(t, err)

	assert.False(t, duplicate)
	assert.Equal(t, models.DocStatusPending, doc.Status)
	assert.Equal(t, "receipt.png", doc.Title) // falls back to the filename
	assert.NotEmpty(t, doc.ContentHash)
	require.NotNil(t, doc.CreatedBy)
	assert.Equal(t, user, *doc.CreatedBy)

	_, ok := blobs.blobs[doc.FileKey]
	assert.True(t, ok)
	assert.Equal(t, []uuid.UUID{doc.ID}, sched.scheduled)
}

func TestUpload_DuplicateResolvesToExisting(t *testing.T) {
	svc, _, _, _, _, _, sched := newTestService()
	ws := uuid.New()
	data := []byte("same bytes")

	first, duplicate, err := svc.Upload(context.Background(), UploadRequest{
		WorkspaceID: ws, Filename: "a.txt", Data: data,
	})
	require.NoError(t, err)
	require.False(t, duplicate)

	second, duplicate, err := svc.Upload(context.Background(), UploadRequest{
		WorkspaceID: ws, Filename: "b.txt", Data: data,
	})
	require.NoError(t, err)

	assert.True(t, duplicate)
	assert.Equal(t, first.ID, second.ID)
	// No second ingestion was scheduled.
	assert.Len(t, sched.scheduled, 1)
}

func TestUpload_HashLookupFailureFailsUpload(t *testing.T) {
	svc, docs, _, _, blobs, _, sched := newTestService()
	docs.findErr = errors.New("connection reset")

	_, _, err := svc.Upload(context.Background(), UploadRequest{
		WorkspaceID: uuid.New(), Filename: "a.txt", Data: []byte("bytes"),
	})

	// A transient lookup failure is not a cache miss; nothing is stored or
	// scheduled.
	require.Error(t, err)
	assert.Empty(t, blobs.blobs)
	assert.Empty(t, sched.scheduled)
}

func TestUpload_InsertRaceResolvesToExisting(t *testing.T) {
	svc, docs, _, _, _, _, sched := newTestService()
	ws := uuid.New()
	data := []byte("raced bytes")
	sum := sha256.Sum256(data)

	// The concurrent winner commits between our hash check and our insert,
	// so the check misses and the insert trips the uniqueness constraint.
	winner := &models.Document{
		ID:          uuid.New(),
		WorkspaceID: ws,
		ContentHash: hex.EncodeToString(sum[:]),
		Status:      models.DocStatusReady,
	}
	docs.docs[winner.ID] = winner
	docs.missFinds = 1
	docs.insertErr = fmt.Errorf("insert document: %w", apperr.ErrDuplicate)

	doc, duplicate, err := svc.Upload(context.Background(), UploadRequest{
		WorkspaceID: ws, Filename: "b.txt", Data: data,
	})
	require.NoError(t, err)

	assert.True(t, duplicate)
	assert.Equal(t, winner.ID, doc.ID)
	assert.Empty(t, sched.scheduled)
}

// readyingScheduler completes ingestion before Schedule returns, the way the
// inline scheduler does.
type readyingScheduler struct {
	docs *fakeDocStore
}

func (s *readyingScheduler) Schedule(ctx context.Context, doc *models.Document) error {
	d, err := s.docs.GetByID(ctx, doc.ID)
	if err != nil {
		return err
	}
	d.Status = models.DocStatusReady
	return nil
}

func TestUpload_ReturnsStatusReachedBySchedule(t *testing.T) {
	docs := newFakeDocStore()
	svc := NewService(docs, &fakeChunkStore{}, &fakeTagStore{}, newFakeBlobStore(),
		&fakeIndex{}, &readyingScheduler{docs: docs})

	doc, duplicate, err := svc.Upload(context.Background(), UploadRequest{
		WorkspaceID: uuid.New(), Filename: "a.txt", Data: []byte("bytes"),
	})
	require.NoError(t, err)

	assert.False(t, duplicate)
	assert.Equal(t, models.DocStatusReady, doc.Status)
}

func TestUpload_SameBytesOtherWorkspaceIsDistinct(t *testing.T) {
	svc, _, _, _, _, _, _ := newTestService()
	data := []byte("shared bytes")

	first, _, err := svc.Upload(context.Background(), UploadRequest{
		WorkspaceID: uuid.New(), Filename: "a.txt", Data: data,
	})
	require.NoError(t, err)

	second, duplicate, err := svc.Upload(context.Background(), UploadRequest{
		WorkspaceID: uuid.New(), Filename: "a.txt", Data: data,
	})
	require.NoError(t, err)

	assert.False(t, duplicate)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestDelete_CascadesDerivedData(t *testing.T) {
	svc, docs, chunks, tags, blobs, index, _ := newTestService()

	doc, _, err := svc.Upload(context.Background(), UploadRequest{
		WorkspaceID: uuid.New(), Filename: "doc.pdf", Data: []byte("pdf"),
	})
	require.NoError(t, err)

	doc.TextKey = "text/" + doc.ID.String() + ".txt"
	blobs.blobs[doc.TextKey] = []byte("extracted")
	chunks.ids = []string{models.ChunkID(doc.ID, 0), models.ChunkID(doc.ID, 1)}

	require.NoError(t, svc.Delete(context.Background(), doc.ID))

	assert.Equal(t, []uuid.UUID{doc.ID}, tags.detachedAll)
	assert.Equal(t, chunks.ids, index.deletedIDs)
	assert.Equal(t, []uuid.UUID{doc.ID}, chunks.cleared)
	assert.Contains(t, blobs.deleted, doc.FileKey)
	assert.Contains(t, blobs.deleted, doc.TextKey)
	assert.Equal(t, []uuid.UUID{doc.ID}, docs.deleted)
}

func TestDelete_UnknownDocument(t *testing.T) {
	svc, _, _, _, _, _, _ := newTestService()
	err := svc.Delete(context.Background(), uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
