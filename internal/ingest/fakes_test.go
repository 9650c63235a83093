package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docvault/backend/internal/apperr"
	"github.com/docvault/backend/internal/llm"
	"github.com/docvault/backend/internal/models"
	"github.com/docvault/backend/internal/store"
	"github.com/docvault/backend/internal/vectorstore"
)

// fakeGateway scripts chat responses for the extractor and tagger tests.
type fakeGateway struct {
	chatContent string
	chatErr     error
	chatCalls   int
	lastReq     llm.ChatRequest
}

func (g *fakeGateway) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	g.chatCalls++
	g.lastReq = req
	if g.chatErr != nil {
		return nil, g.chatErr
	}
	return &llm.ChatResponse{Content: g.chatContent}, nil
}

func (g *fakeGateway) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	out := make([][]float32, len(req.Input))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return &llm.EmbeddingResponse{Embeddings: out}, nil
}

// fakeDocStore covers only what the pipeline touches.
type fakeDocStore struct {
	store.DocumentStore

	mu       sync.Mutex
	docs     map[uuid.UUID]*models.Document
	statuses []string
	errorMsg string
	ready    struct {
		textKey  string
		pages    int
		degraded string
	}
}

func newFakeDocStore(docs ...*models.Document) *fakeDocStore {
	s := &fakeDocStore{docs: map[uuid.UUID]*models.Document{}}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *fakeDocStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (s *fakeDocStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, models.DocStatusProcessing)
	return nil
}

func (s *fakeDocStore) MarkReady(ctx context.Context, id uuid.UUID, textKey string, pageCount int, degradedReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, models.DocStatusReady)
	s.ready.textKey = textKey
	s.ready.pages = pageCount
	s.ready.degraded = degradedReason
	return nil
}

func (s *fakeDocStore) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, models.DocStatusError)
	s.errorMsg = message
	return nil
}

func (s *fakeDocStore) ReclaimStuck(ctx context.Context, lease time.Duration) ([]models.Document, error) {
	return nil, nil
}

type fakeChunkStore struct {
	store.ChunkStore

	mu     sync.Mutex
	chunks map[string]*models.Chunk
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{chunks: map[string]*models.Chunk{}}
}

func (s *fakeChunkStore) InsertChunk(ctx context.Context, chunk *models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *chunk
	s.chunks[chunk.ID] = &copied
	return nil
}

type fakeTagStore struct {
	store.TagStore

	mu         sync.Mutex
	vocabulary []models.Tag
	created    map[string]*models.Tag
	attached   map[uuid.UUID][]string
	usage      map[string]int
}

func newFakeTagStore() *fakeTagStore {
	return &fakeTagStore{
		created:  map[string]*models.Tag{},
		attached: map[uuid.UUID][]string{},
		usage:    map[string]int{},
	}
}

func (s *fakeTagStore) TopByUsage(ctx context.Context, workspaceID uuid.UUID, limit int) ([]models.Tag, error) {
	return s.vocabulary, nil
}

func (s *fakeTagStore) FindOrCreate(ctx context.Context, workspaceID uuid.UUID, name, category string) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.created[name]; ok {
		return t, nil
	}
	t := &models.Tag{ID: uuid.New(), WorkspaceID: workspaceID, Name: name, Category: category}
	s.created[name] = t
	return t, nil
}

func (s *fakeTagStore) Attach(ctx context.Context, documentID, tagID uuid.UUID, source string, confidence *float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attached[documentID] {
		if existing == tagID.String() {
			return false, nil
		}
	}
	s.attached[documentID] = append(s.attached[documentID], tagID.String())
	s.usage[tagID.String()]++
	return true, nil
}

type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
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
	return nil
}

type fakeIndex struct {
	mu      sync.Mutex
	entries map[string]vectorstore.Entry
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: map[string]vectorstore.Entry{}}
}

func (s *fakeIndex) Upsert(ctx context.Context, entries []vectorstore.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return nil
}

func (s *fakeIndex) Query(ctx context.Context, embedding []float32, topK int, f vectorstore.QueryFilter) ([]vectorstore.Match, error) {
	return nil, nil
}

func (s *fakeIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.entries, id)
	}
	return nil
}

// failAfterEmbedder fails on the nth call to Embed.
type failAfterEmbedder struct {
	calls    int
	failCall int
}

func (e *failAfterEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.failCall > 0 && e.calls == e.failCall {
		return nil, errors.New("embedding provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (e *failAfterEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type staticExtractor struct {
	result ExtractResult
}

func (e *staticExtractor) Extract(ctx context.Context, data []byte, mimeType string) *ExtractResult {
	copied := e.result
	return &copied
}

type staticTagger struct {
	suggestions []TagSuggestion
}

func (t *staticTagger) SuggestTags(ctx context.Context, workspaceID uuid.UUID, text string) []TagSuggestion {
	return t.suggestions
}
