package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvault/backend/internal/models"
	"github.com/docvault/backend/internal/storage"
)

func testDocument(blobs *fakeBlobStore, content string) *models.Document {
	doc := &models.Document{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Title:       "report.txt",
		FileKey:     "documents/ws/doc/report.txt",
		MimeType:    "text/plain",
		Status:      models.DocStatusPending,
	}
	blobs.blobs[doc.FileKey] = []byte(content)
	return doc
}

func newTestPipeline(docs *fakeDocStore, chunks *fakeChunkStore, tags *fakeTagStore, blobs *fakeBlobStore, index *fakeIndex, embedder *failAfterEmbedder, extractor textExtractor, tagger tagSuggester) *Pipeline {
	return NewPipeline(docs, chunks, tags, blobs, index, embedder, extractor, tagger, DefaultChunkOptions())
}

func TestProcess_HappyPath(t *testing.T) {
	blobs := newFakeBlobStore()
	doc := testDocument(blobs, "quarterly revenue was up by twelve percent")
	docs := newFakeDocStore(doc)
	chunks := newFakeChunkStore()
	tags := newFakeTagStore()
	index := newFakeIndex()
	embedder := &failAfterEmbedder{}

	p := newTestPipeline(docs, chunks, tags, blobs, index, embedder,
		&staticExtractor{result: ExtractResult{Text: "quarterly revenue was up by twelve percent", Pages: 1}},
		&staticTagger{suggestions: []TagSuggestion{{Name: "finance", Category: "topic", Confidence: 0.9}}},
	)

	require.NoError(t, p.Process(context.Background(), doc.ID))

	assert.Equal(t, []string{models.DocStatusProcessing, models.DocStatusReady}, docs.statuses)
	assert.Equal(t, storage.TextKey(doc.ID), docs.ready.textKey)
	assert.Equal(t, 1, docs.ready.pages)
	assert.Empty(t, docs.ready.degraded)

	// One short text produces one chunk whose id is derived from the
	// document, mirrored in the vector index.
	chunkID := models.ChunkID(doc.ID, 0)
	require.Contains(t, chunks.chunks, chunkID)
	require.Contains(t, index.entries, chunkID)
	assert.Equal(t, doc.WorkspaceID, index.entries[chunkID].Metadata.WorkspaceID)

	// Extracted text was persisted for later re-processing.
	_, ok := blobs.blobs[storage.TextKey(doc.ID)]
	assert.True(t, ok)

	// The suggested tag was created and attached once.
	require.Contains(t, tags.created, "finance")
	assert.Len(t, tags.attached[doc.ID], 1)
}

func TestProcess_MissingBlobIsFatal(t *testing.T) {
	blobs := newFakeBlobStore()
	doc := testDocument(blobs, "content")
	delete(blobs.blobs, doc.FileKey)

	docs := newFakeDocStore(doc)
	p := newTestPipeline(docs, newFakeChunkStore(), newFakeTagStore(), blobs, newFakeIndex(), &failAfterEmbedder{},
		&staticExtractor{result: ExtractResult{Text: "content"}}, &staticTagger{})

	err := p.Process(context.Background(), doc.ID)
	require.Error(t, err)
	assert.Equal(t, []string{models.DocStatusProcessing, models.DocStatusError}, docs.statuses)
	assert.Contains(t, docs.errorMsg, "fetch source blob")
}

func TestProcess_EmbedFailurePartwayIsFatal(t *testing.T) {
	longText := strings.Repeat("alpha beta gamma delta epsilon ", 100) // ~500 words, 2 chunks

	blobs := newFakeBlobStore()
	doc := testDocument(blobs, longText)
	docs := newFakeDocStore(doc)
	chunks := newFakeChunkStore()
	index := newFakeIndex()

	p := newTestPipeline(docs, chunks, newFakeTagStore(), blobs, index, &failAfterEmbedder{failCall: 2},
		&staticExtractor{result: ExtractResult{Text: longText, Pages: 1}}, &staticTagger{})

	err := p.Process(context.Background(), doc.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed chunk 1")
	assert.Equal(t, []string{models.DocStatusProcessing, models.DocStatusError}, docs.statuses)

	// The first chunk landed before the failure; a retry overwrites it
	// under the same id rather than duplicating.
	assert.Len(t, chunks.chunks, 1)
	assert.Contains(t, chunks.chunks, models.ChunkID(doc.ID, 0))
}

func TestProcess_ReingestOverwritesInPlace(t *testing.T) {
	text := strings.Repeat("word ", 400)

	blobs := newFakeBlobStore()
	doc := testDocument(blobs, text)
	docs := newFakeDocStore(doc)
	chunks := newFakeChunkStore()
	tags := newFakeTagStore()
	index := newFakeIndex()

	p := newTestPipeline(docs, chunks, tags, blobs, index, &failAfterEmbedder{},
		&staticExtractor{result: ExtractResult{Text: text, Pages: 1}},
		&staticTagger{suggestions: []TagSuggestion{{Name: "notes", Confidence: 0.8}}})

	require.NoError(t, p.Process(context.Background(), doc.ID))
	firstChunks := len(chunks.chunks)
	firstEntries := len(index.entries)

	require.NoError(t, p.Process(context.Background(), doc.ID))
	assert.Equal(t, firstChunks, len(chunks.chunks))
	assert.Equal(t, firstEntries, len(index.entries))

	// Attach is conditional, so the usage count did not double.
	tag := tags.created["notes"]
	require.NotNil(t, tag)
	assert.Equal(t, 1, tags.usage[tag.ID.String()])
}

func TestProcess_TaggerFailureIsNotFatal(t *testing.T) {
	blobs := newFakeBlobStore()
	doc := testDocument(blobs, "short note")
	docs := newFakeDocStore(doc)

	p := newTestPipeline(docs, newFakeChunkStore(), newFakeTagStore(), blobs, newFakeIndex(), &failAfterEmbedder{},
		&staticExtractor{result: ExtractResult{Text: "short note", Pages: 1}},
		&staticTagger{suggestions: nil})

	require.NoError(t, p.Process(context.Background(), doc.ID))
	assert.Equal(t, models.DocStatusReady, docs.statuses[len(docs.statuses)-1])
}

func TestProcess_DegradedExtractionStillReady(t *testing.T) {
	blobs := newFakeBlobStore()
	doc := testDocument(blobs, "binary")
	doc.MimeType = "application/zip"
	docs := newFakeDocStore(doc)

	p := newTestPipeline(docs, newFakeChunkStore(), newFakeTagStore(), blobs, newFakeIndex(), &failAfterEmbedder{},
		&staticExtractor{result: ExtractResult{
			Text:     fmt.Sprintf("[Unsupported document type: %s]", doc.MimeType),
			Degraded: `unsupported mime type "application/zip"`,
		}},
		&staticTagger{})

	require.NoError(t, p.Process(context.Background(), doc.ID))
	assert.Equal(t, models.DocStatusReady, docs.statuses[len(docs.statuses)-1])
	assert.Contains(t, docs.ready.degraded, "unsupported mime type")
}

func TestProcess_UnknownDocument(t *testing.T) {
	p := newTestPipeline(newFakeDocStore(), newFakeChunkStore(), newFakeTagStore(), newFakeBlobStore(), newFakeIndex(), &failAfterEmbedder{},
		&staticExtractor{}, &staticTagger{})

	err := p.Process(context.Background(), uuid.New())
	require.Error(t, err)
}
