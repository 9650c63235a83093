package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvault/backend/internal/models"
)

func TestSuggestTags_ParsesModelOutput(t *testing.T) {
	gw := &fakeGateway{chatContent: `[
		{"name": "Invoice", "category": "document_type", "confidence": 0.95},
		{"name": "acme corp", "category": "vendor", "confidence": 0.8}
	]`}
	tagger := NewTagger(gw, newFakeTagStore(), "model")

	got := tagger.SuggestTags(context.Background(), uuid.New(), "Invoice from Acme Corp")

	require.Len(t, got, 2)
	assert.Equal(t, "invoice", got[0].Name)
	assert.Equal(t, "document_type", got[0].Category)
	assert.InDelta(t, 0.95, got[0].Confidence, 1e-9)
}

func TestSuggestTags_StripsCodeFence(t *testing.T) {
	gw := &fakeGateway{chatContent: "```json\n[{\"name\": \"receipt\", \"confidence\": 0.7}]\n```"}
	tagger := NewTagger(gw, newFakeTagStore(), "model")

	got := tagger.SuggestTags(context.Background(), uuid.New(), "text")
	require.Len(t, got, 1)
	assert.Equal(t, "receipt", got[0].Name)
}

func TestSuggestTags_DropsInvalidEntries(t *testing.T) {
	gw := &fakeGateway{chatContent: `[
		{"name": "", "confidence": 0.9},
		{"name": "ok", "confidence": 1.5},
		{"name": "kept", "category": "not-a-category", "confidence": 0.5}
	]`}
	tagger := NewTagger(gw, newFakeTagStore(), "model")

	got := tagger.SuggestTags(context.Background(), uuid.New(), "text")
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Name)
	// Unknown categories are cleared, not rejected.
	assert.Empty(t, got[0].Category)
}

func TestSuggestTags_MalformedOutputIsEmpty(t *testing.T) {
	gw := &fakeGateway{chatContent: "I think the tags should be invoice and receipt."}
	tagger := NewTagger(gw, newFakeTagStore(), "model")

	assert.Nil(t, tagger.SuggestTags(context.Background(), uuid.New(), "text"))
}

func TestSuggestTags_ChatFailureIsEmpty(t *testing.T) {
	gw := &fakeGateway{chatErr: errors.New("rate limited")}
	tagger := NewTagger(gw, newFakeTagStore(), "model")

	assert.Nil(t, tagger.SuggestTags(context.Background(), uuid.New(), "text"))
}

func TestSuggestTags_PromptCarriesVocabulary(t *testing.T) {
	tags := newFakeTagStore()
	tags.vocabulary = []models.Tag{{Name: "invoice", Category: "document_type"}}

	gw := &fakeGateway{chatContent: "[]"}
	tagger := NewTagger(gw, tags, "model")
	tagger.SuggestTags(context.Background(), uuid.New(), "some document text")

	require.Len(t, gw.lastReq.Messages, 2)
	user := gw.lastReq.Messages[1].Content
	assert.Contains(t, user, "invoice (document_type)")
	assert.Contains(t, user, "some document text")
}

func TestSuggestTags_TruncatesLongText(t *testing.T) {
	gw := &fakeGateway{chatContent: "[]"}
	tagger := NewTagger(gw, newFakeTagStore(), "model")

	long := strings.Repeat("x", textPrefixChars+500)
	tagger.SuggestTags(context.Background(), uuid.New(), long)

	user := gw.lastReq.Messages[1].Content
	assert.Less(t, len(user), textPrefixChars+200)
}
