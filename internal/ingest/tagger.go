package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/docvault/backend/internal/llm"
	"github.com/docvault/backend/internal/models"
	"github.com/docvault/backend/internal/store"
)

const (
	// vocabularyLimit caps how many existing tags the model sees. Showing the
	// most-used ones biases it toward vocabulary reuse over synonyms.
	vocabularyLimit = 50
	// textPrefixChars bounds the prompt cost per document.
	textPrefixChars = 2000
)

type TagSuggestion struct {
	Name       string  `json:"name"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence"`
}

type Tagger struct {
	gateway llm.Gateway
	tags    store.TagStore
	model   string
}

func NewTagger(gw llm.Gateway, tags store.TagStore, model string) *Tagger {
	return &Tagger{gateway: gw, tags: tags, model: model}
}

// SuggestTags asks the model for tags against the workspace's existing
// vocabulary. Auto-tagging is best-effort enrichment: any failure, including
// malformed model output, degrades to an empty list.
func (t *Tagger) SuggestTags(ctx context.Context, workspaceID uuid.UUID, text string) []TagSuggestion {
	vocabulary, err := t.tags.TopByUsage(ctx, workspaceID, vocabularyLimit)
	if err != nil {
		slog.Warn("failed to load tag vocabulary", "workspace_id", workspaceID, "error", err)
		vocabulary = nil
	}

	resp, err := t.gateway.Chat(ctx, llm.ChatRequest{
		Model:       t.model,
		Temperature: 0,
		Messages: []llm.Message{
			{Role: "system", Content: taggerSystemPrompt},
			{Role: "user", Content: t.buildPrompt(vocabulary, text)},
		},
	})
	if err != nil {
		slog.Warn("tag suggestion call failed", "workspace_id", workspaceID, "error", err)
		return nil
	}

	suggestions, err := parseTagSuggestions(resp.Content)
	if err != nil {
		slog.Warn("malformed tag suggestions, skipping auto-tagging", "error", err)
		return nil
	}
	return suggestions
}

const taggerSystemPrompt = `You label documents for a searchable knowledge base.
Respond with ONLY a valid JSON array, no markdown and no explanation. Each element:

  {"name": <short lowercase tag>, "category": <one of document_type|vendor|date|amount|person|topic>, "confidence": <0..1>}

Reuse tags from the existing vocabulary whenever one fits instead of inventing a synonym.
Suggest at most 8 tags.`

func (t *Tagger) buildPrompt(vocabulary []models.Tag, text string) string {
	var sb strings.Builder

	if len(vocabulary) > 0 {
		sb.WriteString("Existing vocabulary (most used first):\n")
		for _, tag := range vocabulary {
			if tag.Category != "" {
				fmt.Fprintf(&sb, "- %s (%s)\n", tag.Name, tag.Category)
			} else {
				fmt.Fprintf(&sb, "- %s\n", tag.Name)
			}
		}
		sb.WriteString("\n")
	}

	prefix := text
	if len(prefix) > textPrefixChars {
		prefix = prefix[:textPrefixChars]
	}
	sb.WriteString("Document text:\n")
	sb.WriteString(prefix)

	return sb.String()
}

func parseTagSuggestions(content string) ([]TagSuggestion, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw []TagSuggestion
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parse tag suggestions: %w", err)
	}

	suggestions := raw[:0]
	for _, s := range raw {
		s.Name = strings.ToLower(strings.TrimSpace(s.Name))
		if s.Name == "" || s.Confidence < 0 || s.Confidence > 1 {
			continue
		}
		if s.Category != "" && !models.ValidTagCategory(s.Category) {
			s.Category = ""
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}
