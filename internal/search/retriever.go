// Package search implements combined faceted and semantic document search.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/docvault/backend/internal/cache"
	"github.com/docvault/backend/internal/embedding"
	"github.com/docvault/backend/internal/models"
	"github.com/docvault/backend/internal/store"
	"github.com/docvault/backend/internal/vectorstore"
)

const (
	defaultLimit = 20
	maxLimit     = 100
	// candidateMultiplier oversizes the nearest-neighbor fetch so that
	// per-document dedup and facet filtering still leave a full page.
	candidateMultiplier = 3

	embedCacheTTL = 10 * time.Minute
)

type Request struct {
	Query  string
	Filter store.SearchFilter
	Limit  int
	Offset int
}

type Result struct {
	Document models.Document `json:"document"`
	Snippet  string          `json:"snippet,omitempty"`
	Tags     []models.Tag    `json:"tags,omitempty"`
	// Score is present only for semantic matches; pure faceted hits have
	// none and sort by recency instead.
	Score *float64 `json:"score,omitempty"`
}

type Response struct {
	Results []Result `json:"results"`
	HasMore bool     `json:"has_more"`
	// Total is computed only on the pure faceted path, where it is a single
	// count query. The semantic path never issues one.
	Total *int `json:"total,omitempty"`
}

type Retriever struct {
	embedder embedding.Embedder
	index    vectorstore.VectorIndex
	docs     store.DocumentStore
	chunks   store.ChunkStore
	tags     store.TagStore
	cache    *cache.Cache
}

func NewRetriever(
	embedder embedding.Embedder,
	index vectorstore.VectorIndex,
	docs store.DocumentStore,
	chunks store.ChunkStore,
	tags store.TagStore,
	c *cache.Cache,
) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		docs:     docs,
		chunks:   chunks,
		tags:     tags,
		cache:    c,
	}
}

// Search runs semantic retrieval when a query string is present, otherwise a
// pure faceted listing. In combined mode the facets act as a filter over the
// semantic candidate set so the semantic ordering is preserved.
func (r *Retriever) Search(ctx context.Context, req Request) (*Response, error) {
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	if len(req.Filter.WorkspaceIDs) == 0 {
		return &Response{Results: []Result{}}, nil
	}

	if req.Query == "" {
		return r.faceted(ctx, req)
	}
	return r.combined(ctx, req)
}

func (r *Retriever) faceted(ctx context.Context, req Request) (*Response, error) {
	// Over-fetch one row to learn whether a further page exists; the count
	// query is only for the total, never for has_more.
	docs, err := r.docs.Search(ctx, req.Filter, req.Limit+1, req.Offset)
	if err != nil {
		return nil, err
	}

	hasMore := len(docs) > req.Limit
	if hasMore {
		docs = docs[:req.Limit]
	}

	total, err := r.docs.Count(ctx, req.Filter)
	if err != nil {
		return nil, err
	}

	results, err := r.decorate(ctx, docs, nil, nil)
	if err != nil {
		return nil, err
	}

	return &Response{Results: results, HasMore: hasMore, Total: &total}, nil
}

func (r *Retriever) combined(ctx context.Context, req Request) (*Response, error) {
	vector, err := r.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	topK := candidateMultiplier * (req.Offset + req.Limit)
	if topK < candidateMultiplier*defaultLimit {
		topK = candidateMultiplier * defaultLimit
	}

	matches, err := r.index.Query(ctx, vector, topK, vectorstore.QueryFilter{
		WorkspaceIDs: req.Filter.WorkspaceIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	// One best-scoring chunk per document. Matches arrive score-descending,
	// so the first hit per document wins.
	type candidate struct {
		score   float64
		snippet string
	}
	best := make(map[uuid.UUID]candidate)
	var order []uuid.UUID
	for _, m := range matches {
		if _, seen := best[m.Metadata.DocumentID]; seen {
			continue
		}
		best[m.Metadata.DocumentID] = candidate{score: m.Score, snippet: m.Metadata.Snippet}
		order = append(order, m.Metadata.DocumentID)
	}

	// Facets are a pure filter over the candidate set: they drop documents
	// but never re-rank them.
	filtered, err := r.docs.FilterByIDs(ctx, order, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("filter candidates: %w", err)
	}
	byID := make(map[uuid.UUID]models.Document, len(filtered))
	for _, d := range filtered {
		byID[d.ID] = d
	}

	var docs []models.Document
	scores := make(map[uuid.UUID]float64)
	snippets := make(map[uuid.UUID]string)
	for _, id := range order {
		d, ok := byID[id]
		if !ok {
			continue
		}
		docs = append(docs, d)
		scores[id] = best[id].score
		snippets[id] = best[id].snippet
	}

	hasMore := len(docs) > req.Offset+req.Limit
	if req.Offset >= len(docs) {
		docs = nil
	} else {
		end := min(req.Offset+req.Limit, len(docs))
		docs = docs[req.Offset:end]
	}

	results, err := r.decorate(ctx, docs, scores, snippets)
	if err != nil {
		return nil, err
	}

	sortResults(results)

	return &Response{Results: results, HasMore: hasMore}, nil
}

// sortResults applies the final ordering rule: scored results first by score
// descending, unscored results after them by creation date descending. The
// two kinds are never interleaved.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		switch {
		case a.Score != nil && b.Score != nil:
			return *a.Score > *b.Score
		case a.Score != nil:
			return true
		case b.Score != nil:
			return false
		default:
			return a.Document.CreatedAt.After(b.Document.CreatedAt)
		}
	})
}

func (r *Retriever) decorate(ctx context.Context, docs []models.Document, scores map[uuid.UUID]float64, snippets map[uuid.UUID]string) ([]Result, error) {
	ids := make([]uuid.UUID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}

	tagsByDoc, err := r.tags.ForDocuments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}

	// Faceted-only hits have no vector snippet; fall back to the first chunk.
	var missing []uuid.UUID
	for _, id := range ids {
		if snippets[id] == "" {
			missing = append(missing, id)
		}
	}
	firstChunks := map[uuid.UUID]string{}
	if len(missing) > 0 {
		firstChunks, err = r.chunks.FirstChunkText(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load snippets: %w", err)
		}
	}

	results := make([]Result, len(docs))
	for i, d := range docs {
		res := Result{Document: d, Tags: tagsByDoc[d.ID]}
		if s, ok := scores[d.ID]; ok {
			score := s
			res.Score = &score
		}
		if snip := snippets[d.ID]; snip != "" {
			res.Snippet = snip
		} else if snip := firstChunks[d.ID]; snip != "" {
			res.Snippet = truncate(snip, 200)
		}
		results[i] = res
	}
	return results, nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := embedCacheKey(query)

	if r.cache != nil {
		var vector []float32
		if err := r.cache.Get(ctx, key, &vector); err == nil && len(vector) > 0 {
			return vector, nil
		}
	}

	vector, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, vector, embedCacheTTL); err != nil {
			slog.Debug("failed to cache query embedding", "error", err)
		}
	}
	return vector, nil
}

func embedCacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "embed:query:" + hex.EncodeToString(sum[:])
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
