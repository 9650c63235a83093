package ingest

import (
	"strings"

	"github.com/docvault/backend/pkg/tokenizer"
)

type ChunkOptions struct {
	TargetTokens  int
	OverlapTokens int
}

func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{TargetTokens: 512, OverlapTokens: 64}
}

type TextChunk struct {
	Content    string
	Index      int
	TokenCount int
}

// ChunkText splits text into overlapping word windows. Token budgets are
// converted to word budgets at ~0.75 words per token; the window advances by
// its size minus the overlap. The split is purely positional, so the same
// text and options always produce the same boundaries, which is what makes
// re-ingestion idempotent.
func ChunkText(text string, opts ChunkOptions) []TextChunk {
	if opts.TargetTokens <= 0 {
		opts = DefaultChunkOptions()
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = 0
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	wordsPerChunk := tokenizer.WordsForTokens(opts.TargetTokens)
	overlapWords := tokenizer.WordsForTokens(opts.OverlapTokens)
	if wordsPerChunk <= 0 {
		wordsPerChunk = 1
	}
	step := wordsPerChunk - overlapWords
	if step <= 0 {
		step = wordsPerChunk
	}

	var chunks []TextChunk
	for start := 0; start < len(words); start += step {
		// A window whose tail is entirely inside the previous window's
		// overlap adds no new words; emitting it would duplicate content.
		if start > 0 && len(words) <= start+overlapWords {
			break
		}

		end := min(start+wordsPerChunk, len(words))
		window := words[start:end]

		chunks = append(chunks, TextChunk{
			Content:    strings.Join(window, " "),
			Index:      len(chunks),
			TokenCount: tokenizer.TokensForWords(len(window)),
		})

		if end == len(words) {
			break
		}
	}

	return chunks
}
