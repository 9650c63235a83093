package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordList(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestChunkText_Empty(t *testing.T) {
	assert.Nil(t, ChunkText("", DefaultChunkOptions()))
	assert.Nil(t, ChunkText("   \n ", DefaultChunkOptions()))
}

func TestChunkText_SingleShortChunk(t *testing.T) {
	chunks := ChunkText("just a few words", DefaultChunkOptions())
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "just a few words", chunks[0].Content)
	assert.Equal(t, 6, chunks[0].TokenCount) // ceil(4 / 0.75)
}

func TestChunkText_WindowBoundaries(t *testing.T) {
	// Default options: 384-word windows advancing 336 words at a time.
	// 1200 words therefore yield windows starting at 0, 336, 672, 1008.
	chunks := ChunkText(wordList(1200), DefaultChunkOptions())
	require.Len(t, chunks, 4)

	first := strings.Fields(chunks[0].Content)
	assert.Equal(t, "w0", first[0])
	assert.Equal(t, "w383", first[len(first)-1])

	second := strings.Fields(chunks[1].Content)
	assert.Equal(t, "w336", second[0])
	assert.Equal(t, "w719", second[len(second)-1])

	last := strings.Fields(chunks[3].Content)
	assert.Equal(t, "w1008", last[0])
	assert.Equal(t, "w1199", last[len(last)-1])
	assert.Len(t, last, 192)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestChunkText_NoTailOnlyChunk(t *testing.T) {
	// 400 words: the second window starting at 336 still carries 16 words
	// beyond the first window, so it is kept.
	chunks := ChunkText(wordList(400), DefaultChunkOptions())
	require.Len(t, chunks, 2)

	// 380 words fit inside a single 384-word window.
	chunks = ChunkText(wordList(380), DefaultChunkOptions())
	require.Len(t, chunks, 1)
	assert.Len(t, strings.Fields(chunks[0].Content), 380)
}

func TestChunkText_Deterministic(t *testing.T) {
	text := wordList(1000)
	a := ChunkText(text, DefaultChunkOptions())
	b := ChunkText(text, DefaultChunkOptions())
	require.Equal(t, a, b)
}

func TestChunkText_FullCoverage(t *testing.T) {
	const n = 2500
	chunks := ChunkText(wordList(n), DefaultChunkOptions())

	seen := map[string]bool{}
	for _, c := range chunks {
		for _, w := range strings.Fields(c.Content) {
			seen[w] = true
		}
	}
	assert.Len(t, seen, n)
}

func TestChunkText_ZeroOverlap(t *testing.T) {
	chunks := ChunkText(wordList(800), ChunkOptions{TargetTokens: 512, OverlapTokens: 0})
	require.Len(t, chunks, 3)

	total := 0
	for _, c := range chunks {
		total += len(strings.Fields(c.Content))
	}
	assert.Equal(t, 800, total)
}
