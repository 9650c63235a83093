package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Equal(t, 0, CountTokens("   \n\t "))
	// 3 words at 0.75 words per token rounds up to 4 tokens.
	assert.Equal(t, 4, CountTokens("one two three"))
	assert.Equal(t, 1, CountTokens("hello"))
}

func TestTokensForWords(t *testing.T) {
	assert.Equal(t, 0, TokensForWords(0))
	assert.Equal(t, 512, TokensForWords(384))
	assert.Equal(t, 2, TokensForWords(1))
}

func TestWordsForTokens(t *testing.T) {
	assert.Equal(t, 384, WordsForTokens(512))
	assert.Equal(t, 48, WordsForTokens(64))
	assert.Equal(t, 0, WordsForTokens(0))
}
