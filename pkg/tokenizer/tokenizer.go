package tokenizer

import (
	"math"
	"strings"
)

// WordsPerToken is the approximation used across chunking and token
// accounting: 1 token ~= 0.75 words of English text.
const WordsPerToken = 0.75

// CountTokens estimates the token count of text from its word count.
func CountTokens(text string) int {
	return TokensForWords(len(strings.Fields(text)))
}

// TokensForWords converts a word count into an approximate token count.
func TokensForWords(words int) int {
	if words <= 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / WordsPerToken))
}

// WordsForTokens converts a token budget into a word budget.
func WordsForTokens(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	return int(math.Floor(float64(tokens) * WordsPerToken))
}
