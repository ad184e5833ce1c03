package inference

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts tokens for prompt budgeting. All supported providers
// are approximated with GPT-4 encoding, which is close enough for sizing
// error lists against a context window.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter. The model name is accepted for
// forward compatibility; every known model maps to GPT-4 encoding.
func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("creating tokenizer codec for model %s: %w", model, err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in text. Falls back to a
// 4-chars-per-token estimate if the codec fails.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// FitLines keeps as many lines as fit within the token limit, dropping from
// the end. Error context is front-loaded, so the head matters most.
func (tc *TokenCounter) FitLines(lines []string, limit int) []string {
	total := 0
	for i, line := range lines {
		n := tc.CountTokens(line) + 1 // joining newline
		if total+n > limit {
			return lines[:i]
		}
		total += n
	}
	return lines
}

// TruncateToTokenLimit truncates text to roughly fit within limit tokens.
// Truncation is proportional by characters, not exact token boundaries.
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	currentTokens := tc.CountTokens(text)
	if currentTokens <= limit {
		return text
	}
	ratio := float64(limit) / float64(currentTokens)
	charLimit := int(float64(len(text)) * ratio * 0.9)
	if charLimit >= len(text) {
		return text
	}
	truncated := strings.TrimRight(text[:charLimit], " \n\t")
	return truncated + "..."
}
