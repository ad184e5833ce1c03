package inference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	tc, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	assert.Equal(t, 0, tc.CountTokens(""))
	assert.Greater(t, tc.CountTokens("error: connection refused"), 0)
}

func TestFitLinesKeepsHead(t *testing.T) {
	tc, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	lines := []string{
		"Failure in step: install",
		strings.Repeat("error detail ", 200),
		strings.Repeat("more detail ", 200),
	}
	fitted := tc.FitLines(lines, 50)
	require.NotEmpty(t, fitted)
	assert.Equal(t, lines[0], fitted[0])
	assert.Less(t, len(fitted), len(lines))
}

func TestFitLinesWithinBudget(t *testing.T) {
	tc, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	lines := []string{"a", "b"}
	assert.Equal(t, lines, tc.FitLines(lines, 100))
}

func TestTruncateToTokenLimit(t *testing.T) {
	tc, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	short := "already fits"
	assert.Equal(t, short, tc.TruncateToTokenLimit(short, 100))

	long := strings.Repeat("the quick brown fox jumps over the lazy dog ", 100)
	truncated := tc.TruncateToTokenLimit(long, 20)
	assert.Less(t, len(truncated), len(long))
	assert.True(t, strings.HasSuffix(truncated, "..."))
	assert.LessOrEqual(t, tc.CountTokens(truncated), 25)
}
