// Package analysis provides the per-phase segment handlers and the
// finer-grained error extraction applied to segments the segmentation
// engine flagged as potential errors.
package analysis

import "strings"

// DefaultContextLines is the number of lines captured before and after each
// keyword hit when building an error context block.
const DefaultContextLines = 3

// ExtractErrorContexts scans lines for error keywords and returns one
// context block per hit: the matching line plus up to contextLines lines of
// surrounding context, joined with newlines. Overlapping hits produce
// overlapping blocks; downstream summarization tolerates the redundancy.
func ExtractErrorContexts(lines []string, keywords []string, contextLines int) []string {
	var contexts []string
	for i, line := range lines {
		if !containsAny(line, keywords) {
			continue
		}
		start := i - contextLines
		if start < 0 {
			start = 0
		}
		end := i + contextLines + 1
		if end > len(lines) {
			end = len(lines)
		}
		block := strings.TrimSpace(strings.Join(lines[start:end], "\n"))
		if block != "" {
			contexts = append(contexts, block)
		}
	}
	return contexts
}

func containsAny(line string, keywords []string) bool {
	lower := strings.ToLower(line)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
