package logproc

import "strings"

// DefaultErrorKeywords are the identifiers used to mark a segment as a
// potential error. Deliberately coarse: this is a triage signal, not a
// classifier. Flagged segments are re-scanned downstream with finer logic.
var DefaultErrorKeywords = []string{"error", "failure", "exception", "fatal", "panic", "failed"}

// ContainsErrorKeyword reports whether the line contains any of the keywords
// as a case-insensitive substring.
func ContainsErrorKeyword(line string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(line)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
