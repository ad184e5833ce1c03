// Package logproc partitions CI build-log streams into ordered, labeled
// phase segments and tags each segment with a coarse error hint.
//
// The package has two pieces: a Registry of ordered boundary rules (a
// labeled pattern marks the start of a new phase, its first capture group
// names the step) and a Processor that streams lines through the registry,
// buffering each phase until the next boundary seals it.
package logproc

import (
	"errors"
	"fmt"

	"github.com/dlclark/regexp2"
)

// ErrNoCaptureGroup is returned when a boundary pattern does not define the
// capture group that supplies the step name. The engine cannot proceed
// without a step name, so registration fails fast instead of deferring the
// problem to match time.
var ErrNoCaptureGroup = errors.New("boundary pattern must define a capture group for the step name")

// BoundaryRule pairs a phase label with the compiled pattern that opens it.
// The first capture group of the pattern extracts the human-readable step
// name; additional nested groups are incidental and ignored.
type BoundaryRule struct {
	Label   string
	pattern *regexp2.Regexp
}

// Registry holds boundary rules in registration order. Order is significant
// and never re-sorted: Match tests rules first to last and the first hit
// wins. Rules are not mutually exclusive by construction (a catch-all
// workload rule typically uses a negative lookahead to exclude install or
// orion steps), so callers must register specific rules before catch-alls.
// The registry performs no conflict detection.
//
// A Registry is read-only during a Processor run and may be reused across
// runs, but must not be mutated concurrently.
type Registry struct {
	rules []BoundaryRule
}

// NewRegistry returns an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register compiles the pattern and appends the rule. Patterns use regexp2
// syntax because production boundary rules rely on negative lookahead, which
// Go's RE2 engine cannot express. Inline flags such as (?i) are honored.
//
// Registration fails when the pattern does not compile or defines no capture
// group (ErrNoCaptureGroup).
func (r *Registry) Register(label, pattern string) error {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return fmt.Errorf("boundary rule %q: invalid pattern %q: %w", label, pattern, err)
	}
	// Group numbers always include group 0 (the whole match).
	if len(re.GetGroupNumbers()) < 2 {
		return fmt.Errorf("boundary rule %q: pattern %q: %w", label, pattern, ErrNoCaptureGroup)
	}
	r.rules = append(r.rules, BoundaryRule{Label: label, pattern: re})
	return nil
}

// Match tests the line against every rule in registration order and returns
// the label and extracted step name of the first rule that matches.
func (r *Registry) Match(line string) (label, stepName string, ok bool) {
	for i := range r.rules {
		rule := &r.rules[i]
		m, err := rule.pattern.FindStringMatch(line)
		if err != nil || m == nil {
			continue
		}
		name := ""
		if g := m.GroupByNumber(1); g != nil {
			name = g.String()
		}
		return rule.Label, name, true
	}
	return "", "", false
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.rules)
}
