package logproc

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Segment is a contiguous run of log lines belonging to one pipeline phase,
// sealed once the next boundary matched or the input ended. Body holds the
// whitespace-trimmed lines joined with newlines, boundary line included.
// StepName is empty only for the implicit initial segment. StartLine is the
// 0-based index of the line that opened the segment.
type Segment struct {
	Phase     string
	StepName  string
	StartLine int
	Body      string
	Flagged   bool
}

// Lines splits Body back into its individual lines. An empty body yields nil.
func (s Segment) Lines() []string {
	if s.Body == "" {
		return nil
	}
	return strings.Split(s.Body, "\n")
}

// Processor streams build-log lines through a boundary registry and emits
// finalized segments. It performs no I/O of its own beyond draining the
// reader handed to Run, and holds no state across runs: every Run call owns
// a fresh engine state.
type Processor struct {
	registry     *Registry
	initialLabel string
	keywords     []string
}

// NewProcessor creates a processor that opens its implicit first segment
// with initialLabel and flags segments containing any of the given error
// keywords (case-insensitive substring match). A nil keyword slice disables
// flagging.
func NewProcessor(initialLabel string, registry *Registry, keywords []string) *Processor {
	return &Processor{
		registry:     registry,
		initialLabel: initialLabel,
		keywords:     keywords,
	}
}

// engineState is the per-run accumulation state. Reset on every finalize.
type engineState struct {
	label     string
	stepName  string
	startLine int
	buffer    []string
	flagged   bool
	lastLine  string // raw form of the last line seen, for diagnostics
	segments  []Segment
}

// Run consumes the reader line by line and returns the ordered segments.
// Read failures are surfaced unchanged; the processor neither retries nor
// keeps partial state across a failed run.
func (p *Processor) Run(r io.Reader) ([]Segment, error) {
	st := p.newState()
	scanner := bufio.NewScanner(r)
	// CI logs routinely carry very long lines (single-line JSON dumps,
	// container output); raise the scanner limit well past the default.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		p.processLine(st, scanner.Text(), lineNum)
		lineNum++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log source: %w", err)
	}
	p.finalize(st)
	return st.segments, nil
}

// RunLines is Run for an in-memory line sequence. It cannot fail: over a
// well-formed rule set, segmentation is a total function.
func (p *Processor) RunLines(lines []string) []Segment {
	st := p.newState()
	for i, line := range lines {
		p.processLine(st, line, i)
	}
	p.finalize(st)
	return st.segments
}

func (p *Processor) newState() *engineState {
	return &engineState{
		label:     p.initialLabel,
		startLine: 0,
	}
}

// processLine applies the per-line algorithm: boundary rules first, error
// keyword scan only on non-boundary lines. Every line lands in exactly one
// segment.
func (p *Processor) processLine(st *engineState, raw string, lineNum int) {
	st.lastLine = raw
	line := strings.TrimSpace(raw)

	if label, stepName, ok := p.registry.Match(line); ok {
		// Seal the previous segment even when its buffer is empty; a
		// boundary on line 0 legitimately emits an empty implicit
		// initial segment.
		p.finalize(st)
		st.label = label
		st.stepName = stepName
		st.startLine = lineNum
		st.buffer = append(st.buffer, line)
		return
	}

	// Sticky-OR: once a keyword is seen the segment stays flagged until
	// it is sealed.
	if ContainsErrorKeyword(line, p.keywords) {
		st.flagged = true
	}
	st.buffer = append(st.buffer, line)
}

// finalize seals the in-progress segment and resets the accumulation state.
func (p *Processor) finalize(st *engineState) {
	st.segments = append(st.segments, Segment{
		Phase:     st.label,
		StepName:  st.stepName,
		StartLine: st.startLine,
		Body:      strings.Join(st.buffer, "\n"),
		Flagged:   st.flagged,
	})
	st.buffer = nil
	st.flagged = false
}
