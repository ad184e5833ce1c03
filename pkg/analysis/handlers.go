package analysis

import (
	"strings"

	"github.com/redhat-performance/BugZooka/pkg/logproc"
)

// Phase labels emitted by the production boundary rules.
const (
	PhaseConfig   = "CONFIG"
	PhaseInstall  = "INSTALL"
	PhaseWorkload = "WORKLOAD"
	PhaseOrion    = "ORION"
)

// PhaseReport is what a handler extracts from a flagged segment: the suspect
// lines plus the identity needed to route them to summarization and chat.
type PhaseReport struct {
	Phase        string
	StepName     string
	StartLine    int
	Category     string
	SuspectLines []string
}

// PhaseHandler re-scans one flagged segment with phase-appropriate logic.
// Each phase label is a distinct variant; HandlerFor falls back to a default
// variant for labels it does not recognize.
type PhaseHandler interface {
	Handle(seg logproc.Segment) PhaseReport
}

type configHandler struct{}
type installHandler struct{}
type workloadHandler struct{}
type orionHandler struct{}
type otherHandler struct{}

// HandlerFor returns the handler variant for a phase label,
// case-insensitively. Unknown labels get the default handler.
func HandlerFor(label string) PhaseHandler {
	switch strings.ToUpper(label) {
	case PhaseConfig:
		return configHandler{}
	case PhaseInstall:
		return installHandler{}
	case PhaseWorkload:
		return workloadHandler{}
	case PhaseOrion:
		return orionHandler{}
	default:
		return otherHandler{}
	}
}

// baseReport extracts error contexts from the segment body and fills the
// identity fields shared by every handler variant.
func baseReport(seg logproc.Segment) PhaseReport {
	return PhaseReport{
		Phase:        seg.Phase,
		StepName:     seg.StepName,
		StartLine:    seg.StartLine,
		SuspectLines: ExtractErrorContexts(seg.Lines(), logproc.DefaultErrorKeywords, DefaultContextLines),
	}
}

func (configHandler) Handle(seg logproc.Segment) PhaseReport {
	r := baseReport(seg)
	r.Category = "pre phase: configuration failure"
	return r
}

func (installHandler) Handle(seg logproc.Segment) PhaseReport {
	r := baseReport(seg)
	r.Category = CategorizeFailure(seg.StepName, "pre")
	return r
}

func (workloadHandler) Handle(seg logproc.Segment) PhaseReport {
	r := baseReport(seg)
	r.Category = CategorizeFailure(seg.StepName, "test")
	return r
}

func (orionHandler) Handle(seg logproc.Segment) PhaseReport {
	r := baseReport(seg)
	r.Category = CategorizeFailure(seg.StepName, "post")
	return r
}

func (otherHandler) Handle(seg logproc.Segment) PhaseReport {
	r := baseReport(seg)
	r.Category = CategorizeFailure(seg.StepName, "unknown")
	return r
}

// ReportFlagged runs the segmentation output through the per-phase handlers
// and returns one report per flagged segment, in emission order. Unflagged
// segments are left alone.
func ReportFlagged(segments []logproc.Segment) []PhaseReport {
	var reports []PhaseReport
	for _, seg := range segments {
		if !seg.Flagged {
			continue
		}
		reports = append(reports, HandlerFor(seg.Phase).Handle(seg))
	}
	return reports
}
