package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

// failureCategory maps a step-name keyword to its human preview tag.
// Entries are ordered: more specific keywords come before their substrings
// ("deprovision" before "provision"), and the first match wins.
var failureCategories = []struct {
	keyword     string
	description string
}{
	{"deprovision", "deprovision failure"},
	{"provision", "provision failure"},
	{"install", "installation failure"},
	{"gather", "must gather failure"},
	{"orion", "change point detection failure"},
	{"cerberus", "cerberus health check failure"},
	{"node-readiness", "nodes readiness check failure"},
	{"openshift-qe", "workload failure"},
	{"upgrade", "upgrade failure"},
	{"maintenance issue", "maintenance issue"},
}

// CategorizeFailure returns the preview tag for a failed step, e.g.
// "test phase: workload failure". Unrecognized steps fall back to the step
// name itself.
func CategorizeFailure(stepName, stepPhase string) string {
	name := strings.ToLower(stepName)
	for _, c := range failureCategories {
		if strings.Contains(name, c.keyword) {
			return fmt.Sprintf("%s phase: %s", stepPhase, c.description)
		}
	}
	return fmt.Sprintf("%s phase: %s step failure", stepPhase, stepName)
}

// ExtractTestPhase identifies which prow phase a junit case name belongs to.
// Returns "pre", "post" or "test", or "" when the name carries no phase tag.
func ExtractTestPhase(caseName string) string {
	for _, keyword := range []string{"pre", "post", "test"} {
		if strings.Contains(caseName, keyword+" phase") {
			return keyword
		}
	}
	return ""
}

var testNamePattern = regexp.MustCompile(`-\s(.+?)\s+container`)

// ExtractTestName pulls the test name out of a junit case name of the form
// "... - <name> container ...". Returns "" when the shape does not match.
func ExtractTestName(caseName string) string {
	m := testNamePattern.FindStringSubmatch(caseName)
	if m == nil {
		return ""
	}
	return m[1]
}
