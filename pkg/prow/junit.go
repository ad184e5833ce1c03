// Package prow fetches and analyzes prow CI job artifacts: the build log,
// junit results, cluster operator conditions and orion changepoint reports.
package prow

import (
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/redhat-performance/BugZooka/pkg/analysis"
)

// TestCase is a single junit test case.
type TestCase struct {
	Name    string       `xml:"name,attr"`
	Failure *FailureNode `xml:"failure"`
}

// FailureNode carries the failure message and body of a failed case.
type FailureNode struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

// TestSuite is one junit <testsuite> element.
type TestSuite struct {
	Name     string     `xml:"name,attr"`
	Failures int        `xml:"failures,attr"`
	Cases    []TestCase `xml:"testcase"`
}

type testSuites struct {
	Suites []TestSuite `xml:"testsuite"`
}

// FailingTestCases parses a junit XML file and returns the failed cases from
// every suite that reports failures. Both <testsuites> and bare <testsuite>
// roots are accepted.
func FailingTestCases(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading junit xml %s: %w", path, err)
	}

	var suites []TestSuite
	var wrapper testSuites
	if err := xml.Unmarshal(data, &wrapper); err == nil && len(wrapper.Suites) > 0 {
		suites = wrapper.Suites
	} else {
		var single TestSuite
		if err := xml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("parsing junit xml %s: %w", path, err)
		}
		suites = []TestSuite{single}
	}

	var failing []TestCase
	for _, suite := range suites {
		if suite.Failures <= 0 {
			continue
		}
		for _, tc := range suite.Cases {
			if tc.Failure != nil {
				failing = append(failing, tc)
			}
		}
	}
	return failing, nil
}

// SummarizeJUnitOperator extracts the failing phase, test name and failure
// message from a junit_operator.xml file. Missing pieces come back empty;
// callers fall back to categorizing from the build log.
func SummarizeJUnitOperator(path string) (phase, testName, failureMessage string) {
	cases, err := FailingTestCases(path)
	if err != nil {
		return "", "", ""
	}

	for _, tc := range cases {
		if phase == "" {
			phase = analysis.ExtractTestPhase(tc.Name)
		}
		if failureMessage == "" && phase != "" && tc.Failure != nil {
			failureMessage = strings.TrimSpace(tc.Failure.Text)
			if failureMessage == "" {
				failureMessage = tc.Failure.Message
			}
		}
		if testName == "" {
			testName = analysis.ExtractTestName(tc.Name)
		}
		if phase != "" && testName != "" && failureMessage != "" {
			break
		}
	}
	return phase, testName, failureMessage
}

var anonymizedJobPattern = regexp.MustCompile(`X+-X+`)

// extractChangepointContext pulls the "-- changepoint" row out of an orion
// failure body and renders it as "<pct> % changepoint --- <metric>". The
// metric column arrives anonymized (X-ed out job names) and is rewritten to
// the reporting job prefix.
func extractChangepointContext(failureText string) (string, bool) {
	for _, line := range strings.Split(strings.TrimSpace(failureText), "\n") {
		if !strings.Contains(line, "-- changepoint") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 5 {
			return "", false
		}
		pct := strings.TrimSpace(parts[len(parts)-2])
		metric := strings.TrimSpace(parts[4])
		// Only the first anonymized token is the job name.
		if loc := anonymizedJobPattern.FindStringIndex(metric); loc != nil {
			metric = metric[:loc[0]] + "ocp-qe-perfscale" + metric[loc[1]:]
		}
		return fmt.Sprintf("%s %% changepoint --- %s", pct, metric), true
	}
	return "", false
}

// SummarizeOrionXML returns the first changepoint found in an orion junit
// file, or "" when the file reports none.
func SummarizeOrionXML(path string) string {
	cases, err := FailingTestCases(path)
	if err != nil {
		return ""
	}
	for _, tc := range cases {
		if tc.Failure == nil {
			continue
		}
		if ctx, ok := extractChangepointContext(tc.Failure.Text); ok {
			return fmt.Sprintf("\n--- Test Case: %s --- %s", tc.Name, ctx)
		}
	}
	return ""
}
