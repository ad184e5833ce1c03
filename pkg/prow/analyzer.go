package prow

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/redhat-performance/BugZooka/pkg/analysis"
	"github.com/redhat-performance/BugZooka/pkg/logproc"
	"github.com/redhat-performance/BugZooka/pkg/logx"
)

// buildLogTail is how many trailing build-log lines are attached when the
// richer artifacts are missing and the raw log is all we have.
const buildLogTail = 50

// Analysis is the outcome of scanning one job's artifacts.
type Analysis struct {
	// Errors is the ordered evidence list routed to summarization.
	Errors []string
	// Category is the human preview tag, e.g. "test phase: workload failure".
	Category string
	// RequiresLLM is true when the evidence is raw log noise that needs the
	// LLM error filter; curated evidence (operator conditions, changepoints)
	// skips it.
	RequiresLLM bool
	// MaintenanceIssue marks jobs that failed before producing artifacts;
	// those are reported as infra maintenance, not analyzed further.
	MaintenanceIssue bool
}

var (
	containerLogPattern = regexp.MustCompile(`Logs for container test in pod .*`)
	timestampPrefix     = regexp.MustCompile(`^\x1b\[[0-9;]*m\w*\x1b\[0m\[\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z\]\s*`)
)

var analyzerLog = logx.NewLogger("prow")

// findFailingContainerLine scans the build log for the "Logs for container
// test in pod ..." marker, stripping the colorized timestamp prefix prow
// prepends to every line.
func findFailingContainerLine(buildLogPath string) (string, error) {
	f, err := os.Open(buildLogPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := timestampPrefix.ReplaceAllString(scanner.Text(), "")
		if containerLogPattern.MatchString(line) {
			return strings.TrimSpace(line), nil
		}
	}
	return "", scanner.Err()
}

// tailLines returns the last n lines of a file.
func tailLines(path string, n int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var tail []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		tail = append(tail, scanner.Text())
		if len(tail) > n {
			tail = tail[1:]
		}
	}
	return tail
}

// SearchBuildLogErrors greps the build log for error-keyword lines with
// surrounding context. This is the last-resort evidence source when no
// curated artifact explains the failure.
func SearchBuildLogErrors(dir string) []string {
	f, err := os.Open(filepath.Join(dir, "build-log.txt"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return analysis.ExtractErrorContexts(lines, logproc.DefaultErrorKeywords, analysis.DefaultContextLines)
}

// scanOrionXMLs returns the first changepoint summary found across the
// downloaded orion junit files.
func scanOrionXMLs(dir string) []string {
	matches, err := filepath.Glob(filepath.Join(dir, "orion", "*.xml"))
	if err != nil {
		return nil
	}
	for _, xmlPath := range matches {
		if content := SummarizeOrionXML(xmlPath); content != "" {
			return []string{content}
		}
	}
	return nil
}

// AnalyzeArtifacts inspects the downloaded artifacts for a job and builds
// the evidence list for downstream summarization. Evidence sources are tried
// from most to least curated: junit categorization, cluster operator
// conditions, orion changepoints, then raw build-log error search.
func AnalyzeArtifacts(dir, jobName string) Analysis {
	buildLogPath := filepath.Join(dir, "build-log.txt")
	if _, err := os.Stat(buildLogPath); err != nil {
		return Analysis{
			Errors:           []string{"Prow maintenance issue, couldn't even find the build-log.txt file"},
			Category:         analysis.CategorizeFailure("maintenance issue", "unknown"),
			MaintenanceIssue: true,
		}
	}

	matchedLine, err := findFailingContainerLine(buildLogPath)
	if err != nil {
		analyzerLog.Error("scanning build log: %v", err)
	}
	if matchedLine == "" {
		return Analysis{
			Errors:           []string{"Couldn't identify the failure step, likely a maintenance issue"},
			Category:         analysis.CategorizeFailure("maintenance issue", "unknown"),
			MaintenanceIssue: true,
		}
	}

	category := ""
	stepSummary := ""
	if junitPath := filepath.Join(dir, "junit_operator.xml"); fileExists(junitPath) {
		phase, testName, failureMessage := SummarizeJUnitOperator(junitPath)
		if phase != "" && testName != "" {
			category = analysis.CategorizeFailure(testName, phase)
			stepSummary = failureMessage
		} else {
			category = analysis.CategorizeFailure(matchedLine, "unknown")
		}
	}

	if !fileExists(filepath.Join(dir, "clusteroperators.json")) {
		tail := tailLines(buildLogPath, buildLogTail)
		return Analysis{
			Errors: []string{
				"Somehow couldn't find clusteroperators.json file",
				matchedLine,
				stepSummary + strings.Join(tail, "\n"),
			},
			Category: category,
		}
	}

	if operatorErrors := ClusterOperatorErrors(dir); len(operatorErrors) > 0 {
		return Analysis{
			Errors:   append([]string{matchedLine}, operatorErrors...),
			Category: category,
		}
	}

	if orionErrors := scanOrionXMLs(dir); len(orionErrors) > 0 {
		return Analysis{
			Errors:   append([]string{matchedLine}, orionErrors...),
			Category: category,
		}
	}

	errors := []string{matchedLine}
	if stepSummary != "" {
		errors = append(errors, stepSummary)
	}
	errors = append(errors, SearchBuildLogErrors(dir)...)
	return Analysis{
		Errors:      errors,
		Category:    category,
		RequiresLLM: true,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
