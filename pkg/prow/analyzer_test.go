package prow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clusterOperatorsJSON = `{
  "items": [
    {
      "metadata": {"name": "etcd"},
      "status": {"conditions": [
        {"type": "Degraded", "status": "True", "reason": "Unhealthy", "message": "members down"},
        {"type": "Available", "status": "True", "reason": "AsExpected", "message": ""}
      ]}
    },
    {
      "metadata": {"name": "ingress"},
      "status": {"conditions": [
        {"type": "Available", "status": "False", "reason": "Offline", "message": "no routers"}
      ]}
    }
  ]
}`

func buildLogWithMarker() string {
	return "\x1b[36mINFO\x1b[0m[2025-01-02T03:04:05Z] starting\n" +
		"\x1b[36mINFO\x1b[0m[2025-01-02T03:04:06Z] Logs for container test in pod perf-abc123\n" +
		"error: workload pod crashed\n" +
		"trailing output\n"
}

func TestClusterOperatorErrors(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "clusteroperators.json", clusterOperatorsJSON)

	errs := ClusterOperatorErrors(dir)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], `"Name":"etcd"`)
	assert.Contains(t, errs[0], `"Reason":"Unhealthy"`)
	assert.Contains(t, errs[1], `"Name":"ingress"`)
}

func TestClusterOperatorErrorsMissingFile(t *testing.T) {
	assert.Nil(t, ClusterOperatorErrors(t.TempDir()))
}

func TestAnalyzeArtifactsMissingBuildLog(t *testing.T) {
	result := AnalyzeArtifacts(t.TempDir(), "some-job")

	assert.True(t, result.MaintenanceIssue)
	assert.False(t, result.RequiresLLM)
	assert.Equal(t, "unknown phase: maintenance issue", result.Category)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "build-log.txt")
}

func TestAnalyzeArtifactsNoFailureMarker(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "build-log.txt", "just ordinary output\nnothing to see\n")

	result := AnalyzeArtifacts(dir, "some-job")
	assert.True(t, result.MaintenanceIssue)
	assert.Contains(t, result.Errors[0], "Couldn't identify the failure step")
}

func TestAnalyzeArtifactsClusterOperatorPath(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "build-log.txt", buildLogWithMarker())
	writeFixture(t, dir, "junit_operator.xml", junitOperatorXML)
	writeFixture(t, dir, "clusteroperators.json", clusterOperatorsJSON)

	result := AnalyzeArtifacts(dir, "some-job")

	assert.False(t, result.MaintenanceIssue)
	assert.False(t, result.RequiresLLM, "curated operator evidence skips the LLM filter")
	assert.Equal(t, "test phase: workload failure", result.Category)
	require.GreaterOrEqual(t, len(result.Errors), 3)
	assert.Equal(t, "Logs for container test in pod perf-abc123", result.Errors[0])
	assert.Contains(t, result.Errors[1], "etcd")
}

func TestAnalyzeArtifactsOrionPath(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "build-log.txt", buildLogWithMarker())
	writeFixture(t, dir, "junit_operator.xml", junitOperatorXML)
	writeFixture(t, dir, "clusteroperators.json", `{"items": []}`)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "orion"), 0o755))
	writeFixture(t, filepath.Join(dir, "orion"), "result.xml", orionXML)

	result := AnalyzeArtifacts(dir, "some-job")

	assert.False(t, result.RequiresLLM)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[1], "changepoint")
}

func TestAnalyzeArtifactsFallsBackToLogSearch(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "build-log.txt", buildLogWithMarker())
	writeFixture(t, dir, "junit_operator.xml", junitOperatorXML)
	writeFixture(t, dir, "clusteroperators.json", `{"items": []}`)

	result := AnalyzeArtifacts(dir, "some-job")

	assert.True(t, result.RequiresLLM, "raw log evidence needs the LLM filter")
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "error: workload pod crashed") {
			found = true
		}
	}
	assert.True(t, found, "fallback search must surface the keyword line, got %v", result.Errors)
}

func TestAnalyzeArtifactsFallbackOmitsEmptyStepSummary(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "build-log.txt", buildLogWithMarker())
	writeFixture(t, dir, "clusteroperators.json", `{"items": []}`)

	result := AnalyzeArtifacts(dir, "some-job")

	assert.True(t, result.RequiresLLM)
	for i, e := range result.Errors {
		assert.NotEmpty(t, e, "evidence entry %d must not be blank", i)
	}
}

func TestAnalyzeArtifactsMissingClusterOperatorsAttachesTail(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("\x1b[36mINFO\x1b[0m[2025-01-02T03:04:05Z] Logs for container test in pod perf-abc123\n")
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	writeFixture(t, dir, "build-log.txt", b.String())

	result := AnalyzeArtifacts(dir, "some-job")

	assert.False(t, result.RequiresLLM)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "clusteroperators.json")
	assert.Contains(t, result.Errors[2], "line 79")
	assert.NotContains(t, result.Errors[2], "line 10\n", "tail is clamped")
}
