package prow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobURL(t *testing.T) {
	bucket, prefix, buildID, err := ParseJobURL(
		"https://prow.ci.openshift.org/view/gs/test-platform-results/logs/periodic-perf-job/1234567890")
	require.NoError(t, err)
	assert.Equal(t, "test-platform-results", bucket)
	assert.Equal(t, "logs/periodic-perf-job/1234567890", prefix)
	assert.Equal(t, "1234567890", buildID)
}

func TestParseJobURLErrors(t *testing.T) {
	_, _, _, err := ParseJobURL("https://prow.ci.openshift.org/view/gs/bucket/logs/job/not-a-build-id")
	assert.Error(t, err, "missing trailing build ID")

	_, _, _, err = ParseJobURL("https://example.com/some/other/123")
	assert.Error(t, err, "missing view/gs/ marker")
}

// stubGCS serves a minimal slice of the GCS JSON API: object listings keyed
// by prefix, and object bodies keyed by full object path.
func stubGCS(t *testing.T, bucket string, listings map[string]objectList, objects map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/storage/v1/b/") {
			prefix := r.URL.Query().Get("prefix")
			listing, ok := listings[prefix]
			if !ok {
				listing = objectList{}
			}
			require.NoError(t, json.NewEncoder(w).Encode(listing))
			return
		}
		object := strings.TrimPrefix(r.URL.Path, "/"+bucket+"/")
		body, ok := objects[object]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
}

func listingWith(names []string, prefixes []string) objectList {
	var l objectList
	for _, n := range names {
		l.Items = append(l.Items, struct {
			Name string `json:"name"`
		}{Name: n})
	}
	l.Prefixes = prefixes
	return l
}

func TestFetchArtifacts(t *testing.T) {
	const bucket = "test-platform-results"
	const jobPrefix = "logs/periodic-perf-job/123"

	listings := map[string]objectList{
		jobPrefix + "/artifacts/": listingWith(nil, []string{
			jobPrefix + "/artifacts/periodic-perf-job/",
		}),
		jobPrefix + "/artifacts/periodic-perf-job/": listingWith(nil, []string{
			jobPrefix + "/artifacts/periodic-perf-job/run-orion-check/",
			jobPrefix + "/artifacts/periodic-perf-job/gather-extra/",
		}),
		jobPrefix + "/artifacts/periodic-perf-job/run-orion-check/artifacts/": listingWith([]string{
			jobPrefix + "/artifacts/periodic-perf-job/run-orion-check/artifacts/orion-result.xml",
			jobPrefix + "/artifacts/periodic-perf-job/run-orion-check/artifacts/notes.txt",
		}, nil),
	}
	objects := map[string]string{
		jobPrefix + "/build-log.txt":                 buildLogWithMarker(),
		jobPrefix + "/artifacts/junit_operator.xml":  junitOperatorXML,
		jobPrefix + "/artifacts/periodic-perf-job/gather-extra/artifacts/clusteroperators.json": clusterOperatorsJSON,
		jobPrefix + "/artifacts/periodic-perf-job/run-orion-check/artifacts/orion-result.xml":   orionXML,
	}

	srv := stubGCS(t, bucket, listings, objects)
	defer srv.Close()

	fetcher := NewFetcherWithBaseURL(srv.URL, srv.Client())
	outputDir := t.TempDir()

	jobURL := "https://prow.ci.openshift.org/view/gs/" + bucket + "/" + jobPrefix
	logDir, err := fetcher.FetchArtifacts(context.Background(), jobURL, outputDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputDir, "123"), logDir)

	for _, name := range []string{
		"build-log.txt",
		"junit_operator.xml",
		"clusteroperators.json",
		filepath.Join("orion", "orion-result.xml"),
	} {
		_, statErr := os.Stat(filepath.Join(logDir, name))
		assert.NoError(t, statErr, "expected artifact %s", name)
	}

	// Non-XML files in the orion folder are skipped.
	_, statErr := os.Stat(filepath.Join(logDir, "orion", "notes.txt"))
	assert.Error(t, statErr)

	// The downloaded tree analyzes end to end.
	result := AnalyzeArtifacts(logDir, "periodic-perf-job")
	assert.False(t, result.MaintenanceIssue)
	assert.Equal(t, "test phase: workload failure", result.Category)
}

func TestFetchArtifactsInvalidURL(t *testing.T) {
	fetcher := NewFetcher()
	_, err := fetcher.FetchArtifacts(context.Background(), "https://example.com/nope", t.TempDir())
	assert.Error(t, err)
}
