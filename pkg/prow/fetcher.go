package prow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/redhat-performance/BugZooka/pkg/logx"
)

// DefaultStorageBaseURL is the public Google Cloud Storage endpoint prow
// artifacts are served from. Anonymous reads; no SDK or credentials needed.
const DefaultStorageBaseURL = "https://storage.googleapis.com"

var buildIDPattern = regexp.MustCompile(`/(\d+)$`)

// Fetcher downloads a prow job's artifacts over the public GCS HTTP API
// into a local directory for AnalyzeArtifacts to pick apart.
type Fetcher struct {
	httpClient *http.Client
	baseURL    string
	logger     *logx.Logger
}

// NewFetcher creates a fetcher against the public GCS endpoint.
func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		baseURL:    DefaultStorageBaseURL,
		logger:     logx.NewLogger("prow-fetch"),
	}
}

// NewFetcherWithBaseURL creates a fetcher against a custom storage endpoint.
// Used by tests to point at a stub server.
func NewFetcherWithBaseURL(baseURL string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Fetcher{
		httpClient: client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logx.NewLogger("prow-fetch"),
	}
}

// ParseJobURL splits a prow "view/gs/" URL into the GCS bucket, the object
// prefix of the job run, and the numeric build ID.
func ParseJobURL(jobURL string) (bucket, prefix, buildID string, err error) {
	m := buildIDPattern.FindStringSubmatch(jobURL)
	if m == nil {
		return "", "", "", fmt.Errorf("invalid prow URL %q: cannot extract build ID", jobURL)
	}
	buildID = m[1]

	const marker = "view/gs/"
	idx := strings.Index(jobURL, marker)
	if idx < 0 {
		return "", "", "", fmt.Errorf("invalid prow URL %q: GCS path not found", jobURL)
	}
	gcsPath := strings.Trim(jobURL[idx+len(marker):], "/")
	parts := strings.SplitN(gcsPath, "/", 2)
	if len(parts) != 2 {
		return "", "", "", fmt.Errorf("invalid prow URL %q: missing object path", jobURL)
	}
	return parts[0], parts[1], buildID, nil
}

// objectList is the subset of the GCS JSON list response we consume.
type objectList struct {
	Items []struct {
		Name string `json:"name"`
	} `json:"items"`
	Prefixes      []string `json:"prefixes"`
	NextPageToken string   `json:"nextPageToken"`
}

// list enumerates object names and sub-prefixes directly under prefix.
func (f *Fetcher) list(ctx context.Context, bucket, prefix string) (names, prefixes []string, err error) {
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("prefix", prefix)
		q.Set("delimiter", "/")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		listURL := fmt.Sprintf("%s/storage/v1/b/%s/o?%s", f.baseURL, url.PathEscape(bucket), q.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
		if err != nil {
			return nil, nil, err
		}
		resp, err := f.httpClient.Do(req)
		if err != nil {
			return nil, nil, fmt.Errorf("listing gs://%s/%s: %w", bucket, prefix, err)
		}
		var page objectList
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, nil, fmt.Errorf("listing gs://%s/%s: status %d", bucket, prefix, resp.StatusCode)
		}
		if decodeErr != nil {
			return nil, nil, fmt.Errorf("decoding object list for gs://%s/%s: %w", bucket, prefix, decodeErr)
		}

		for _, item := range page.Items {
			names = append(names, item.Name)
		}
		prefixes = append(prefixes, page.Prefixes...)

		if page.NextPageToken == "" {
			return names, prefixes, nil
		}
		pageToken = page.NextPageToken
	}
}

// download streams one object to a local file.
func (f *Fetcher) download(ctx context.Context, bucket, object, dest string) error {
	objectURL := fmt.Sprintf("%s/%s/%s", f.baseURL, bucket, object)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, objectURL, nil)
	if err != nil {
		return err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading gs://%s/%s: %w", bucket, object, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading gs://%s/%s: status %d", bucket, object, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return nil
}

// innerArtifactFolder finds the nested per-job log folder under artifacts/
// (e.g. artifacts/<job-name>/) by matching the prefix's last segment against
// the job prefix.
func (f *Fetcher) innerArtifactFolder(ctx context.Context, bucket, jobPrefix string) (string, error) {
	artifactsPrefix := jobPrefix + "/artifacts/"
	_, prefixes, err := f.list(ctx, bucket, artifactsPrefix)
	if err != nil {
		return "", err
	}
	for _, p := range prefixes {
		segment := path.Base(strings.TrimRight(p, "/"))
		if segment != "" && strings.Contains(jobPrefix, segment) {
			return p, nil
		}
	}
	return "", nil
}

// FetchArtifacts downloads the build log, junit_operator.xml,
// clusteroperators.json and any orion junit XMLs for a prow job URL into
// outputDir/<buildID>. Optional artifacts are best-effort: a missing file is
// logged and skipped, and AnalyzeArtifacts degrades accordingly.
func (f *Fetcher) FetchArtifacts(ctx context.Context, jobURL, outputDir string) (string, error) {
	bucket, prefix, buildID, err := ParseJobURL(jobURL)
	if err != nil {
		return "", err
	}

	logDir := filepath.Join(outputDir, buildID)
	orionDir := filepath.Join(logDir, "orion")
	if err := os.MkdirAll(orionDir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}

	if err := f.download(ctx, bucket, prefix+"/build-log.txt", filepath.Join(logDir, "build-log.txt")); err != nil {
		f.logger.Error("build-log.txt: %v", err)
	}
	if err := f.download(ctx, bucket, prefix+"/artifacts/junit_operator.xml", filepath.Join(logDir, "junit_operator.xml")); err != nil {
		f.logger.Warn("junit_operator.xml: %v", err)
	}

	logFolder, err := f.innerArtifactFolder(ctx, bucket, prefix)
	if err != nil {
		f.logger.Warn("listing artifacts folder: %v", err)
		return logDir, nil
	}
	if logFolder == "" {
		f.logger.Info("no matching log folder found under gs://%s/%s/artifacts/", bucket, prefix)
		return logDir, nil
	}

	coObject := logFolder + "gather-extra/artifacts/clusteroperators.json"
	if err := f.download(ctx, bucket, coObject, filepath.Join(logDir, "clusteroperators.json")); err != nil {
		f.logger.Warn("clusteroperators.json: %v", err)
	}

	f.fetchOrionXMLs(ctx, bucket, logFolder, orionDir)
	return logDir, nil
}

// fetchOrionXMLs downloads every XML under the orion step folders.
func (f *Fetcher) fetchOrionXMLs(ctx context.Context, bucket, logFolder, orionDir string) {
	_, stepFolders, err := f.list(ctx, bucket, logFolder)
	if err != nil {
		f.logger.Warn("listing %s: %v", logFolder, err)
		return
	}
	for _, folder := range stepFolders {
		if !strings.Contains(folder, "orion") {
			continue
		}
		names, _, err := f.list(ctx, bucket, folder+"artifacts/")
		if err != nil {
			f.logger.Warn("listing %sartifacts/: %v", folder, err)
			continue
		}
		for _, name := range names {
			if !strings.HasSuffix(name, ".xml") {
				continue
			}
			dest := filepath.Join(orionDir, path.Base(name))
			if err := f.download(ctx, bucket, name, dest); err != nil {
				f.logger.Warn("orion xml %s: %v", name, err)
			}
		}
	}
}
