package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redhat-performance/BugZooka/pkg/logx"
)

const (
	// DefaultBaseURL is the GitHub REST API root.
	DefaultBaseURL = "https://api.github.com"

	apiVersion = "2022-11-28"

	maxFilesPages       = 30
	maxChangedFilesRows = 30
	maxDiffChars        = 20000
)

// testFilePatterns identify test/e2e files, which are excluded from
// regression investigation because they have no runtime impact.
var testFilePatterns = []string{
	"/test/", "/tests/", "/testdata/", "/e2e/",
	"_test.go", "_test.py", "_test.js", "_test.ts",
}

// prURLPattern matches GitHub pull request links as they appear in
// changepoint records, with or without a scheme prefix.
var prURLPattern = regexp.MustCompile(`github\.com/([^/\s]+)/([^/\s]+)/pull/(\d+)`)

// ParsePRURL extracts the org, repo and PR number from a GitHub pull
// request URL.
func ParsePRURL(rawURL string) (org, repo string, number int, err error) {
	m := prURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", "", 0, fmt.Errorf("not a GitHub pull request URL: %s", rawURL)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("parsing PR number in %s: %w", rawURL, err)
	}
	return m[1], m[2], number, nil
}

func isTestFile(filename string) bool {
	for _, pattern := range testFilePatterns {
		if strings.Contains(filename, pattern) {
			return true
		}
	}
	return false
}

// PRFile is one changed file in a pull request.
type PRFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch"`
}

// PRDescription is the title, body and labels of a pull request.
type PRDescription struct {
	Title  string
	Body   string
	Labels []string
}

// PRCommit is one commit in a pull request.
type PRCommit struct {
	SHA     string
	Date    string
	Author  string
	Subject string
}

// Client fetches pull request details from the GitHub REST API. An optional
// token raises rate limits; PR file listings go through the shared cache.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	cache      *Cache
	logger     *logx.Logger
}

// NewClient creates a client. token may be empty for anonymous access.
func NewClient(token string, cache *Cache) *Client {
	return NewClientWithBaseURL(token, cache, DefaultBaseURL)
}

// NewClientWithBaseURL creates a client against a non-default API root.
func NewClientWithBaseURL(token string, cache *Cache, baseURL string) *Client {
	if cache == nil {
		cache = NewCache()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
		cache:      cache,
		logger:     logx.NewLogger("github"),
	}
}

// PRFiles returns every changed file of a PR, walking pagination and caching
// the result.
func (c *Client) PRFiles(ctx context.Context, org, repo string, prNumber int) ([]PRFile, error) {
	key := fmt.Sprintf("%s/%s/%d", org, repo, prNumber)
	if files, ok := c.cache.Get(key); ok {
		c.logger.Debug("using cached PR files for %s", key)
		return files, nil
	}

	var all []PRFile
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("per_page", "100")
		q.Set("page", fmt.Sprintf("%d", page))

		var batch []PRFile
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files", org, repo, prNumber)
		if err := c.get(ctx, path, q, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < 100 {
			break
		}
		if page >= maxFilesPages {
			c.logger.Warn("pagination limit reached for %s: %d files", key, len(all))
			break
		}
	}

	c.cache.Set(key, all)
	c.logger.Info("cached %d changed files for %s", len(all), key)
	return all, nil
}

// ChangedFilesSummary renders the PR's production files sorted by change
// magnitude, excluding test/e2e files. pathPrefix optionally narrows to one
// subsystem.
func (c *Client) ChangedFilesSummary(ctx context.Context, org, repo string, prNumber int, pathPrefix string) (string, error) {
	all, err := c.PRFiles(ctx, org, repo, prNumber)
	if err != nil {
		return "", err
	}

	var production, testFiles []PRFile
	for _, f := range all {
		if pathPrefix != "" && !strings.HasPrefix(f.Filename, pathPrefix) {
			continue
		}
		if isTestFile(f.Filename) {
			testFiles = append(testFiles, f)
		} else {
			production = append(production, f)
		}
	}
	sort.SliceStable(production, func(i, j int) bool {
		return production[i].Additions+production[i].Deletions >
			production[j].Additions+production[j].Deletions
	})

	var b strings.Builder
	if pathPrefix != "" {
		fmt.Fprintf(&b, "Production files changed: %d (of %d total, matching prefix %q)\n",
			len(production), len(all), pathPrefix)
	} else {
		fmt.Fprintf(&b, "Production files changed: %d (of %d total)\n", len(production), len(all))
	}
	if len(testFiles) > 0 {
		fmt.Fprintf(&b, "(%d test/e2e files excluded)\n", len(testFiles))
	}
	if len(production) == 0 {
		b.WriteString("\nNo production files found matching the filter.\n")
		return b.String(), nil
	}

	shown := production
	if len(shown) > maxChangedFilesRows {
		shown = shown[:maxChangedFilesRows]
	}
	fmt.Fprintf(&b, "\nTop %d production files by change magnitude:\n", len(shown))
	for _, f := range shown {
		status := f.Status
		if status == "" {
			status = "modified"
		}
		fmt.Fprintf(&b, "  %-10s +%-5d -%-5d  %s\n", status, f.Additions, f.Deletions, f.Filename)
	}
	if len(production) > maxChangedFilesRows {
		fmt.Fprintf(&b, "\n  ... and %d more production files\n", len(production)-maxChangedFilesRows)
	}
	return b.String(), nil
}

// FileDiff returns the patch for one file of a PR, truncated when oversized.
func (c *Client) FileDiff(ctx context.Context, org, repo string, prNumber int, filePath string) (string, error) {
	all, err := c.PRFiles(ctx, org, repo, prNumber)
	if err != nil {
		return "", err
	}
	for _, f := range all {
		if f.Filename != filePath {
			continue
		}
		if f.Patch == "" {
			return fmt.Sprintf("Diff not available for %q (+%d/-%d changes). GitHub omits patches for very large or binary files.",
				filePath, f.Additions, f.Deletions), nil
		}
		patch := f.Patch
		if len(patch) > maxDiffChars {
			patch = patch[:maxDiffChars] +
				fmt.Sprintf("\n\n... [diff truncated, showing first %d of %d characters]", maxDiffChars, len(f.Patch))
		}
		if isTestFile(filePath) {
			patch = "NOTE: this is a test/e2e file; changes here do not affect runtime performance.\n\n" + patch
		}
		return patch, nil
	}
	return "", fmt.Errorf("file %q not found in PR %s/%s#%d", filePath, org, repo, prNumber)
}

// Description fetches the PR title, body and labels.
func (c *Client) Description(ctx context.Context, org, repo string, prNumber int) (*PRDescription, error) {
	var resp struct {
		Title  string `json:"title"`
		Body   string `json:"body"`
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", org, repo, prNumber)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	desc := &PRDescription{Title: resp.Title, Body: resp.Body}
	for _, l := range resp.Labels {
		desc.Labels = append(desc.Labels, l.Name)
	}
	return desc, nil
}

// Commits lists the PR's commits in API order.
func (c *Client) Commits(ctx context.Context, org, repo string, prNumber int) ([]PRCommit, error) {
	var resp []struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
			Author  struct {
				Name string `json:"name"`
				Date string `json:"date"`
			} `json:"author"`
		} `json:"commit"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/commits", org, repo, prNumber)
	q := url.Values{}
	q.Set("per_page", "100")
	if err := c.get(ctx, path, q, &resp); err != nil {
		return nil, err
	}

	commits := make([]PRCommit, 0, len(resp))
	for _, item := range resp {
		sha := item.SHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		subject := item.Commit.Message
		if i := strings.IndexByte(subject, '\n'); i != -1 {
			subject = subject[:i]
		}
		date := item.Commit.Author.Date
		if len(date) > 10 {
			date = date[:10]
		}
		commits = append(commits, PRCommit{
			SHA:     sha,
			Date:    date,
			Author:  item.Commit.Author.Name,
			Subject: subject,
		})
	}
	return commits, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling github %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading github response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s returned status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding github response: %w", err)
	}
	return nil
}
