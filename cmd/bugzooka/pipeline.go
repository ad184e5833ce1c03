package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redhat-performance/BugZooka/pkg/analysis"
	"github.com/redhat-performance/BugZooka/pkg/config"
	"github.com/redhat-performance/BugZooka/pkg/github"
	"github.com/redhat-performance/BugZooka/pkg/inference"
	"github.com/redhat-performance/BugZooka/pkg/logproc"
	"github.com/redhat-performance/BugZooka/pkg/logx"
	"github.com/redhat-performance/BugZooka/pkg/metrics"
	"github.com/redhat-performance/BugZooka/pkg/perf"
	"github.com/redhat-performance/BugZooka/pkg/prow"
	"github.com/redhat-performance/BugZooka/pkg/slack"
	"github.com/redhat-performance/BugZooka/pkg/store"
)

// pipeline turns one failure notification into artifact analysis, Slack
// thread replies and a stored record. Config-derived state is swapped
// atomically on hot reload.
type pipeline struct {
	logger      *logx.Logger
	poster      *slack.Poster
	prowFetcher *prow.Fetcher
	db          *store.Store
	recorder    *metrics.Recorder
	channelID   string

	// prCache outlives config reloads so PR file listings are fetched once.
	prCache *github.Cache

	mu       sync.RWMutex
	cfg      *config.Config
	registry *logproc.Registry
	analyzer *inference.Analyzer
	github   *github.Client
	provider string
}

func newPipeline(cfg *config.Config, poster *slack.Poster, prowFetcher *prow.Fetcher, db *store.Store, recorder *metrics.Recorder) (*pipeline, error) {
	p := &pipeline{
		logger:      logx.NewLogger("pipeline"),
		poster:      poster,
		prowFetcher: prowFetcher,
		db:          db,
		recorder:    recorder,
		channelID:   cfg.Slack.ChannelID,
		prCache:     github.NewCache(),
	}
	if err := p.apply(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// apply swaps in config-derived state. The caller must have validated cfg.
func (p *pipeline) apply(cfg *config.Config) error {
	registry, err := cfg.BuildRegistry()
	if err != nil {
		return err
	}
	analyzer, err := buildAnalyzer(cfg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.registry = registry
	p.analyzer = analyzer
	p.github = github.NewClient(cfg.GitHubToken, p.prCache)
	p.provider = cfg.Inference.Provider
	return nil
}

// UpdateConfig is the hot-reload hook. A config that fails to apply is
// logged and skipped; the previous one stays active.
func (p *pipeline) UpdateConfig(cfg *config.Config) {
	if err := p.apply(cfg); err != nil {
		p.logger.Error("applying reloaded config: %v", err)
		return
	}
	p.logger.Info("configuration reloaded")
}

// buildAnalyzer assembles the inference stack for the configured provider,
// or nil when inference is disabled.
func buildAnalyzer(cfg *config.Config) (*inference.Analyzer, error) {
	if !cfg.Inference.Enabled {
		return nil, nil
	}

	var client inference.Client
	switch cfg.Inference.Provider {
	case "anthropic":
		client = inference.NewAnthropicClient(cfg.Inference.Token, cfg.Inference.Model)
	default: // openai and openai-compatible generic endpoints
		client = inference.NewOpenAIClient(cfg.Inference.Endpoint, cfg.Inference.Token, cfg.Inference.Model)
	}

	retry := inference.RetryConfig{
		MaxAttempts:   cfg.Inference.Retry.MaxAttempts,
		InitialDelay:  cfg.Inference.Retry.Delay.Std(),
		MaxDelay:      cfg.Inference.Retry.MaxDelay.Std(),
		BackoffFactor: cfg.Inference.Retry.Backoff,
		Jitter:        true,
	}
	client = inference.NewRetryableClient(client, retry)

	counter, err := inference.NewTokenCounter(cfg.Inference.Model)
	if err != nil {
		return nil, fmt.Errorf("building token counter: %w", err)
	}
	return inference.NewAnalyzer(client, counter, logx.NewLogger("inference")), nil
}

// summarizePattern matches the on-demand summary command, e.g.
// "summarize 2h" or "summarise 30m verbose".
var summarizePattern = regexp.MustCompile(`(?i)^\s*summari[sz]e\s+(\d+)([mhd])(\s+verbose)?\s*$`)

// parseSummarizeCommand parses the chat trigger for a lookback summary.
func parseSummarizeCommand(text string) (lookback time.Duration, verbose, ok bool) {
	m := summarizePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false, false
	}
	var unit time.Duration
	switch strings.ToLower(m[2]) {
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Duration(n) * unit, m[3] != "", true
}

// Process is the slack.ProcessFunc hooked into the channel poller.
func (p *pipeline) Process(ctx context.Context, msg slack.Message) error {
	p.recorder.IncMessagesFetched(p.channelID, 1)

	if lookback, verbose, ok := parseSummarizeCommand(msg.Text); ok {
		p.logger.Info("on-demand summary requested for the last %s", lookback)
		return p.postTimeSummary(ctx, msg.TS, lookback, verbose)
	}

	// Success notifications carry job links too; only failures get analyzed.
	if !strings.Contains(strings.ToLower(msg.Text), "failure") {
		p.logger.Debug("message %s is not a failure notification, skipping", msg.TS)
		return nil
	}

	jobURL, jobName, ok := slack.ExtractJobDetails(msg.Text)
	if !ok {
		p.logger.Debug("message %s has no job link, skipping", msg.TS)
		return nil
	}

	start := time.Now()
	err := p.analyze(ctx, msg, jobURL, jobName)
	p.recorder.ObservePipeline(p.channelID, err == nil, time.Since(start))
	return err
}

func (p *pipeline) analyze(ctx context.Context, msg slack.Message, jobURL, jobName string) error {
	p.mu.RLock()
	cfg := p.cfg
	registry := p.registry
	analyzer := p.analyzer
	gh := p.github
	provider := p.provider
	p.mu.RUnlock()

	p.logger.Info("analyzing job %s (%s)", jobName, jobURL)

	dir, err := p.prowFetcher.FetchArtifacts(ctx, jobURL, cfg.ArtifactDir)
	if err != nil {
		return fmt.Errorf("fetching artifacts for %s: %w", jobURL, err)
	}

	result := prow.AnalyzeArtifacts(dir, jobName)
	reports := p.flagSegments(dir, cfg, registry)
	if result.Category == "" && len(reports) > 0 {
		result.Category = reports[0].Category
	}
	if blocks := p.changepointEvidence(ctx, dir, cfg.Perf.MaxPRs, gh); len(blocks) > 0 {
		result.Errors = append(result.Errors, blocks...)
		// Changepoint records are curated evidence; skip the noise filter.
		result.RequiresLLM = false
	}

	if err := p.poster.PostErrorPreview(ctx, msg.TS, result.Category, result.Errors); err != nil {
		return fmt.Errorf("posting error preview: %w", err)
	}

	summary := ""
	switch {
	case result.MaintenanceIssue:
		if err := p.poster.PostRetriggerSuggestion(ctx, msg.TS); err != nil {
			return fmt.Errorf("posting re-trigger suggestion: %w", err)
		}
	case analyzer != nil:
		summary = p.summarize(ctx, analyzer, provider, msg.TS, result)
	}

	if _, err := p.db.SaveAnalysis(ctx, store.Analysis{
		ChannelID: p.channelID,
		MessageTS: msg.TS,
		JobName:   jobName,
		JobURL:    jobURL,
		Category:  result.Category,
		Summary:   summary,
	}); err != nil {
		return fmt.Errorf("saving analysis: %w", err)
	}
	return nil
}

// flagSegments segments the build log by phase and reports the segments
// carrying error keywords. Missing or unreadable logs degrade to no reports.
func (p *pipeline) flagSegments(dir string, cfg *config.Config, registry *logproc.Registry) []analysis.PhaseReport {
	f, err := os.Open(filepath.Join(dir, "build-log.txt"))
	if err != nil {
		return nil
	}
	defer f.Close()

	proc := logproc.NewProcessor(cfg.Log.InitialPhase, registry, cfg.Log.ErrorKeywords)
	segments, err := proc.Run(f)
	if err != nil {
		p.logger.Error("segmenting build log: %v", err)
		return nil
	}

	reports := analysis.ReportFlagged(segments)
	for _, report := range reports {
		p.recorder.IncSegmentsFlagged(report.Phase, 1)
		p.logger.Info("flagged %s segment %q starting at line %d", report.Phase, report.StepName, report.StartLine)
	}
	return reports
}

// summarize runs the two-stage inference pass and posts the results.
// Inference failures never fail the pipeline: unavailable providers get a
// placeholder reply and everything else is logged.
func (p *pipeline) summarize(ctx context.Context, analyzer *inference.Analyzer, provider, threadTS string, result prow.Analysis) string {
	start := time.Now()
	summary, err := analyzer.SummarizeErrors(ctx, result.Errors, result.RequiresLLM)
	p.recorder.ObserveInference(provider, err == nil, time.Since(start))
	if err != nil {
		if inference.IsRetryable(err) {
			if postErr := p.poster.PostAnalysisUnavailable(ctx, threadTS); postErr != nil {
				p.logger.Error("posting analysis-unavailable notice: %v", postErr)
			}
		}
		p.logger.Error("summarizing errors: %v", err)
		return ""
	}

	if err := p.poster.PostSummary(ctx, threadTS, summary); err != nil {
		p.logger.Error("posting summary: %v", err)
	}

	start = time.Now()
	verdict, err := analyzer.AnalyzeSummary(ctx, summary)
	p.recorder.ObserveInference(provider, err == nil, time.Since(start))
	if err != nil {
		p.logger.Error("analyzing summary: %v", err)
		return summary
	}
	if err := p.poster.PostAnalysis(ctx, threadTS, verdict); err != nil {
		p.logger.Error("posting analysis: %v", err)
	}
	return summary
}

// changepointEvidence renders orion changepoint JSON artifacts, with a PR
// context block resolving each listed pull request to its title.
func (p *pipeline) changepointEvidence(ctx context.Context, dir string, maxPRs int, gh *github.Client) []string {
	matches, err := filepath.Glob(filepath.Join(dir, "orion", "*.json"))
	if err != nil {
		return nil
	}

	var blocks []string
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		records, err := perf.ParseChangepoints(data)
		if err != nil {
			p.logger.Error("parsing changepoint file %s: %v", path, err)
			continue
		}
		blocks = append(blocks, perf.ExtractChangepoints(records, maxPRs)...)
		blocks = append(blocks, p.prContext(ctx, gh, records, maxPRs)...)
	}
	return blocks
}

// prContext resolves the PRs between the regressing nightlies to one title
// line each. Unresolvable links are skipped, not fatal.
func (p *pipeline) prContext(ctx context.Context, gh *github.Client, records []perf.Changepoint, maxPRs int) []string {
	var lines []string
	for _, record := range records {
		if !record.IsChangepoint {
			continue
		}
		prs := record.PRs
		if maxPRs > 0 && len(prs) > maxPRs {
			prs = prs[:maxPRs]
		}
		for _, pr := range prs {
			org, repo, number, err := github.ParsePRURL(pr)
			if err != nil {
				continue
			}
			desc, err := gh.Description(ctx, org, repo, number)
			if err != nil {
				p.logger.Error("fetching PR %s/%s#%d: %v", org, repo, number, err)
				continue
			}
			lines = append(lines, fmt.Sprintf("%s/%s#%d: %s", org, repo, number, desc.Title))
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return []string{"PR context:\n  " + strings.Join(lines, "\n  ")}
}

// postTimeSummary answers the summarize command with a failure breakdown
// over the requested lookback window, threaded on the command message.
func (p *pipeline) postTimeSummary(ctx context.Context, threadTS string, lookback time.Duration, verbose bool) error {
	since := time.Now().UTC().Add(-lookback)

	counts, err := p.db.CategoryCounts(ctx, p.channelID, since)
	if err != nil {
		return fmt.Errorf("aggregating failure categories: %w", err)
	}

	var entries []store.Analysis
	if verbose {
		recent, err := p.db.RecentAnalyses(ctx, p.channelID, 50)
		if err != nil {
			return fmt.Errorf("listing recent analyses: %w", err)
		}
		for _, a := range recent {
			if a.CreatedAt.After(since) {
				entries = append(entries, a)
			}
		}
	}

	return p.poster.PostSummary(ctx, threadTS, renderLookbackSummary(lookback, counts, entries))
}

// renderLookbackSummary formats per-category failure counts over a lookback
// window, with the individual jobs appended in verbose mode.
func renderLookbackSummary(lookback time.Duration, counts map[string]int, entries []store.Analysis) string {
	categories := make([]string, 0, len(counts))
	total := 0
	for category, count := range counts {
		categories = append(categories, category)
		total += count
	}
	sort.Strings(categories)

	var b strings.Builder
	fmt.Fprintf(&b, "Failures in the last %s: %d\n", lookback, total)
	b.WriteString(perf.Separator)
	b.WriteString("\n")
	if total == 0 {
		b.WriteString("No failures recorded.\n")
		return b.String()
	}
	for _, category := range categories {
		fmt.Fprintf(&b, "%-40s %d\n", category, counts[category])
	}

	if len(entries) > 0 {
		b.WriteString("\nRecent failures:\n")
		for _, a := range entries {
			fmt.Fprintf(&b, "  %s (%s)\n", a.JobName, a.Category)
		}
	}
	return b.String()
}
