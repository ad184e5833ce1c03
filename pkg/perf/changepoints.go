// Package perf renders performance changepoint reports and periodic
// statistics summaries posted to Slack.
package perf

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Separator rules off sections in a changepoint report.
var Separator = strings.Repeat("─", 60)

// Metric is one measured series in a changepoint record.
type Metric struct {
	PercentageChange float64 `json:"percentage_change"`
}

// GitHubContext ties a changepoint to the nightly payloads around it.
type GitHubContext struct {
	CurrentVersion  string `json:"current_version"`
	PreviousVersion string `json:"previous_version"`
}

// Changepoint is one record in a changepoint detection result set.
type Changepoint struct {
	IsChangepoint bool              `json:"is_changepoint"`
	OCPVersion    string            `json:"ocpVersion"`
	GitHubContext GitHubContext     `json:"github_context"`
	PRs           []string          `json:"prs"`
	Metrics       map[string]Metric `json:"metrics"`
}

// ParseChangepoints decodes a changepoint detection result document.
func ParseChangepoints(data []byte) ([]Changepoint, error) {
	var records []Changepoint
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding changepoint records: %w", err)
	}
	return records, nil
}

// ExtractChangepoints renders one summary block per flagged changepoint with
// at least one regressed metric. maxPRs caps the PR listing per block; zero
// or negative shows all.
func ExtractChangepoints(records []Changepoint, maxPRs int) []string {
	var flagged []Changepoint
	for _, r := range records {
		if r.IsChangepoint {
			flagged = append(flagged, r)
		}
	}

	var summaries []string
	for idx, entry := range flagged {
		regressed := regressedMetrics(entry.Metrics)
		if len(regressed) == 0 {
			continue
		}

		currentVersion := entry.GitHubContext.CurrentVersion
		if currentVersion == "" {
			currentVersion = entry.OCPVersion
		}
		if currentVersion == "" {
			currentVersion = "unknown"
		}
		previousVersion := entry.GitHubContext.PreviousVersion
		if previousVersion == "" {
			previousVersion = "unknown"
		}

		lines := []string{
			Separator,
			fmt.Sprintf("  Changepoint %d of %d: %s", idx+1, len(flagged), strings.Join(regressed, ", ")),
			Separator,
			"Version: " + currentVersion,
			"Previous: " + previousVersion,
		}

		if len(entry.PRs) > 0 {
			display := entry.PRs
			if maxPRs > 0 && len(display) > maxPRs {
				display = display[:maxPRs]
			}
			lines = append(lines, fmt.Sprintf("\nPRs between nightlies (%d):", len(entry.PRs)))
			for _, pr := range display {
				lines = append(lines, "  "+pr)
			}
			if maxPRs > 0 && len(entry.PRs) > maxPRs {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(entry.PRs)-maxPRs))
			}
		}

		summaries = append(summaries, strings.Join(lines, "\n"))
	}
	return summaries
}

// regressedMetrics formats every metric with a non-zero change, in stable
// name order.
func regressedMetrics(metrics map[string]Metric) []string {
	var out []string
	for _, name := range sortedMetricNames(metrics) {
		pct := metrics[name].PercentageChange
		if pct == 0 {
			continue
		}
		sign := ""
		if pct > 0 {
			sign = "+"
		}
		out = append(out, fmt.Sprintf("%s: %s%.2f%%", name, sign, pct))
	}
	return out
}

func sortedMetricNames(metrics map[string]Metric) []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
