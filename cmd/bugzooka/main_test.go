package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-performance/BugZooka/pkg/config"
)

func TestRenderWeeklySummaryCounts(t *testing.T) {
	thisWeek := map[string]int{
		"test phase: workload failure": 3,
		"install failure":              1,
	}
	twoWeeks := map[string]int{
		"test phase: workload failure": 5,
		"install failure":              3,
	}

	out := renderWeeklySummary(thisWeek, twoWeeks)
	assert.Contains(t, out, "Failures analyzed this week: 4")
	assert.Contains(t, out, "install failure")
	assert.Contains(t, out, "test phase: workload failure")
	// 4 this week vs 4 prior week is flat.
	assert.Contains(t, out, "+0.00")
}

func TestRenderWeeklySummaryEmpty(t *testing.T) {
	out := renderWeeklySummary(nil, nil)
	assert.Contains(t, out, "Failures analyzed this week: 0")
	assert.Contains(t, out, "No failures recorded.")
	assert.Contains(t, out, "n/a")
}

func TestBuildAnalyzerDisabled(t *testing.T) {
	cfg := &config.Config{}
	analyzer, err := buildAnalyzer(cfg)
	require.NoError(t, err)
	assert.Nil(t, analyzer)
}

func TestBuildAnalyzerOpenAI(t *testing.T) {
	cfg := &config.Config{}
	cfg.Inference.Enabled = true
	cfg.Inference.Provider = "openai"
	cfg.Inference.Endpoint = "http://localhost:11434/v1"
	cfg.Inference.Token = "test-token"
	cfg.Inference.Model = "gpt-4"
	cfg.Inference.Retry = config.RetryConfig{
		MaxAttempts: 2,
		Delay:       config.Duration(time.Second),
		MaxDelay:    config.Duration(5 * time.Second),
		Backoff:     2.0,
	}

	analyzer, err := buildAnalyzer(cfg)
	require.NoError(t, err)
	assert.NotNil(t, analyzer)
}
