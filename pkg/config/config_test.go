package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
product: openshift
slack:
  token: ${TEST_SLACK_TOKEN}
  channel_id: C123
  bot_user_id: UBOT
  poll_interval: 5m
inference:
  enabled: true
  provider: generic
  endpoint: http://vllm.internal:8000/v1
  model: granite-3
  token: ${TEST_INFERENCE_TOKEN}
  retry:
    max_attempts: 3
    delay: 1s
    max_delay: 10s
    backoff: 2.0
log:
  context_lines: 5
perf:
  summary_schedule: "0 9 * * 1"
  max_prs: 10
`

func TestParseValidConfig(t *testing.T) {
	t.Setenv("TEST_SLACK_TOKEN", "xoxb-secret")
	t.Setenv("TEST_INFERENCE_TOKEN", "sk-secret")

	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "openshift", cfg.Product)
	assert.Equal(t, "xoxb-secret", cfg.Slack.Token)
	assert.Equal(t, "sk-secret", cfg.Inference.Token)
	assert.Equal(t, Duration(5*time.Minute), cfg.Slack.PollInterval)
	assert.Equal(t, 3, cfg.Inference.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Log.ContextLines)
	assert.Equal(t, "0 9 * * 1", cfg.Perf.SummarySchedule)
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("slack:\n  token: xoxb\n  channel_id: C123\n"))
	require.NoError(t, err)

	assert.Equal(t, Duration(10*time.Minute), cfg.Slack.PollInterval)
	assert.Equal(t, DefaultInitialPhase, cfg.Log.InitialPhase)
	assert.Contains(t, cfg.Log.ErrorKeywords, "error")
	assert.Equal(t, 3, cfg.Log.ContextLines)
	require.Len(t, cfg.Log.Boundaries, 3)
	assert.Equal(t, "INSTALL", cfg.Log.Boundaries[0].Label)
	assert.Equal(t, "bugzooka.db", cfg.StorePath)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]string{
		"missing token":    "slack:\n  channel_id: C123\n",
		"missing channel":  "slack:\n  token: xoxb\n",
		"bad provider":     "slack:\n  token: xoxb\n  channel_id: C1\ninference:\n  enabled: true\n  provider: carrier-pigeon\n  model: m\n",
		"missing model":    "slack:\n  token: xoxb\n  channel_id: C1\ninference:\n  enabled: true\n  provider: openai\n",
		"bad boundary":     "slack:\n  token: xoxb\n  channel_id: C1\nlog:\n  boundaries:\n    - label: X\n      pattern: '(unclosed'\n",
		"no capture group": "slack:\n  token: xoxb\n  channel_id: C1\nlog:\n  boundaries:\n    - label: X\n      pattern: 'no groups here'\n",
	}
	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(yaml))
			require.Error(t, err)
		})
	}
}

func TestEnvExpansionLeavesBareDollarAlone(t *testing.T) {
	t.Setenv("TEST_SLACK_TOKEN", "xoxb-secret")
	yaml := "slack:\n  token: ${TEST_SLACK_TOKEN}\n  channel_id: C1\nlog:\n  boundaries:\n    - label: END\n      pattern: 'step (\\w+)$'\n"
	cfg, err := Parse([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, `step (\w+)$`, cfg.Log.Boundaries[0].Pattern)
}

func TestBuildRegistryOrder(t *testing.T) {
	cfg, err := Parse([]byte("slack:\n  token: xoxb\n  channel_id: C123\n"))
	require.NoError(t, err)

	registry, err := cfg.BuildRegistry()
	require.NoError(t, err)

	// The install rule must win over the workload catch-all.
	label, step, ok := registry.Match("Running step deploy-cluster")
	require.True(t, ok)
	assert.Equal(t, "INSTALL", label)
	assert.Equal(t, "deploy-cluster", step)

	label, _, ok = registry.Match("Running step run-orion-check")
	require.True(t, ok)
	assert.Equal(t, "ORION", label)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.yaml")
	require.NoError(t, os.WriteFile(path,
		[]byte("slack:\n  token: xoxb\n  channel_id: C123\n"), 0o644))

	var mu sync.Mutex
	var got *Config
	watcher := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		got = cfg
		mu.Unlock()
	})
	watcher.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = watcher.Watch(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond) // let the watch start
	require.NoError(t, os.WriteFile(path,
		[]byte("slack:\n  token: xoxb\n  channel_id: C456\n"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil && got.Slack.ChannelID == "C456"
	}, 3*time.Second, 20*time.Millisecond)

	// An invalid edit is ignored and does not clobber the last good config.
	require.NoError(t, os.WriteFile(path, []byte(":::bad yaml"), 0o644))
	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, "C456", got.Slack.ChannelID)
	mu.Unlock()

	cancel()
	<-done
}
