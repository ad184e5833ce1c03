package perf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const changepointJSON = `[
  {
    "is_changepoint": true,
    "ocpVersion": "4.20.0-0.nightly-2026-08-20",
    "github_context": {
      "current_version": "4.20.0-0.nightly-2026-08-20",
      "previous_version": "4.20.0-0.nightly-2026-08-19"
    },
    "prs": ["https://github.com/openshift/ovn-kubernetes/pull/100",
            "https://github.com/openshift/ovn-kubernetes/pull/101",
            "https://github.com/openshift/ovn-kubernetes/pull/102"],
    "metrics": {
      "podReadyLatency": {"percentage_change": 15.35},
      "ovnCPU": {"percentage_change": -3.2},
      "etcdFsync": {"percentage_change": 0}
    }
  },
  {
    "is_changepoint": false,
    "metrics": {"podReadyLatency": {"percentage_change": 50}}
  },
  {
    "is_changepoint": true,
    "metrics": {"stable": {"percentage_change": 0}}
  }
]`

func TestExtractChangepoints(t *testing.T) {
	records, err := ParseChangepoints([]byte(changepointJSON))
	require.NoError(t, err)
	require.Len(t, records, 3)

	summaries := ExtractChangepoints(records, 2)
	require.Len(t, summaries, 1, "non-changepoints and all-zero entries are dropped")

	summary := summaries[0]
	assert.Contains(t, summary, "Changepoint 1 of 2")
	assert.Contains(t, summary, "podReadyLatency: +15.35%")
	assert.Contains(t, summary, "ovnCPU: -3.20%")
	assert.NotContains(t, summary, "etcdFsync")
	assert.Contains(t, summary, "Version: 4.20.0-0.nightly-2026-08-20")
	assert.Contains(t, summary, "Previous: 4.20.0-0.nightly-2026-08-19")
	assert.Contains(t, summary, "PRs between nightlies (3):")
	assert.Contains(t, summary, "pull/100")
	assert.Contains(t, summary, "pull/101")
	assert.NotContains(t, summary, "pull/102")
	assert.Contains(t, summary, "... and 1 more")
	assert.True(t, strings.HasPrefix(summary, Separator))
}

func TestExtractChangepointsUnlimitedPRs(t *testing.T) {
	records, err := ParseChangepoints([]byte(changepointJSON))
	require.NoError(t, err)

	summaries := ExtractChangepoints(records, 0)
	require.Len(t, summaries, 1)
	assert.Contains(t, summaries[0], "pull/102")
	assert.NotContains(t, summaries[0], "more")
}

func TestExtractChangepointsVersionFallback(t *testing.T) {
	records := []Changepoint{{
		IsChangepoint: true,
		OCPVersion:    "4.19.0-0.nightly",
		Metrics:       map[string]Metric{"cpu": {PercentageChange: 9.9}},
	}}
	summaries := ExtractChangepoints(records, 0)
	require.Len(t, summaries, 1)
	assert.Contains(t, summaries[0], "Version: 4.19.0-0.nightly")
	assert.Contains(t, summaries[0], "Previous: unknown")
}

func TestParseChangepointsInvalid(t *testing.T) {
	_, err := ParseChangepoints([]byte("not json"))
	require.Error(t, err)
}
