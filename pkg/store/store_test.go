package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "bugzooka.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCursorRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts, err := s.LastSeen(ctx, "C123")
	require.NoError(t, err)
	assert.Empty(t, ts, "unknown channel starts empty")

	require.NoError(t, s.SetLastSeen(ctx, "C123", "1727712345.000100"))
	ts, err = s.LastSeen(ctx, "C123")
	require.NoError(t, err)
	assert.Equal(t, "1727712345.000100", ts)

	// Upsert replaces.
	require.NoError(t, s.SetLastSeen(ctx, "C123", "1727712400.000200"))
	ts, err = s.LastSeen(ctx, "C123")
	require.NoError(t, err)
	assert.Equal(t, "1727712400.000200", ts)

	// Channels are independent.
	other, err := s.LastSeen(ctx, "C456")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSaveAndListAnalyses(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.SaveAnalysis(ctx, Analysis{
		ChannelID: "C123",
		MessageTS: "1.0",
		JobName:   "periodic-ci-cluster-density",
		JobURL:    "https://prow.example/view/gs/bucket/logs/job/1",
		Category:  "test phase: workload failure",
		Summary:   "pods timed out",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := s.SaveAnalysis(ctx, Analysis{
		ChannelID: "C123",
		MessageTS: "2.0",
		JobName:   "periodic-ci-node-density",
		JobURL:    "https://prow.example/view/gs/bucket/logs/job/2",
		Category:  "pre phase: install step failure",
		Summary:   "bootstrap failed",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	results, err := s.RecentAnalyses(ctx, "C123", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "periodic-ci-node-density", results[0].JobName, "newest first")
	assert.False(t, results[0].CreatedAt.IsZero())

	limited, err := s.RecentAnalyses(ctx, "C123", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.RecentAnalyses(ctx, "C999", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCategoryCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, category := range []string{
		"test phase: workload failure",
		"test phase: workload failure",
		"pre phase: install step failure",
	} {
		_, err := s.SaveAnalysis(ctx, Analysis{
			ChannelID: "C123",
			MessageTS: "1.0",
			JobName:   "job",
			JobURL:    "https://example",
			Category:  category,
			Summary:   "s",
		})
		require.NoError(t, err)
	}

	counts, err := s.CategoryCounts(ctx, "C123", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, counts["test phase: workload failure"])
	assert.Equal(t, 1, counts["pre phase: install step failure"])

	future, err := s.CategoryCounts(ctx, "C123", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, future)
}
