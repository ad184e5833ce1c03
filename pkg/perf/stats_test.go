package perf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateStats(t *testing.T) {
	s, ok := CalculateStats([]float64{3.0, 1.5, 2.25})
	require.True(t, ok)
	assert.Equal(t, 1.5, s.Min)
	assert.Equal(t, 3.0, s.Max)
	assert.Equal(t, 2.25, s.Avg)
	assert.Equal(t, 3, s.N)

	_, ok = CalculateStats(nil)
	assert.False(t, ok)
}

func TestWeeklyChangeCalendar(t *testing.T) {
	change, ok := WeeklyChangeCalendar([]float64{110, 110}, []float64{100, 100})
	require.True(t, ok)
	assert.Equal(t, 10.0, change)

	_, ok = WeeklyChangeCalendar(nil, []float64{1})
	assert.False(t, ok)

	_, ok = WeeklyChangeCalendar([]float64{1}, []float64{0})
	assert.False(t, ok, "zero baseline has no defined percent change")
}

func TestWeeklyHint(t *testing.T) {
	assert.Equal(t, "n/a", WeeklyHint(0, false, HigherIsWorse, 5))

	// Below threshold: plain value.
	assert.Equal(t, "  +2.00", WeeklyHint(2, true, HigherIsWorse, 5))

	// Latency went up past threshold: regression.
	assert.Contains(t, WeeklyHint(12, true, HigherIsWorse, 5), "🆘")

	// Latency went down past threshold: improvement.
	assert.Contains(t, WeeklyHint(-12, true, HigherIsWorse, 5), "🟢")

	// Throughput went down past threshold: regression.
	assert.Contains(t, WeeklyHint(-12, true, LowerIsWorse, 5), "🆘")
}

func TestSchedulerDisabledWithoutSchedule(t *testing.T) {
	s := NewScheduler("", func(context.Context) error { return nil })
	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.Running())
}

func TestSchedulerRejectsBadExpression(t *testing.T) {
	s := NewScheduler("not a cron line", func(context.Context) error { return nil })
	require.Error(t, s.Start(context.Background()))
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	s := NewScheduler("0 9 * * 1", func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.Running())

	cancel()
	require.Eventually(t, func() bool { return !s.Running() },
		2*time.Second, 10*time.Millisecond)
}
