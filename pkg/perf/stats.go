package perf

import (
	"fmt"
	"math"
)

// Stats summarizes one metric series.
type Stats struct {
	Min float64
	Max float64
	Avg float64
	N   int
}

// CalculateStats computes min/max/avg over values. Returns ok=false for an
// empty series.
func CalculateStats(values []float64) (Stats, bool) {
	if len(values) == 0 {
		return Stats{}, false
	}
	s := Stats{Min: values[0], Max: values[0], N: len(values)}
	sum := 0.0
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += v
	}
	s.Min = round4(s.Min)
	s.Max = round4(s.Max)
	s.Avg = round4(sum / float64(len(values)))
	return s, true
}

// WeeklyChangeCalendar compares the average of the last 7 calendar days
// against the prior 7. Returns ok=false when either window is empty or the
// prior average is zero.
func WeeklyChangeCalendar(thisWeek, lastWeek []float64) (float64, bool) {
	if len(thisWeek) == 0 || len(lastWeek) == 0 {
		return 0, false
	}
	thisAvg := avg(thisWeek)
	lastAvg := avg(lastWeek)
	if lastAvg == 0 {
		return 0, false
	}
	return round2((thisAvg - lastAvg) / lastAvg * 100), true
}

// MetricDirection states which way a metric regresses: +1 means higher is
// worse (latency, resource usage), -1 means lower is worse (throughput).
type MetricDirection int

const (
	HigherIsWorse MetricDirection = 1
	LowerIsWorse  MetricDirection = -1
)

// WeeklyHint renders a week-over-week change with a regression marker when
// it crosses the metric's threshold in the regressing direction.
func WeeklyHint(change float64, ok bool, direction MetricDirection, threshold float64) string {
	if !ok {
		return "n/a"
	}
	if math.Abs(change) < threshold {
		return fmt.Sprintf("  %+.2f", change)
	}
	regression := (direction == HigherIsWorse && change > 0) ||
		(direction == LowerIsWorse && change < 0)
	if regression {
		return fmt.Sprintf("%+.2f 🆘", change)
	}
	return fmt.Sprintf("%+.2f 🟢", change)
}

func avg(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
