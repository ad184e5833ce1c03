// Package metrics provides Prometheus-based metrics recording for the
// analysis pipeline and inference calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records pipeline and inference metrics to Prometheus.
type Recorder struct {
	messagesFetched   *prometheus.CounterVec
	messagesProcessed *prometheus.CounterVec
	segmentsFlagged   *prometheus.CounterVec
	inferenceRequests *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec
	pipelineDuration  *prometheus.HistogramVec
}

// NewRecorder creates a metrics recorder registered against reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		messagesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bugzooka_messages_fetched_total",
				Help: "Total number of channel messages fetched by the poller",
			},
			[]string{"channel"},
		),
		messagesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bugzooka_messages_processed_total",
				Help: "Total number of failure messages run through the analysis pipeline",
			},
			[]string{"channel", "status"},
		),
		segmentsFlagged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bugzooka_segments_flagged_total",
				Help: "Total number of build-log segments flagged with error keywords",
			},
			[]string{"phase"},
		),
		inferenceRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bugzooka_inference_requests_total",
				Help: "Total number of inference requests by provider and status",
			},
			[]string{"provider", "status"},
		),
		inferenceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bugzooka_inference_duration_seconds",
				Help:    "Duration of inference requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		pipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bugzooka_pipeline_duration_seconds",
				Help:    "End-to-end duration of message analysis in seconds",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"channel"},
		),
	}
}

// IncMessagesFetched records n messages fetched from a channel.
func (r *Recorder) IncMessagesFetched(channel string, n int) {
	r.messagesFetched.WithLabelValues(channel).Add(float64(n))
}

// ObservePipeline records the outcome and duration of one message analysis.
func (r *Recorder) ObservePipeline(channel string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	r.messagesProcessed.WithLabelValues(channel, status).Inc()
	r.pipelineDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// IncSegmentsFlagged records flagged segments for a phase.
func (r *Recorder) IncSegmentsFlagged(phase string, n int) {
	r.segmentsFlagged.WithLabelValues(phase).Add(float64(n))
}

// ObserveInference records the outcome and duration of one inference request.
func (r *Recorder) ObserveInference(provider string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	r.inferenceRequests.WithLabelValues(provider, status).Inc()
	r.inferenceDuration.WithLabelValues(provider).Observe(duration.Seconds())
}
