// Package metrics provides Prometheus metrics for the coachd session and
// pipeline subsystems.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// No cardinality explosion: no session_id or frame_id in labels.

var (
	// SessionsByState tracks current sessions by lifecycle state.
	SessionsByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "coachd_sessions",
		Help: "Current number of sessions, by state.",
	}, []string{"state"})

	// ActiveSessions tracks sessions counted against the admission limit.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coachd_active_sessions",
		Help: "Current number of ACTIVE sessions counted against maximum_clients.",
	})

	// AdmissionRejectTotal counts admission rejections by reason.
	AdmissionRejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coachd_admission_reject_total",
		Help: "Total number of rejected session operations, by reason.",
	}, []string{"reason"})

	// FramesAnalyzedTotal counts analyzed frames by analyzing state and outcome class.
	FramesAnalyzedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coachd_frames_analyzed_total",
		Help: "Total number of frames run through the pipeline, by analyzing state and outcome.",
	}, []string{"state", "outcome"})

	// FeedbackEmittedTotal counts emitted feedback codes.
	FeedbackEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coachd_feedback_emitted_total",
		Help: "Total number of feedback codes emitted to clients, by code.",
	}, []string{"code"})

	// RepetitionsTotal counts completed repetitions by correctness.
	RepetitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coachd_repetitions_total",
		Help: "Total number of completed repetitions, by correctness.",
	}, []string{"correct"})

	// CleanupEvictionsTotal counts sweeper evictions by rule.
	CleanupEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coachd_cleanup_evictions_total",
		Help: "Total number of sessions evicted or coerced by the cleanup task, by rule.",
	}, []string{"rule"})

	// FrameDuration observes full pipeline latency per frame.
	FrameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coachd_frame_pipeline_seconds",
		Help:    "Wall time of a single analyze_frame pipeline pass.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

// RecordFrame increments the frame counter for one pipeline pass.
func RecordFrame(state, outcome string) {
	FramesAnalyzedTotal.WithLabelValues(state, outcome).Inc()
}

// RecordFeedback increments the feedback counter.
func RecordFeedback(code string) {
	FeedbackEmittedTotal.WithLabelValues(code).Inc()
}

// RecordReject increments the admission rejection counter.
func RecordReject(reason string) {
	AdmissionRejectTotal.WithLabelValues(reason).Inc()
}

// RecordEviction increments the cleanup eviction counter.
func RecordEviction(rule string) {
	CleanupEvictionsTotal.WithLabelValues(rule).Inc()
}

// RecordRepetition increments the repetition counter.
func RecordRepetition(correct bool) {
	label := "false"
	if correct {
		label = "true"
	}
	RepetitionsTotal.WithLabelValues(label).Inc()
}

// GetActiveSessions returns the current gauge value (for testing).
func GetActiveSessions() float64 {
	var m dto.Metric
	if err := ActiveSessions.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
