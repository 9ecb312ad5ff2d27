// Package metrics holds the process-wide Prometheus collectors.
// Collectors register on the default registry; cmd/api exposes it on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "call_screener"

var (
	CallsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calls_created_total",
		Help:      "Calls opened in the ringing status.",
	})

	CallTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "call_transitions_total",
		Help:      "Applied call status transitions.",
	}, []string{"from", "to"})

	CallbackOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "callback_operations_total",
		Help:      "Callback lifecycle operations by outcome status.",
	}, []string{"operation", "status"})

	RoutingDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routing_decisions_total",
		Help:      "Routing actions executed against calls.",
	}, []string{"action", "result"})

	ScreeningStageDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "screening_stage_duration_seconds",
		Help:      "Latency of transcription and classification stages including the collaborator round trip.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
	}, []string{"stage"})

	ScreeningStageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screening_stage_failures_total",
		Help:      "Screening stage failures by error kind.",
	}, []string{"stage", "kind"})

	ScreeningJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screening_jobs_total",
		Help:      "Async screening jobs by result (submitted, rejected, completed, failed).",
	}, []string{"result"})

	SynthesisStreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "synthesis_streams_active",
		Help:      "Speech synthesis streams currently open.",
	})

	SynthesisBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "synthesis_bytes_total",
		Help:      "Audio bytes delivered to synthesis stream consumers.",
	})
)

// ObserveStage records a screening stage latency since start.
func ObserveStage(stage string, start time.Time) {
	ScreeningStageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// KindLabel turns an error kind into a low-cardinality label value.
func KindLabel(kind error) string {
	if kind == nil {
		return "unknown"
	}
	return kind.Error()
}
