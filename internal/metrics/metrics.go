package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandlens_workflow_steps_total",
			Help: "Workflow steps by name and outcome",
		},
		[]string{"step", "outcome"},
	)

	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brandlens_workflow_step_duration_seconds",
			Help:    "Workflow step duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"step"},
	)

	// LLM metrics
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandlens_llm_requests_total",
			Help: "Requests to the LLM provider by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brandlens_llm_request_duration_seconds",
			Help:    "LLM provider request latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		},
		[]string{"kind"},
	)

	FallbacksUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandlens_fallbacks_total",
			Help: "Deterministic fallback strategies used instead of the LLM",
		},
		[]string{"component", "strategy"},
	)

	// Store metrics
	StoreRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandlens_store_retries_total",
			Help: "Retries of transient store errors by operation label",
		},
		[]string{"label"},
	)

	StoreChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandlens_store_chunks_total",
			Help: "Physical statement batches executed by operation label",
		},
		[]string{"label"},
	)
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// ObserveStep records a workflow step outcome and its duration.
func ObserveStep(step string, seconds float64, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	StepsTotal.WithLabelValues(step, outcome).Inc()
	StepDuration.WithLabelValues(step).Observe(seconds)
}
