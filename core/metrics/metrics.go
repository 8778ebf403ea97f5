// Package metrics exposes the scoring engine's Prometheus instrumentation:
// per-stage run counters, propagation iteration histograms, and stage
// durations. A Registry is created per process and injected into the batch
// runner; a nil Registry disables collection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every engine metric behind one Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	RunsTotal     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec

	PropagationIterations prometheus.Histogram
	NonConvergedRuns      prometheus.Counter
	LowCoveragePairs      prometheus.Counter
	PartialEvidencePairs  prometheus.Counter
}

// NewRegistry builds the engine metric set on a fresh Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "inverno_runs_total",
			Help: "Scoring computations by stage and outcome",
		},
		[]string{"stage", "status"},
	)

	r.StageDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inverno_stage_duration_seconds",
			Help:    "Wall time per scoring stage",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
		},
		[]string{"stage"},
	)

	r.PropagationIterations = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inverno_propagation_iterations",
			Help:    "Iterations per propagation run",
			Buckets: []float64{5, 10, 25, 50, 75, 100, 200},
		},
	)

	r.NonConvergedRuns = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "inverno_propagation_nonconverged_total",
			Help: "Propagation runs that hit the iteration cap",
		},
	)

	r.LowCoveragePairs = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "inverno_reversal_low_coverage_total",
			Help: "Drug-disease pairs with reversal coverage below threshold",
		},
	)

	r.PartialEvidencePairs = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "inverno_fusion_partial_evidence_total",
			Help: "Pairs fused from fewer than three components",
		},
	)

	return r
}

// Gatherer exposes the underlying registry for scraping or logging dumps.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveRun records one stage computation. Safe on a nil Registry.
func (r *Registry) ObserveRun(stage, status string, seconds float64) {
	if r == nil {
		return
	}
	r.RunsTotal.WithLabelValues(stage, status).Inc()
	r.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// ObservePropagation records iteration count and convergence of one
// propagation run. Safe on a nil Registry.
func (r *Registry) ObservePropagation(iterations int, converged bool) {
	if r == nil {
		return
	}
	r.PropagationIterations.Observe(float64(iterations))
	if !converged {
		r.NonConvergedRuns.Inc()
	}
}

// ObserveLowCoverage counts a low-coverage reversal pair. Safe on nil.
func (r *Registry) ObserveLowCoverage() {
	if r == nil {
		return
	}
	r.LowCoveragePairs.Inc()
}

// ObservePartialEvidence counts a partially evidenced fusion. Safe on nil.
func (r *Registry) ObservePartialEvidence() {
	if r == nil {
		return
	}
	r.PartialEvidencePairs.Inc()
}
