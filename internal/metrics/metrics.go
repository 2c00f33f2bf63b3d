package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DecisionsTotal counts frozen decisions by action.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudlens",
			Subsystem: "pipeline",
			Name:      "decisions_total",
			Help:      "Number of decisions produced, by action",
		},
		[]string{"action"},
	)

	// GuardrailFailuresTotal counts suppressed narratives by violated rule.
	GuardrailFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudlens",
			Subsystem: "guardrail",
			Name:      "failures_total",
			Help:      "Number of guardrail verdicts that failed, by first violated rule",
		},
		[]string{"rule"},
	)

	// GenerationLatency tracks wall-clock time of narrative generation,
	// including failed attempts.
	GenerationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fraudlens",
			Subsystem: "narrative",
			Name:      "generation_latency_seconds",
			Help:      "Time spent waiting on the generation service",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	// GenerationErrorsTotal counts generation failures by kind.
	GenerationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudlens",
			Subsystem: "narrative",
			Name:      "generation_errors_total",
			Help:      "Number of generation failures",
		},
		[]string{"kind"},
	)

	// AuditAppendsTotal counts records durably appended to the audit log.
	AuditAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudlens",
			Subsystem: "audit",
			Name:      "appends_total",
			Help:      "Number of audit records appended, by kind",
		},
		[]string{"kind"},
	)

	// AuditWriteErrorsTotal counts failed audit writes. These fail the
	// enclosing request.
	AuditWriteErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fraudlens",
			Subsystem: "audit",
			Name:      "write_errors_total",
			Help:      "Number of audit writes that could not complete",
		},
	)
)

// MustRegister registers all metrics with the default Prometheus registry.
func MustRegister() {
	prometheus.MustRegister(
		DecisionsTotal,
		GuardrailFailuresTotal,
		GenerationLatency,
		GenerationErrorsTotal,
		AuditAppendsTotal,
		AuditWriteErrorsTotal,
	)
}
