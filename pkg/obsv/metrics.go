// Package obsv exposes the platform's Prometheus metrics: outbox
// publish lag, projection checkpoint lag, and per-loop eligible-set
// size, the three gauges SPEC_FULL.md's domain-stack section commits
// to wiring prometheus/client_golang into.
package obsv

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds loopcore's own Prometheus collectors, separate from
// the default global registry so embedding callers don't collide with
// it.
var Registry = prometheus.NewRegistry()

var (
	outboxUnpublished = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loopcore",
		Subsystem: "outbox",
		Name:      "unpublished_rows",
		Help:      "Number of outbox rows not yet published to the message bus, observed at the start of each drain tick.",
	})

	projectionCheckpointLag = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loopcore",
		Subsystem: "projection",
		Name:      "checkpoint_lag",
		Help:      "Difference between the log's latest global_seq and the projection's checkpoint.",
	})

	eligibleSetSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loopcore",
		Subsystem: "eventmanager",
		Name:      "eligible_set_size",
		Help:      "Number of ELIGIBLE work units per plan instance.",
	}, []string{"plan_id"})

	governorDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loopcore",
		Subsystem: "governor",
		Name:      "decisions_total",
		Help:      "Loop governor sweep decisions, grouped by outcome.",
	}, []string{"outcome"})

	oracleRunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "loopcore",
		Subsystem: "oracle",
		Name:      "run_duration_seconds",
		Help:      "Duration of a full oracle suite run.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"suite_id", "status"})
)

func init() {
	Registry.MustRegister(
		outboxUnpublished,
		projectionCheckpointLag,
		eligibleSetSize,
		governorDecisions,
		oracleRunDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveOutbox records the current unpublished-row count.
func ObserveOutbox(unpublished int) {
	outboxUnpublished.Set(float64(unpublished))
}

// ObserveCheckpointLag records how far behind the projection's
// checkpoint is from the log's latest global_seq.
func ObserveCheckpointLag(lag int64) {
	projectionCheckpointLag.Set(float64(lag))
}

// ObserveEligibleSetSize records the eligible-set size for one plan instance.
func ObserveEligibleSetSize(planID string, size int) {
	eligibleSetSize.WithLabelValues(planID).Set(float64(size))
}

// RecordGovernorDecision increments the decision counter for one
// governor sweep outcome (e.g. "iteration_started",
// "stop_budget_exhausted", "skipped_active_iteration").
func RecordGovernorDecision(outcome string) {
	governorDecisions.WithLabelValues(outcome).Inc()
}

// RecordOracleRun observes a completed oracle suite run's duration.
func RecordOracleRun(suiteID, status string, durationSeconds float64) {
	oracleRunDuration.WithLabelValues(suiteID, status).Observe(durationSeconds)
}
