// Package metrics holds the Prometheus instruments for the insights
// engine. Everything registers against the default registry; the HTTP
// adapter exposes it on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecomputesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scan_insights",
		Subsystem: "engine",
		Name:      "recomputes_total",
		Help:      "Total fetch+compute cycles started.",
	})

	RecomputeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scan_insights",
		Subsystem: "engine",
		Name:      "recompute_failures_total",
		Help:      "Recompute cycles that ended degraded, by reason.",
	}, []string{"reason"}) // "fetch"

	StaleResultsDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scan_insights",
		Subsystem: "engine",
		Name:      "stale_results_discarded_total",
		Help:      "Completed fetches discarded because a newer signal superseded them.",
	})

	AlertsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scan_insights",
		Subsystem: "engine",
		Name:      "alerts_published_total",
		Help:      "Alerts published to subscribers, by alert type.",
	}, []string{"type"})

	DismissalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scan_insights",
		Subsystem: "engine",
		Name:      "dismissals_total",
		Help:      "Alert dismissals accepted.",
	})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scan_insights",
		Subsystem: "engine",
		Name:      "active_sessions",
		Help:      "User sessions currently held by the engine.",
	})
)

func init() {
	prometheus.MustRegister(
		RecomputesTotal,
		RecomputeFailures,
		StaleResultsDiscarded,
		AlertsPublished,
		DismissalsTotal,
		ActiveSessions,
	)
}
