// Package metrics exposes the engine's operational counters in
// Prometheus text exposition format, served at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helmsman_decisions_total",
			Help: "Evaluation outcomes by action and tag",
		},
		[]string{"action", "tag"},
	)

	Reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helmsman_reservations_total",
			Help: "Risk budget reservation attempts by result",
		},
		[]string{"result"}, // granted|reduced|denied
	)

	RiskUtilization = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "helmsman_risk_utilization",
			Help: "Committed risk as a fraction of the budget ceiling",
		},
	)

	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "helmsman_open_positions",
			Help: "Currently open positions",
		},
	)

	RebalanceProposals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helmsman_rebalance_proposals_total",
			Help: "Rebalance proposals by direction",
		},
		[]string{"direction"},
	)

	EvalErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helmsman_evaluation_errors_total",
			Help: "Per-instrument evaluation failures by stage",
		},
		[]string{"stage"}, // fetch|snapshot|journal
	)
)

func init() {
	prometheus.MustRegister(
		Decisions,
		Reservations,
		RiskUtilization,
		OpenPositions,
		RebalanceProposals,
		EvalErrors,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
