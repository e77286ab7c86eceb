package authz

import "github.com/prometheus/client_golang/prometheus"

// Decision-path metrics
var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatehouse_decisions_total",
			Help: "Total number of permission decisions by outcome.",
		},
		[]string{"outcome"},
	)

	snapshotHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatehouse_snapshot_cache_hits_total",
		Help: "Membership snapshot cache hits.",
	})

	snapshotMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatehouse_snapshot_cache_misses_total",
		Help: "Membership snapshot cache misses.",
	})
)

// RegisterMetrics registers the evaluator's collectors with the default
// Prometheus registry. Call once at startup; tests skip it.
func RegisterMetrics() {
	prometheus.MustRegister(decisionsTotal, snapshotHits, snapshotMisses)
}
