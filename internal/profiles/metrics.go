package profiles

import "github.com/prometheus/client_golang/prometheus"

var switchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_profile_switches_total",
		Help: "Total number of completed profile switches by target profile.",
	},
	[]string{"profile"},
)

// RegisterMetrics registers the switcher's collectors with the default
// Prometheus registry. Call once at startup; tests skip it.
func RegisterMetrics() {
	prometheus.MustRegister(switchesTotal)
}
