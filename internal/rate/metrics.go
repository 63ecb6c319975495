package rate

import "github.com/prometheus/client_golang/prometheus"

var (
	remainingGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "midea_rate_limit_remaining",
			Help: "Remaining calls for the provider rate-limit window",
		},
		[]string{"provider", "window"},
	)
	cooldownGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "midea_rate_limit_cooldown_seconds",
			Help: "Active failure-cooldown length for the provider, zero when clear",
		},
		[]string{"provider"},
	)
)

// MetricsCollectors exposes shared rate-limit collectors.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		remainingGauge,
		cooldownGauge,
	}
}
