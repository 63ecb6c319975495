package bridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/mideactl/internal/appliance"
)

var applianceLabels = []string{"appliance_id", "name", "model"}

// The online gauge deliberately omits the state-derived name label:
// offline polls have no fresh state, and a label mismatch would split
// the series and leave the last online sample pinned at 1.
var onlineLabels = []string{"appliance_id", "model"}

// Metrics holds the bridge's Prometheus collectors. Gauges are set by
// the poll loop; nothing here touches the network.
type Metrics struct {
	humidity       *prometheus.GaugeVec
	targetHumidity *prometheus.GaugeVec
	fanSpeed       *prometheus.GaugeVec
	tankFull       *prometheus.GaugeVec
	ionMode        *prometheus.GaugeVec
	running        *prometheus.GaugeVec
	online         *prometheus.GaugeVec

	pollSuccess prometheus.Gauge
	pollsTotal  *prometheus.CounterVec
	cloudDenied prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		humidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "midea_appliance_humidity_percent",
			Help: "Current relative humidity reported by the appliance",
		}, applianceLabels),
		targetHumidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "midea_appliance_target_humidity_percent",
			Help: "Target relative humidity the appliance is set to",
		}, applianceLabels),
		fanSpeed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "midea_appliance_fan_speed",
			Help: "Fan speed level",
		}, applianceLabels),
		tankFull: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "midea_appliance_tank_full",
			Help: "1 when the water tank is full",
		}, applianceLabels),
		ionMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "midea_appliance_ion_mode",
			Help: "1 when the ionizer is on",
		}, applianceLabels),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "midea_appliance_running",
			Help: "1 when the appliance is powered on",
		}, applianceLabels),
		online: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "midea_appliance_online",
			Help: "1 when the last poll reached the appliance",
		}, onlineLabels),
		pollSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "midea_bridge_poll_success",
			Help: "1 when every appliance in the last poll cycle succeeded",
		}),
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "midea_bridge_polls_total",
			Help: "Appliance polls by result",
		}, []string{"result"}),
		cloudDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "midea_bridge_cloud_signin_denied_total",
			Help: "Cloud sign-ins skipped because the rate guard denied them",
		}),
	}

	reg.MustRegister(
		m.humidity, m.targetHumidity, m.fanSpeed, m.tankFull,
		m.ionMode, m.running, m.online,
		m.pollSuccess, m.pollsTotal, m.cloudDenied,
	)
	return m
}

func (m *Metrics) observe(info appliance.Info, state appliance.State) {
	labels := prometheus.Labels{"appliance_id": info.ID, "name": state.Name, "model": info.Model}
	m.humidity.With(labels).Set(float64(state.Humidity))
	m.targetHumidity.With(labels).Set(float64(state.TargetHumidity))
	m.fanSpeed.With(labels).Set(float64(state.FanSpeed))
	m.tankFull.With(labels).Set(boolGauge(state.TankFull))
	m.ionMode.With(labels).Set(boolGauge(state.IonMode))
	m.running.With(labels).Set(boolGauge(state.Running))
	m.online.WithLabelValues(info.ID, info.Model).Set(1)
}

func (m *Metrics) observeOffline(info appliance.Info) {
	m.online.WithLabelValues(info.ID, info.Model).Set(0)
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
