package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts controller activity.
type Metrics struct {
	Actions      *prometheus.CounterVec
	WalletEvents *prometheus.CounterVec
	Connected    prometheus.Gauge
}

// NewMetrics registers the controller metrics with registry, or with the
// default registerer when registry is nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		Actions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signet_actions_total",
			Help: "Controller actions by name and outcome",
		}, []string{"action", "outcome"}),
		WalletEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signet_wallet_events_total",
			Help: "Events pushed by the connected wallet",
		}, []string{"type"}),
		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signet_session_connected",
			Help: "1 while a wallet session is active",
		}),
	}
}

func (m *Metrics) action(name, outcome string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) walletEvent(kind string) {
	if m == nil {
		return
	}
	m.WalletEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) connected(on bool) {
	if m == nil {
		return
	}
	if on {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}
