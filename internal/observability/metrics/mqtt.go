package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MQTT tracks the playback command channel to the smart-home hub.
type MQTT struct {
	publishes     prometheus.Counter
	publishErrors prometheus.Counter
	connected     prometheus.Gauge
}

// NewMQTT creates and registers the MQTT collectors.
func NewMQTT(reg prometheus.Registerer) (*MQTT, error) {
	m := &MQTT{
		publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "publishes_total",
			Help:      "Messages published to the playback channel.",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "publish_errors_total",
			Help:      "Publish attempts that returned an error or timed out.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "1 while the broker connection is up.",
		}),
	}

	for _, c := range []prometheus.Collector{m.publishes, m.publishErrors, m.connected} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MQTT) IncPublishes() { m.publishes.Inc() }

func (m *MQTT) IncPublishErrors() { m.publishErrors.Inc() }

func (m *MQTT) SetConnected(up bool) {
	if up {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}
