// Package observability aggregates the Prometheus collectors behind a single
// Metrics value that services receive by injection. A nil *Metrics is valid
// everywhere and disables instrumentation, which keeps tests quiet.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petpulse/petpulse-go/internal/observability/metrics"
)

// Metrics owns the registry and the typed collector groups.
type Metrics struct {
	registry *prometheus.Registry

	Monitor      *metrics.Monitor
	Notification *metrics.Notification
	MQTT         *metrics.MQTT
}

// NewMetrics builds a fresh registry with all collector groups plus the
// standard Go runtime collectors.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	monitor, err := metrics.NewMonitor(reg)
	if err != nil {
		return nil, err
	}
	notif, err := metrics.NewNotification(reg)
	if err != nil {
		return nil, err
	}
	mq, err := metrics.NewMQTT(reg)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		registry:     reg,
		Monitor:      monitor,
		Notification: notif,
		MQTT:         mq,
	}, nil
}

// Registry exposes the underlying registry, mainly for tests that gather.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
