// Package metrics defines the typed Prometheus collectors exposed by the
// agent. Collector structs are created once against a registry and injected
// where needed; all methods are safe for concurrent use.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// namespace prefixes every metric so dashboards can scope on petpulse_*.
const namespace = "petpulse"

// Monitor tracks the escalation pipeline: admitted observations, critical
// alerts, executed interventions, resolutions, and dispatcher queue depth.
type Monitor struct {
	unusualEvents    *prometheus.CounterVec
	criticalAlerts   *prometheus.CounterVec
	interventions    *prometheus.CounterVec
	resolutions      prometheus.Counter
	playbackFailures prometheus.Counter
	queueDepth       *prometheus.GaugeVec
}

// NewMonitor creates and registers the monitor collectors.
func NewMonitor(reg prometheus.Registerer) (*Monitor, error) {
	m := &Monitor{
		unusualEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unusual_events_total",
			Help:      "Unusual observations admitted by the ingestion gate.",
		}, []string{"pet_id"}),
		criticalAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "critical_alerts_total",
			Help:      "Alerts that reached the critical tier.",
		}, []string{"pet_id"}),
		interventions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interventions_total",
			Help:      "Interventions executed, labeled by tier.",
		}, []string{"tier"}),
		resolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Open alerts resolved by a return-to-normal observation.",
		}),
		playbackFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_failures_total",
			Help:      "Playback commands that exhausted their delivery retries.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Observations waiting in each dispatcher partition.",
		}, []string{"queue"}),
	}

	for _, c := range []prometheus.Collector{
		m.unusualEvents, m.criticalAlerts, m.interventions,
		m.resolutions, m.playbackFailures, m.queueDepth,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Monitor) IncUnusualEvents(petID string) {
	m.unusualEvents.WithLabelValues(petID).Inc()
}

func (m *Monitor) IncCriticalAlerts(petID string) {
	m.criticalAlerts.WithLabelValues(petID).Inc()
}

func (m *Monitor) IncInterventions(tier string) {
	m.interventions.WithLabelValues(tier).Inc()
}

func (m *Monitor) IncResolutions() {
	m.resolutions.Inc()
}

func (m *Monitor) IncPlaybackFailures() {
	m.playbackFailures.Inc()
}

func (m *Monitor) SetQueueDepth(queue string, depth int) {
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// QueueDepthGauge returns the depth gauge for one partition so hot paths can
// hold it instead of resolving the label on every update.
func (m *Monitor) QueueDepthGauge(queue string) prometheus.Gauge {
	return m.queueDepth.WithLabelValues(queue)
}
