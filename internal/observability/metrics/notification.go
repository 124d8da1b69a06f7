package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Notification tracks user notification delivery per channel.
type Notification struct {
	sent   *prometheus.CounterVec
	failed *prometheus.CounterVec
}

// NewNotification creates and registers the notification collectors.
func NewNotification(reg prometheus.Registerer) (*Notification, error) {
	n := &Notification{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "User notifications delivered, labeled by channel.",
		}, []string{"channel"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "User notification deliveries that failed, labeled by channel.",
		}, []string{"channel"}),
	}

	for _, c := range []prometheus.Collector{n.sent, n.failed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (n *Notification) IncSent(channel string) {
	n.sent.WithLabelValues(channel).Inc()
}

func (n *Notification) IncFailed(channel string) {
	n.failed.WithLabelValues(channel).Inc()
}
