package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersCollectors(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	require.NotNil(t, m.Monitor)
	require.NotNil(t, m.Notification)
	require.NotNil(t, m.MQTT)
	assert.NotNil(t, m.Handler())
}

func TestMonitorCounters(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Monitor.IncUnusualEvents("pet-1")
	m.Monitor.IncUnusualEvents("pet-1")
	m.Monitor.IncUnusualEvents("pet-2")
	m.Monitor.IncCriticalAlerts("pet-1")
	m.Monitor.SetQueueDepth("observations-0", 7)

	expected := `
		# HELP petpulse_unusual_events_total Unusual observations admitted by the ingestion gate.
		# TYPE petpulse_unusual_events_total counter
		petpulse_unusual_events_total{pet_id="pet-1"} 2
		petpulse_unusual_events_total{pet_id="pet-2"} 1
	`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(),
		strings.NewReader(expected), "petpulse_unusual_events_total"))

	assert.InDelta(t, 7.0, testutil.ToFloat64(
		m.Monitor.QueueDepthGauge("observations-0")), 0.0001)
}

func TestNotificationCounters(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Notification.IncSent("push")
	m.Notification.IncSent("push")
	m.Notification.IncFailed("email")

	expected := `
		# HELP petpulse_notifications_sent_total User notifications delivered, labeled by channel.
		# TYPE petpulse_notifications_sent_total counter
		petpulse_notifications_sent_total{channel="push"} 2
	`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(),
		strings.NewReader(expected), "petpulse_notifications_sent_total"))
}
