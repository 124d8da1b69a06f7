// Package mqtt maintains the broker connection that carries playback
// commands to the smart-home hub.
package mqtt

import (
	"context"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/petpulse/petpulse-go/internal/conf"
	"github.com/petpulse/petpulse-go/internal/errors"
	"github.com/petpulse/petpulse-go/internal/logger"
	"github.com/petpulse/petpulse-go/internal/observability/metrics"
)

const (
	// reconnectCooldown spaces out manual connect attempts so a flapping
	// broker does not get hammered.
	reconnectCooldown = 5 * time.Second

	connectTimeout     = 10 * time.Second
	disconnectQuiesce  = 250 // milliseconds
	defaultHubClientID = "petpulse-agent"
)

// Client is the hub broker connection. Implementations are safe for
// concurrent use.
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic, payload string) error
	IsConnected() bool
	Disconnect()
}

type client struct {
	settings conf.MQTTSettings
	metrics  *metrics.MQTT
	log      logger.Logger

	mu          sync.Mutex
	paho        pahomqtt.Client
	lastAttempt time.Time
}

// NewClient validates settings and returns an unconnected client. metrics
// may be nil.
func NewClient(settings conf.MQTTSettings, m *metrics.MQTT, log logger.Logger) (Client, error) {
	if strings.TrimSpace(settings.Broker) == "" {
		return nil, errors.Newf("mqtt broker address is empty").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.ClientID == "" {
		settings.ClientID = defaultHubClientID
	}
	return &client{settings: settings, metrics: m, log: log}, nil
}

// Connect dials the broker and waits for the session, honoring ctx. Repeat
// attempts inside the cooldown window are rejected; the paho auto-reconnect
// covers transient drops once the first session is up.
func (c *client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if since := time.Since(c.lastAttempt); since < reconnectCooldown {
		c.mu.Unlock()
		return errors.Newf("connection attempt too recent, retry in %s",
			(reconnectCooldown - since).Round(time.Millisecond)).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Build()
	}
	c.lastAttempt = time.Now()

	if c.paho != nil && c.paho.IsConnected() {
		c.mu.Unlock()
		return nil
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.settings.Broker)
	opts.SetClientID(c.settings.ClientID)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		c.setConnected(true)
		c.log.Info("connected to hub broker", logger.String("broker", c.settings.Broker))
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.setConnected(false)
		c.log.Warn("hub broker connection lost", logger.Error(err))
	})

	paho := pahomqtt.NewClient(opts)
	c.paho = paho
	c.mu.Unlock()

	token := paho.Connect()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("broker", c.settings.Broker).
			Build()
	}
	return nil
}

// Publish sends one payload at the configured QoS and waits for the broker
// acknowledgment, honoring ctx.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	paho := c.paho
	c.mu.Unlock()

	if paho == nil || !paho.IsConnected() {
		c.incPublishErrors()
		return errors.Newf("not connected to broker").
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("topic", topic).
			Build()
	}

	token := paho.Publish(topic, byte(c.settings.QoS), false, payload)
	select {
	case <-ctx.Done():
		c.incPublishErrors()
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		c.incPublishErrors()
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("topic", topic).
			Build()
	}

	if c.metrics != nil {
		c.metrics.IncPublishes()
	}
	return nil
}

// IsConnected reports whether the broker session is up.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paho != nil && c.paho.IsConnected()
}

// Disconnect closes the session, letting in-flight work quiesce briefly.
func (c *client) Disconnect() {
	c.mu.Lock()
	paho := c.paho
	c.mu.Unlock()

	if paho != nil && paho.IsConnected() {
		paho.Disconnect(disconnectQuiesce)
		c.setConnected(false)
		c.log.Info("disconnected from hub broker")
	}
}

func (c *client) setConnected(up bool) {
	if c.metrics != nil {
		c.metrics.SetConnected(up)
	}
}

func (c *client) incPublishErrors() {
	if c.metrics != nil {
		c.metrics.IncPublishErrors()
	}
}
