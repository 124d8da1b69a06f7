// Package conf loads and holds the petpulse-go runtime configuration.
// Settings come from a YAML file plus PETPULSE_* environment overrides, with
// defaults that make the agent runnable out of the box against a local
// sqlite database.
package conf

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"

	"github.com/petpulse/petpulse-go/internal/errors"
)

// Database backend identifiers.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// MainSettings carries process-level options.
type MainSettings struct {
	Name     string `yaml:"name" mapstructure:"name"`
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// HTTPSettings configures the ingress API server.
type HTTPSettings struct {
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// DatabaseSettings selects and configures the alert history backend.
type DatabaseSettings struct {
	Type string `yaml:"type" mapstructure:"type"`
	// Path is the sqlite database file. The sqlite in-memory DSN is accepted
	// for tests.
	Path string `yaml:"path" mapstructure:"path"`
	// DSN is the mysql connection string, used when Type is "mysql".
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// QueueSettings sizes the partitioned observation dispatcher.
type QueueSettings struct {
	Partitions     int      `yaml:"partitions" mapstructure:"partitions"`
	Buffer         int      `yaml:"buffer" mapstructure:"buffer"`
	EnqueueTimeout Duration `yaml:"enqueue_timeout" mapstructure:"enqueue_timeout"`
}

// PolicySettings are the escalation tier boundaries and the resolution
// monitoring window. The consecutive-count thresholds map to the tier table:
// below ModerateAt every decision is Mild, CriticalAt and above is Critical.
type PolicySettings struct {
	ModerateAt       int      `yaml:"moderate_at" mapstructure:"moderate_at"`
	NotifyAt         int      `yaml:"notify_at" mapstructure:"notify_at"`
	CriticalAt       int      `yaml:"critical_at" mapstructure:"critical_at"`
	GateSeverity     string   `yaml:"gate_severity" mapstructure:"gate_severity"`
	MonitoringWindow Duration `yaml:"monitoring_window" mapstructure:"monitoring_window"`
}

// ExecutorSettings bound intervention delivery work.
type ExecutorSettings struct {
	RetryLimit     int      `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryDelay     Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	PublishTimeout Duration `yaml:"publish_timeout" mapstructure:"publish_timeout"`
}

// NotificationSettings configures user-facing notification channels. With no
// push URL and no service URLs the service runs in mock mode and only logs.
type NotificationSettings struct {
	// PushURL is an ntfy-compatible HTTP push endpoint.
	PushURL string `yaml:"push_url" mapstructure:"push_url"`
	// Services are shoutrrr service URLs (smtp://, telegram://, ...).
	Services []string `yaml:"services" mapstructure:"services"`
	// SendTimeout bounds one delivery attempt on the push channel.
	SendTimeout Duration `yaml:"send_timeout" mapstructure:"send_timeout"`
}

// MQTTSettings configures the playback command channel to the smart-home hub.
type MQTTSettings struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker      string `yaml:"broker" mapstructure:"broker"`
	ClientID    string `yaml:"client_id" mapstructure:"client_id"`
	TopicPrefix string `yaml:"topic_prefix" mapstructure:"topic_prefix"`
	QoS         int    `yaml:"qos" mapstructure:"qos"`
}

// ContactSettings tunes the emergency contact read cache.
type ContactSettings struct {
	CacheTTL Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// SentrySettings enables optional error telemetry. Disabled by default;
// nothing is reported unless both Enabled and DSN are set.
type SentrySettings struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN         string `yaml:"dsn" mapstructure:"dsn"`
	Environment string `yaml:"environment" mapstructure:"environment"`
}

// Settings is the root configuration object.
type Settings struct {
	Main         MainSettings         `yaml:"main" mapstructure:"main"`
	HTTP         HTTPSettings         `yaml:"http" mapstructure:"http"`
	Database     DatabaseSettings     `yaml:"database" mapstructure:"database"`
	Queue        QueueSettings        `yaml:"queue" mapstructure:"queue"`
	Policy       PolicySettings       `yaml:"policy" mapstructure:"policy"`
	Executor     ExecutorSettings     `yaml:"executor" mapstructure:"executor"`
	Notification NotificationSettings `yaml:"notification" mapstructure:"notification"`
	MQTT         MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`
	Contacts     ContactSettings      `yaml:"contacts" mapstructure:"contacts"`
	Sentry       SentrySettings       `yaml:"sentry" mapstructure:"sentry"`
}

var globalSettings atomic.Pointer[Settings]

// GetSettings returns the last loaded settings, or nil before Load succeeds.
func GetSettings() *Settings {
	return globalSettings.Load()
}

// setDefaults registers every tunable with its default so a missing config
// file yields a fully working agent.
func setDefaults(v *viper.Viper) {
	v.SetDefault("main.name", "petpulse-agent")
	v.SetDefault("main.log_level", "info")

	v.SetDefault("http.listen", ":3002")

	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.path", "petpulse.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("queue.partitions", 4)
	v.SetDefault("queue.buffer", 256)
	v.SetDefault("queue.enqueue_timeout", "2s")

	v.SetDefault("policy.moderate_at", 3)
	v.SetDefault("policy.notify_at", 4)
	v.SetDefault("policy.critical_at", 5)
	v.SetDefault("policy.gate_severity", "medium")
	v.SetDefault("policy.monitoring_window", "45s")

	v.SetDefault("executor.retry_limit", 3)
	v.SetDefault("executor.retry_delay", "200ms")
	v.SetDefault("executor.publish_timeout", "5s")

	v.SetDefault("notification.push_url", "")
	v.SetDefault("notification.services", []string{})
	v.SetDefault("notification.send_timeout", "10s")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "petpulse-agent")
	v.SetDefault("mqtt.topic_prefix", "petpulse/playback")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("contacts.cache_ttl", "5m")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}

// Load reads configuration from configFile (or the default search path when
// empty), applies environment overrides, validates, and installs the result
// as the global settings.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	explicit := configFile != ""
	if explicit {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("petpulse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/petpulse")
		v.AddConfigPath("/etc/petpulse")
	}

	v.SetEnvPrefix("PETPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, errors.Newf("reading config: %w", err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("config_file", configFile).
				Build()
		}
		// No config file anywhere on the search path: defaults apply.
	}

	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, errors.Newf("decoding config: %w", err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	globalSettings.Store(&s)
	return &s, nil
}

// Validate checks structural constraints. Severity names are validated by
// the escalation policy, which owns the severity ordering.
func (s *Settings) Validate() error {
	fail := func(msg, key string, val any) error {
		return errors.Newf("invalid config: %s", msg).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context(key, val).
			Build()
	}

	if s.HTTP.Listen == "" {
		return fail("http listen address is required", "http.listen", "")
	}

	switch s.Database.Type {
	case DatabaseSQLite, DatabaseMySQL:
	default:
		return fail("unknown database type", "database.type", s.Database.Type)
	}
	if s.Database.Type == DatabaseMySQL && s.Database.DSN == "" {
		return fail("mysql requires a dsn", "database.dsn", "")
	}

	if s.Queue.Partitions < 1 {
		return fail("queue partitions must be at least 1", "queue.partitions", s.Queue.Partitions)
	}
	if s.Queue.Buffer < 1 {
		return fail("queue buffer must be at least 1", "queue.buffer", s.Queue.Buffer)
	}

	p := s.Policy
	if p.ModerateAt < 2 || p.NotifyAt <= p.ModerateAt || p.CriticalAt <= p.NotifyAt {
		return fail("tier thresholds must satisfy 2 <= moderate_at < notify_at < critical_at",
			"policy", map[string]int{
				"moderate_at": p.ModerateAt,
				"notify_at":   p.NotifyAt,
				"critical_at": p.CriticalAt,
			})
	}
	if p.MonitoringWindow.Std() <= 0 {
		return fail("monitoring window must be positive", "policy.monitoring_window", p.MonitoringWindow.Std().String())
	}

	if s.Executor.RetryLimit < 0 {
		return fail("retry limit must not be negative", "executor.retry_limit", s.Executor.RetryLimit)
	}
	if s.Executor.PublishTimeout.Std() <= 0 {
		return fail("publish timeout must be positive", "executor.publish_timeout", s.Executor.PublishTimeout.Std().String())
	}

	if s.MQTT.Enabled {
		if s.MQTT.Broker == "" {
			return fail("mqtt enabled without broker", "mqtt.broker", "")
		}
		if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
			return fail("mqtt qos must be 0, 1 or 2", "mqtt.qos", s.MQTT.QoS)
		}
	}

	if s.Contacts.CacheTTL.Std() < 0 {
		return fail("contact cache ttl must not be negative", "contacts.cache_ttl", s.Contacts.CacheTTL.Std().String())
	}

	return nil
}

// MonitoringWindow returns the resolution window as a time.Duration.
func (s *Settings) MonitoringWindow() time.Duration {
	return s.Policy.MonitoringWindow.Std()
}
