// Package telemetry forwards enhanced errors to Sentry when enabled.
// It is entirely opt-in: with sentry disabled (the default) Init is a no-op
// and no error ever leaves the process.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/petpulse/petpulse-go/internal/conf"
	"github.com/petpulse/petpulse-go/internal/errors"
	"github.com/petpulse/petpulse-go/internal/logger"
)

// Init configures the Sentry client and installs the error reporter hook.
// Returns whether reporting is active.
func Init(settings *conf.SentrySettings, log logger.Logger) (bool, error) {
	if settings == nil || !settings.Enabled || settings.DSN == "" {
		return false, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		Environment:      settings.Environment,
		AttachStacktrace: true,
	})
	if err != nil {
		return false, errors.Newf("initializing sentry: %w", err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	errors.SetReporter(func(e *errors.EnhancedError) {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("component", e.Component)
			scope.SetTag("category", string(e.Category))
			for k, v := range e.Context {
				scope.SetExtra(k, v)
			}
			sentry.CaptureException(e)
		})
	})

	log.Info("sentry telemetry enabled", logger.String("environment", settings.Environment))
	return true, nil
}

// Flush drains buffered events, typically during shutdown.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
