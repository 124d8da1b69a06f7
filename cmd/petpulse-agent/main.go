package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/petpulse/petpulse-go/internal/api"
	"github.com/petpulse/petpulse-go/internal/conf"
	"github.com/petpulse/petpulse-go/internal/datastore"
	"github.com/petpulse/petpulse-go/internal/datastore/repository"
	"github.com/petpulse/petpulse-go/internal/escalation"
	"github.com/petpulse/petpulse-go/internal/logger"
	"github.com/petpulse/petpulse-go/internal/mqtt"
	"github.com/petpulse/petpulse-go/internal/notification"
	"github.com/petpulse/petpulse-go/internal/observability"
	"github.com/petpulse/petpulse-go/internal/privacy"
	"github.com/petpulse/petpulse-go/internal/telemetry"
)

const (
	hubConnectTimeout = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
	telemetryFlush    = 3 * time.Second
)

func main() {
	root := &cobra.Command{
		Use:   "petpulse-agent",
		Short: "Escalation agent for pet monitoring",
		Long: `petpulse-agent ingests observations from the analysis worker, keeps the
per-pet alert history, and walks sustained unusual behavior up the
intervention ladder: calming playback, environment adjustments, user
notifications, and emergency contact outreach.`,
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runAgent(configFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "",
		"config file (default: petpulse.yaml on the search path)")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(buildVersion())
		},
	}
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "petpulse-agent (no build info)"
	}
	version := info.Main.Version
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return fmt.Sprintf("petpulse-agent %s (%s)", version, s.Value[:7])
		}
	}
	return "petpulse-agent " + version
}

func runAgent(configFile string) error {
	settings, err := conf.Load(configFile)
	if err != nil {
		return err
	}

	log := logger.NewSlogLogger(os.Stdout, logger.ParseLevel(settings.Main.LogLevel), nil)
	logger.SetDefault(log)

	if enabled, err := telemetry.Init(&settings.Sentry, log); err != nil {
		log.Warn("telemetry init failed, continuing without error reporting", logger.Error(err))
	} else if enabled {
		defer telemetry.Flush(telemetryFlush)
	}

	db, err := datastore.Open(&settings.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	}()

	if err := datastore.Migrate(db); err != nil {
		return err
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	alertRepo := repository.NewAlertRepository(db)
	contactRepo := repository.NewContactRepository(db)

	notifier, err := notification.Initialize(settings.Notification, m.Notification, log)
	if err != nil {
		return err
	}

	// The hub is optional. Without MQTT the pipeline still runs; playback
	// commands are logged by the escalation layer instead of published.
	var hub escalation.PlaybackPublisher
	var hubClient mqtt.Client
	if settings.MQTT.Enabled {
		hubClient, err = mqtt.NewClient(settings.MQTT, m.MQTT, log)
		if err != nil {
			return err
		}
		connectCtx, cancel := context.WithTimeout(context.Background(), hubConnectTimeout)
		err = hubClient.Connect(connectCtx)
		cancel()
		if err != nil {
			// The paho client reconnects on its own once the broker is
			// reachable, so a dead hub at boot must not stop alerting.
			log.Warn("hub broker unreachable, playback publishes will fail until it returns",
				logger.String("broker", settings.MQTT.Broker),
				logger.Error(err))
		}
		hub = mqtt.NewHubPublisher(hubClient, settings.MQTT.TopicPrefix)
	}

	pipeline := escalation.Initialize(settings, alertRepo, contactRepo, hub, notifier, m.Monitor, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(log))
	api.New(e, alertRepo, contactRepo, pipeline.Contacts, pipeline.Dispatcher, m, log)

	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(settings.HTTP.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info("petpulse agent started",
		logger.String("name", settings.Main.Name),
		logger.String("listen", settings.HTTP.Listen),
		logger.String("database", settings.Database.Type),
		logger.Bool("mqtt", settings.MQTT.Enabled),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		log.Info("shutting down", logger.String("signal", sig.String()))
	case runErr = <-serverErr:
		log.Error("http server failed", logger.Error(runErr))
	}

	// Stop intake first so nothing new is queued, then drain the dispatcher
	// while the store and hub are still up.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Error(err))
	}

	pipeline.Dispatcher.Stop()

	if hubClient != nil {
		hubClient.Disconnect()
	}

	return runErr
}

// requestLogger emits one line per request. Client IPs are anonymized and
// user agents reduced to the product token before they reach the logs.
func requestLogger(log logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("remote_ip", privacy.AnonymizeIP(v.RemoteIP)),
				logger.String("user_agent", privacy.RedactUserAgent(v.UserAgent)),
			}
			switch {
			case v.Status >= http.StatusInternalServerError:
				log.Error("http request", fields...)
			case v.Status >= http.StatusBadRequest:
				log.Warn("http request", fields...)
			default:
				log.Debug("http request", fields...)
			}
			return nil
		},
	})
}
