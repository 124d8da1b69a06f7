// Package notification delivers user-facing alerts for the escalation
// engine. Delivery fans out to an ntfy-compatible push endpoint and any
// number of shoutrrr service URLs (smtp, telegram, ...). With nothing
// configured the service runs in mock mode: sends are logged and reported
// on the "log" channel so the notified flag still advances in development
// setups.
package notification

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/petpulse/petpulse-go/internal/conf"
	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/errors"
	"github.com/petpulse/petpulse-go/internal/logger"
	"github.com/petpulse/petpulse-go/internal/observability/metrics"
)

// Channel labels reported to callers and metrics.
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
	// ChannelLog is the mock-mode channel: nothing left the process, but
	// the send is acknowledged so callers can persist the notified state.
	ChannelLog = "log"
)

const defaultSendTimeout = 10 * time.Second

// Service sends alert notifications. The zero value is not usable; build it
// with NewService.
type Service struct {
	pushURL  string
	client   *http.Client
	router   *router.ServiceRouter
	channels []string
	metrics  *metrics.Notification
	log      logger.Logger
}

// NewService builds the notification service from settings. metrics may be
// nil. An error means a shoutrrr service URL did not parse; a service with
// no channels at all is valid and runs in mock mode.
func NewService(settings conf.NotificationSettings, m *metrics.Notification, log logger.Logger) (*Service, error) {
	timeout := settings.SendTimeout.Std()
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	s := &Service{
		pushURL: settings.PushURL,
		client:  &http.Client{Timeout: timeout},
		metrics: m,
		log:     log,
	}

	if len(settings.Services) > 0 {
		sender, err := shoutrrr.CreateSender(settings.Services...)
		if err != nil {
			return nil, errors.New(err).
				Component("notification").
				Category(errors.CategoryConfiguration).
				Build()
		}
		s.router = sender
		s.channels = make([]string, len(settings.Services))
		for i, serviceURL := range settings.Services {
			s.channels[i] = channelFor(serviceURL)
		}
	}

	if s.Mock() {
		log.Warn("no notification channels configured, running in mock mode")
	}
	return s, nil
}

// Mock reports whether the service has no real delivery channel.
func (s *Service) Mock() bool {
	return s.pushURL == "" && s.router == nil
}

// NotifyAlert sends the alert to every configured channel and returns the
// channels that accepted it. Partial failure is logged and counted; an error
// comes back only when no channel accepted the message.
func (s *Service) NotifyAlert(ctx context.Context, pet *entities.Pet, alert *entities.Alert, tier string) ([]string, error) {
	msg := renderAlert(pet, alert, tier)

	if s.Mock() {
		s.log.Info("mock notification",
			logger.String("pet_id", alert.PetID),
			logger.String("tier", tier),
			logger.String("title", msg.Title),
		)
		s.incSent(ChannelLog)
		return []string{ChannelLog}, nil
	}

	var accepted []string
	var failures []error

	if s.pushURL != "" {
		if err := s.push(ctx, msg, tier); err != nil {
			s.incFailed(ChannelPush)
			s.log.Error("push notification failed",
				logger.String("alert_id", alert.ID),
				logger.Error(err),
			)
			failures = append(failures, err)
		} else {
			s.incSent(ChannelPush)
			accepted = append(accepted, ChannelPush)
		}
	}

	if s.router != nil {
		params := types.Params{"title": msg.Title}
		for i, err := range s.router.Send(msg.Body, &params) {
			channel := s.channels[i]
			if err != nil {
				s.incFailed(channel)
				s.log.Error("service notification failed",
					logger.String("alert_id", alert.ID),
					logger.String("channel", channel),
					logger.Error(err),
				)
				failures = append(failures, err)
				continue
			}
			s.incSent(channel)
			accepted = append(accepted, channel)
		}
	}

	if len(accepted) == 0 {
		return nil, errors.New(errors.Join(failures...)).
			Component("notification").
			Category(errors.CategoryDelivery).
			Context("alert_id", alert.ID).
			Build()
	}
	return dedupe(accepted), nil
}

// push posts the message to the ntfy-compatible endpoint. ntfy reads title
// and priority from headers; the body is the message text.
func (s *Service) push(ctx context.Context, msg Message, tier string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.pushURL, strings.NewReader(msg.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Title", msg.Title)
	req.Header.Set("Priority", pushPriority(tier))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Newf("push endpoint returned %s", resp.Status).
			Component("notification").
			Category(errors.CategoryNetwork).
			Build()
	}
	return nil
}

func pushPriority(tier string) string {
	if tier == tierCritical {
		return "urgent"
	}
	return "high"
}

// channelFor labels a shoutrrr URL for metrics and the stored channel list.
func channelFor(serviceURL string) string {
	scheme, _, ok := strings.Cut(serviceURL, "://")
	if !ok || scheme == "" {
		return "service"
	}
	if scheme == "smtp" {
		return ChannelEmail
	}
	return scheme
}

func dedupe(channels []string) []string {
	seen := make(map[string]struct{}, len(channels))
	out := channels[:0]
	for _, c := range channels {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func (s *Service) incSent(channel string) {
	if s.metrics != nil {
		s.metrics.IncSent(channel)
	}
}

func (s *Service) incFailed(channel string) {
	if s.metrics != nil {
		s.metrics.IncFailed(channel)
	}
}
