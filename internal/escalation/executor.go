package escalation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/petpulse/petpulse-go/internal/conf"
	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/datastore/repository"
	"github.com/petpulse/petpulse-go/internal/errors"
	"github.com/petpulse/petpulse-go/internal/logger"
	"github.com/petpulse/petpulse-go/internal/observability/metrics"
)

// Notifier delivers user-facing notifications about an alert and returns the
// channels that accepted the message. Delivery is at-least-once; the executor
// suppresses duplicates with the alert's notification_sent flag.
type Notifier interface {
	NotifyAlert(ctx context.Context, pet *entities.Pet, alert *entities.Alert, tier string) ([]string, error)
}

// Executor carries a Decision out: it publishes the playback command to the
// hub, notifies the user on the Notify and Critical tiers, generates the
// emergency quick action on Critical, and persists the execution marker.
// Persistence goes through conditional updates, so a redelivered alert can
// re-enter Execute without the row recording a second execution.
type Executor struct {
	repo     repository.AlertRepository
	contacts ContactProvider
	hub      PlaybackPublisher
	notifier Notifier
	metrics  *metrics.Monitor
	log      logger.Logger

	retryLimit     int
	retryDelay     time.Duration
	publishTimeout time.Duration
}

// NewExecutor builds an executor. metrics may be nil, everything else must
// not be.
func NewExecutor(
	repo repository.AlertRepository,
	contacts ContactProvider,
	hub PlaybackPublisher,
	notifier Notifier,
	m *metrics.Monitor,
	log logger.Logger,
	settings conf.ExecutorSettings,
) *Executor {
	return &Executor{
		repo:           repo,
		contacts:       contacts,
		hub:            hub,
		notifier:       notifier,
		metrics:        m,
		log:            log,
		retryLimit:     settings.RetryLimit,
		retryDelay:     settings.RetryDelay.Std(),
		publishTimeout: settings.PublishTimeout.Std(),
	}
}

// Execute runs the decided intervention for an alert row. pet is the owner
// aggregate loaded by the engine; alert is the persisted row the execution
// marker attaches to.
func (e *Executor) Execute(ctx context.Context, pet *entities.Pet, alert *entities.Alert, decision Decision) error {
	switch decision.Tier {
	case TierCritical:
		return e.executeCritical(ctx, pet, alert, decision)
	case TierNotify:
		return e.executeNotify(ctx, pet, alert, decision)
	default:
		return e.executeComfort(ctx, alert, decision)
	}
}

// executeComfort handles the Mild and Moderate tiers: one playback command to
// the hub (or nothing for log_only), then the execution marker. A failed
// publish degrades the delivery status but still records the execution, since
// replaying a comfort action hours later would not help the pet.
func (e *Executor) executeComfort(ctx context.Context, alert *entities.Alert, decision Decision) error {
	delivery := entities.DeliveryDelivered
	e.logMarker(decision.Intervention, alert)
	if cmd, ok := playbackFor(alert, decision.Intervention); ok {
		if err := e.publishWithRetry(ctx, cmd); err != nil {
			delivery = entities.DeliveryDegraded
		}
	}

	first, err := e.repo.MarkExecuted(ctx, alert.ID, repository.ExecutionRecord{
		Action:         decision.Intervention,
		Tier:           decision.Tier,
		DeliveryStatus: delivery,
	})
	if err != nil {
		return executionError(alert.ID, err)
	}
	e.recordExecution(decision.Tier, first)
	return nil
}

// executeNotify handles the Notify tier: the owner's voice goes out as the
// final autonomous action, then the user is notified. The recorded action is
// notify_user.
func (e *Executor) executeNotify(ctx context.Context, pet *entities.Pet, alert *entities.Alert, decision Decision) error {
	delivery := entities.DeliveryDelivered
	e.logMarker(InterventionOwnerVoice, alert)
	if cmd, ok := playbackFor(alert, InterventionOwnerVoice); ok {
		if err := e.publishWithRetry(ctx, cmd); err != nil {
			delivery = entities.DeliveryDegraded
		}
	}

	e.logMarker(InterventionNotifyUser, alert)
	if !e.notifyUser(ctx, pet, alert, decision.Tier) {
		// Leave the row unexecuted so a redelivery retries the notification.
		return notificationError(alert.ID)
	}

	first, err := e.repo.MarkExecuted(ctx, alert.ID, repository.ExecutionRecord{
		Action:         decision.Intervention,
		Tier:           decision.Tier,
		DeliveryStatus: delivery,
	})
	if err != nil {
		return executionError(alert.ID, err)
	}
	e.recordExecution(decision.Tier, first)
	return nil
}

// executeCritical notifies the user and generates the emergency quick action
// for the highest-priority contact, then escalates the row. The quick action
// insert and the outcome transition share a transaction in the repository.
func (e *Executor) executeCritical(ctx context.Context, pet *entities.Pet, alert *entities.Alert, decision Decision) error {
	e.log.Info("HANDLING CRITICAL ALERT",
		logger.String("alert_id", alert.ID),
		logger.String("pet_id", alert.PetID),
	)

	e.logMarker(InterventionNotifyUser, alert)
	if !e.notifyUser(ctx, pet, alert, decision.Tier) {
		return notificationError(alert.ID)
	}

	var qa *entities.QuickAction
	if decision.QuickAction {
		qa = e.buildQuickAction(ctx, pet, alert)
	}

	first, err := e.repo.MarkEscalated(ctx, alert.ID, repository.ExecutionRecord{
		Action:         decision.Intervention,
		Tier:           decision.Tier,
		DeliveryStatus: entities.DeliveryDelivered,
	}, qa)
	if err != nil {
		return executionError(alert.ID, err)
	}
	e.recordExecution(decision.Tier, first)
	if first && qa != nil {
		e.log.Info("generated quick action",
			logger.String("alert_id", alert.ID),
			logger.String("contact_id", qa.EmergencyContactID),
			logger.String("severity", alert.SeverityLevel),
		)
	}
	return nil
}

// notifyUser sends the alert notification unless the row already carries the
// sent flag. Returns false when no channel accepted the message; the flag
// stays clear in that case so a later delivery retries.
func (e *Executor) notifyUser(ctx context.Context, pet *entities.Pet, alert *entities.Alert, tier string) bool {
	if alert.NotificationSent {
		return true
	}
	channels, err := e.notifier.NotifyAlert(ctx, pet, alert, tier)
	if err != nil {
		e.log.Error("user notification failed",
			logger.String("alert_id", alert.ID),
			logger.Error(err),
		)
	}
	if len(channels) == 0 {
		return false
	}
	if _, err := e.repo.MarkNotified(ctx, alert.ID, channels); err != nil {
		e.log.Error("recording notification state failed",
			logger.String("alert_id", alert.ID),
			logger.Error(err),
		)
	}
	return true
}

// buildQuickAction picks the highest-priority active contact without a
// pending outreach and prepares the quick action row for it. Returns nil when
// no contact qualifies; critical escalation proceeds without outreach then.
func (e *Executor) buildQuickAction(ctx context.Context, pet *entities.Pet, alert *entities.Alert) *entities.QuickAction {
	contacts, err := e.contacts.ActiveContacts(ctx)
	if err != nil {
		e.log.Error("loading emergency contacts failed",
			logger.String("alert_id", alert.ID),
			logger.Error(err),
		)
		return nil
	}
	if len(contacts) == 0 {
		e.log.Info("No emergency contacts found for quick actions.")
		return nil
	}

	for i := range contacts {
		contact := &contacts[i]
		pending, err := e.repo.HasPendingQuickActionForContact(ctx, contact.ID)
		if err != nil {
			e.log.Error("checking pending outreach failed",
				logger.String("contact_id", contact.ID),
				logger.Error(err),
			)
			continue
		}
		if pending {
			e.log.Info("skipping contact, outreach already pending",
				logger.String("contact_id", contact.ID),
			)
			continue
		}
		return &entities.QuickAction{
			ID:                 uuid.New().String(),
			AlertID:            alert.ID,
			EmergencyContactID: contact.ID,
			ActionType:         entities.QuickActionTypeNotifyContact,
			Message:            encodeOutreachMessage(displayName(pet)),
			Status:             entities.QuickActionPending,
		}
	}
	e.log.Info("every contact already has a pending outreach, skipping quick action",
		logger.String("alert_id", alert.ID),
	)
	return nil
}

// publishWithRetry delivers one playback command with bounded retries. It
// returns the last error once the retry budget is spent.
func (e *Executor) publishWithRetry(ctx context.Context, cmd PlaybackCommand) error {
	var lastErr error
	for attempt := 0; attempt <= e.retryLimit; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.retryDelay):
			}
		}
		pubCtx, cancel := context.WithTimeout(ctx, e.publishTimeout)
		err := e.hub.Publish(pubCtx, cmd)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		e.log.Warn("playback publish failed",
			logger.String("alert_id", cmd.AlertID),
			logger.String("action", cmd.Action),
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
	}
	if e.metrics != nil {
		e.metrics.IncPlaybackFailures()
	}
	return errors.Newf("%w: publishing %s: %w", ErrDeliveryFailure, cmd.Action, lastErr).
		Component("escalation").
		Category(errors.CategoryDelivery).
		Context("alert_id", cmd.AlertID).
		Build()
}

func (e *Executor) recordExecution(tier string, first bool) {
	if first && e.metrics != nil {
		e.metrics.IncInterventions(tier)
	}
}

// logMarker emits the intervention line. External tooling greps these exact
// strings, so the text must not change.
func (e *Executor) logMarker(intervention string, alert *entities.Alert) {
	fields := []logger.Field{
		logger.String("alert_id", alert.ID),
		logger.String("pet_id", alert.PetID),
	}
	switch intervention {
	case InterventionCalmingMusic:
		e.log.Info("Action: Playing calming music playlist", fields...)
	case InterventionOwnerVoice:
		e.log.Info("Action: Playing owner voice note", fields...)
	case InterventionDispenseTreat:
		e.log.Info("Action: Dispensing treat", fields...)
	case InterventionAdjustEnvironment:
		e.log.Info("Action: Adjusting environment: "+EnvironmentDimLights, fields...)
	case InterventionNotifyUser:
		e.log.Info("Action: Notifying user", fields...)
	case InterventionLogOnly:
		e.log.Info("Action: Logging alert only", fields...)
	}
}

// playbackFor maps an intervention to its hub command. Interventions with no
// physical action report ok=false.
func playbackFor(alert *entities.Alert, intervention string) (PlaybackCommand, bool) {
	cmd := PlaybackCommand{
		PetID:    alert.PetID,
		AlertID:  alert.ID,
		Action:   intervention,
		IssuedAt: time.Now().UTC(),
	}
	switch intervention {
	case InterventionCalmingMusic, InterventionOwnerVoice, InterventionDispenseTreat:
		return cmd, true
	case InterventionAdjustEnvironment:
		cmd.Detail = EnvironmentDimLights
		return cmd, true
	default:
		return PlaybackCommand{}, false
	}
}

// outreachMessage is the quick action payload stored for the contact UI. Both
// formats live in one JSON document so the frontend can render either.
type outreachMessage struct {
	SMSText   string `json:"sms_text"`
	EmailBody string `json:"email_body"`
}

func encodeOutreachMessage(petName string) string {
	b, _ := json.Marshal(outreachMessage{
		SMSText:   "PetPulse Alert: " + petName + " needs attention.",
		EmailBody: "Please check on " + petName + ".",
	})
	return string(b)
}

func displayName(pet *entities.Pet) string {
	if pet == nil || pet.Name == "" {
		return "Your Pet"
	}
	return pet.Name
}

func executionError(alertID string, err error) error {
	return errors.Newf("recording execution for alert %s: %w", alertID, err).
		Component("escalation").
		Category(errors.CategoryDatabase).
		Build()
}

func notificationError(alertID string) error {
	return errors.Newf("%w: no notification channel accepted alert %s", ErrDeliveryFailure, alertID).
		Component("escalation").
		Category(errors.CategoryDelivery).
		Build()
}
