package escalation

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/errors"
	"github.com/petpulse/petpulse-go/internal/logger"
)

type executorFixture struct {
	repo     *mockRepo
	pub      *mockPublisher
	notifier *mockNotifier
	contacts *mockContactProvider
	exec     *Executor
	pet      *entities.Pet
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	f := &executorFixture{
		repo:     newMockRepo("pet-1"),
		pub:      &mockPublisher{},
		notifier: newMockNotifier(),
		contacts: &mockContactProvider{},
	}
	f.exec = NewExecutor(f.repo, f.contacts, f.pub, f.notifier, nil, testLogger(), testExecutorSettings())
	f.pet = &entities.Pet{ID: "pet-1", Name: "Rex"}
	return f
}

func (f *executorFixture) seedAlert(t *testing.T, alertID, alertType string) *entities.Alert {
	t.Helper()
	alert := &entities.Alert{
		ID:            alertID,
		PetID:         "pet-1",
		AlertType:     alertType,
		Severity:      entities.SeverityHigh,
		SeverityLevel: entities.SeverityMedium,
		Outcome:       entities.OutcomePending,
		ObservedAt:    time.Now().UTC(),
	}
	_, err := f.repo.OpenOrEscalate(context.Background(), alert)
	require.NoError(t, err)
	return alert
}

func TestExecutor_ComfortDeliversAndRecords(t *testing.T) {
	f := newExecutorFixture(t)
	alert := f.seedAlert(t, "a-1", entities.AlertTypeVocalization)

	decision := Decision{Tier: TierMild, Intervention: InterventionCalmingMusic}
	require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, decision))

	cmds := f.pub.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, InterventionCalmingMusic, cmds[0].Action)
	assert.Equal(t, "pet-1", cmds[0].PetID)
	assert.Equal(t, "a-1", cmds[0].AlertID)

	stored := f.repo.alert(t, "a-1")
	require.NotNil(t, stored.InterventionAction)
	assert.Equal(t, InterventionCalmingMusic, *stored.InterventionAction)
	assert.Equal(t, TierMild, stored.Tier)
	assert.Equal(t, entities.DeliveryDelivered, stored.DeliveryStatus)
	require.NotNil(t, stored.InterventionAt)
	assert.Equal(t, 0, f.notifier.calls())
}

func TestExecutor_LogOnlySkipsTheHub(t *testing.T) {
	f := newExecutorFixture(t)
	alert := f.seedAlert(t, "a-1", entities.AlertTypeDoorProximity)

	decision := Decision{Tier: TierMild, Intervention: InterventionLogOnly}
	require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, decision))

	assert.Empty(t, f.pub.commands())
	stored := f.repo.alert(t, "a-1")
	require.NotNil(t, stored.InterventionAction)
	assert.Equal(t, InterventionLogOnly, *stored.InterventionAction)
	assert.Equal(t, entities.DeliveryDelivered, stored.DeliveryStatus)
}

func TestExecutor_PublishRetry(t *testing.T) {
	t.Run("recovers within budget", func(t *testing.T) {
		f := newExecutorFixture(t)
		alert := f.seedAlert(t, "a-1", entities.AlertTypeVocalization)
		f.pub.failures = 1

		decision := Decision{Tier: TierMild, Intervention: InterventionCalmingMusic}
		require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, decision))

		assert.Len(t, f.pub.commands(), 1)
		assert.Equal(t, entities.DeliveryDelivered, f.repo.alert(t, "a-1").DeliveryStatus)
	})

	t.Run("exhaustion degrades but still records", func(t *testing.T) {
		f := newExecutorFixture(t)
		alert := f.seedAlert(t, "a-1", entities.AlertTypeVocalization)
		// Retry limit 2 means three attempts total.
		f.pub.failures = 3

		decision := Decision{Tier: TierMild, Intervention: InterventionCalmingMusic}
		require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, decision))

		assert.Empty(t, f.pub.commands())
		stored := f.repo.alert(t, "a-1")
		require.NotNil(t, stored.InterventionAction)
		assert.Equal(t, entities.DeliveryDegraded, stored.DeliveryStatus)
	})
}

func TestExecutor_ExecutionMarkerIsImmutable(t *testing.T) {
	f := newExecutorFixture(t)
	alert := f.seedAlert(t, "a-1", entities.AlertTypeVocalization)

	first := Decision{Tier: TierMild, Intervention: InterventionCalmingMusic}
	require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, first))

	second := Decision{Tier: TierModerate, Intervention: InterventionDispenseTreat}
	require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, second))

	stored := f.repo.alert(t, "a-1")
	assert.Equal(t, InterventionCalmingMusic, *stored.InterventionAction)
	assert.Equal(t, TierMild, stored.Tier)
}

func TestExecutor_NotifyTierPlaysBackupAndNotifies(t *testing.T) {
	f := newExecutorFixture(t)
	alert := f.seedAlert(t, "a-1", entities.AlertTypePacing)

	decision := Decision{Tier: TierNotify, Intervention: InterventionNotifyUser, NotifyUser: true}
	require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, decision))

	cmds := f.pub.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, InterventionOwnerVoice, cmds[0].Action)

	assert.Equal(t, []string{TierNotify}, f.notifier.tiers)
	stored := f.repo.alert(t, "a-1")
	require.NotNil(t, stored.InterventionAction)
	assert.Equal(t, InterventionNotifyUser, *stored.InterventionAction)
	assert.True(t, stored.NotificationSent)
	assert.Equal(t, []string{"push"}, entities.DecodeStringList(stored.NotificationChannels))
	assert.Equal(t, entities.OutcomePending, stored.Outcome, "notify tier does not escalate the row")
}

func TestExecutor_NotifyWithoutAcceptedChannelStaysRetryable(t *testing.T) {
	f := newExecutorFixture(t)
	alert := f.seedAlert(t, "a-1", entities.AlertTypePacing)
	f.notifier.channels = nil
	f.notifier.err = errors.NewStd("smtp down")

	decision := Decision{Tier: TierNotify, Intervention: InterventionNotifyUser, NotifyUser: true}
	err := f.exec.Execute(t.Context(), f.pet, alert, decision)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeliveryFailure))

	stored := f.repo.alert(t, "a-1")
	assert.Nil(t, stored.InterventionAction, "row must stay executable for the redelivery")
	assert.False(t, stored.NotificationSent)
}

func TestExecutor_NotificationSuppressedWhenAlreadySent(t *testing.T) {
	f := newExecutorFixture(t)
	alert := f.seedAlert(t, "a-1", entities.AlertTypePacing)
	alert.NotificationSent = true

	decision := Decision{Tier: TierNotify, Intervention: InterventionNotifyUser, NotifyUser: true}
	require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, decision))

	assert.Equal(t, 0, f.notifier.calls(), "sent flag suppresses the duplicate")
	require.NotNil(t, f.repo.alert(t, "a-1").InterventionAction)
}

func TestExecutor_CriticalQuickAction(t *testing.T) {
	t.Run("targets the highest priority contact", func(t *testing.T) {
		f := newExecutorFixture(t)
		alert := f.seedAlert(t, "a-1", entities.AlertTypeUnusualBehavior)
		f.contacts.contacts = []entities.EmergencyContact{
			{ID: "c-1", Name: "Alice", Priority: 1, IsActive: true},
			{ID: "c-2", Name: "Bob", Priority: 5, IsActive: true},
		}

		decision := Decision{Tier: TierCritical, Intervention: InterventionNotifyUser, NotifyUser: true, QuickAction: true}
		require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, decision))

		require.Len(t, f.repo.actions, 1)
		qa := f.repo.actions[0]
		assert.Equal(t, "c-1", qa.EmergencyContactID)
		assert.Equal(t, "a-1", qa.AlertID)
		assert.Equal(t, entities.QuickActionPending, qa.Status)
		assert.Equal(t, entities.QuickActionTypeNotifyContact, qa.ActionType)
		assert.Contains(t, qa.Message, `"sms_text":"PetPulse Alert: Rex needs attention."`)
		assert.Contains(t, qa.Message, `"email_body":"Please check on Rex."`)

		stored := f.repo.alert(t, "a-1")
		assert.Equal(t, entities.OutcomeEscalated, stored.Outcome)
		assert.True(t, stored.NotificationSent)
		assert.Equal(t, []string{TierCritical}, f.notifier.tiers)
	})

	t.Run("skips contacts with a pending outreach", func(t *testing.T) {
		f := newExecutorFixture(t)
		alert := f.seedAlert(t, "a-1", entities.AlertTypeUnusualBehavior)
		f.contacts.contacts = []entities.EmergencyContact{
			{ID: "c-1", Name: "Alice", Priority: 1, IsActive: true},
			{ID: "c-2", Name: "Bob", Priority: 5, IsActive: true},
		}
		f.repo.actions = append(f.repo.actions, &entities.QuickAction{
			ID:                 "qa-0",
			AlertID:            "a-0",
			EmergencyContactID: "c-1",
			Status:             entities.QuickActionPending,
		})

		decision := Decision{Tier: TierCritical, Intervention: InterventionNotifyUser, NotifyUser: true, QuickAction: true}
		require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, decision))

		require.Len(t, f.repo.actions, 2)
		assert.Equal(t, "c-2", f.repo.actions[1].EmergencyContactID)
	})

	t.Run("escalates without contacts", func(t *testing.T) {
		f := newExecutorFixture(t)
		alert := f.seedAlert(t, "a-1", entities.AlertTypeUnusualBehavior)

		decision := Decision{Tier: TierCritical, Intervention: InterventionNotifyUser, NotifyUser: true, QuickAction: true}
		require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, decision))

		assert.Empty(t, f.repo.actions)
		stored := f.repo.alert(t, "a-1")
		assert.Equal(t, entities.OutcomeEscalated, stored.Outcome)
		assert.True(t, stored.NotificationSent)
	})

	t.Run("escalates when the contact lookup fails", func(t *testing.T) {
		f := newExecutorFixture(t)
		alert := f.seedAlert(t, "a-1", entities.AlertTypeUnusualBehavior)
		f.contacts.err = errors.NewStd("contacts table locked")

		decision := Decision{Tier: TierCritical, Intervention: InterventionNotifyUser, NotifyUser: true, QuickAction: true}
		require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, decision))

		assert.Empty(t, f.repo.actions)
		assert.Equal(t, entities.OutcomeEscalated, f.repo.alert(t, "a-1").Outcome)
	})
}

// The exact marker strings are grepped by external tooling, so they are
// asserted here against a captured log.
func TestExecutor_LogsContractMarkers(t *testing.T) {
	run := func(t *testing.T, alertType string, decision Decision) string {
		t.Helper()
		var buf bytes.Buffer
		f := newExecutorFixture(t)
		f.exec.log = logger.NewSlogLogger(&buf, logger.LogLevelDebug, nil)
		alert := f.seedAlert(t, "a-1", alertType)
		require.NoError(t, f.exec.Execute(t.Context(), f.pet, alert, decision))
		return buf.String()
	}

	t.Run("calming music", func(t *testing.T) {
		out := run(t, entities.AlertTypeVocalization,
			Decision{Tier: TierMild, Intervention: InterventionCalmingMusic})
		assert.Contains(t, out, "Action: Playing calming music playlist")
	})

	t.Run("owner voice", func(t *testing.T) {
		out := run(t, entities.AlertTypePacing,
			Decision{Tier: TierModerate, Intervention: InterventionOwnerVoice})
		assert.Contains(t, out, "Action: Playing owner voice note")
	})

	t.Run("treat", func(t *testing.T) {
		out := run(t, entities.AlertTypeVocalization,
			Decision{Tier: TierModerate, Intervention: InterventionDispenseTreat})
		assert.Contains(t, out, "Action: Dispensing treat")
	})

	t.Run("environment", func(t *testing.T) {
		out := run(t, entities.AlertTypePacing,
			Decision{Tier: TierMild, Intervention: InterventionAdjustEnvironment})
		assert.Contains(t, out, "Action: Adjusting environment: dim_lights")
	})

	t.Run("log only", func(t *testing.T) {
		out := run(t, entities.AlertTypeComfort,
			Decision{Tier: TierMild, Intervention: InterventionLogOnly})
		assert.Contains(t, out, "Action: Logging alert only")
	})

	t.Run("notify", func(t *testing.T) {
		out := run(t, entities.AlertTypePacing,
			Decision{Tier: TierNotify, Intervention: InterventionNotifyUser, NotifyUser: true})
		assert.Contains(t, out, "Action: Playing owner voice note")
		assert.Contains(t, out, "Action: Notifying user")
	})

	t.Run("critical", func(t *testing.T) {
		out := run(t, entities.AlertTypeUnusualBehavior,
			Decision{Tier: TierCritical, Intervention: InterventionNotifyUser, NotifyUser: true, QuickAction: true})
		assert.Contains(t, out, "HANDLING CRITICAL ALERT")
		assert.Contains(t, out, "Action: Notifying user")
		assert.Contains(t, out, "No emergency contacts found for quick actions.")
	})
}
