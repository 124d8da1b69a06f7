package escalation

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petpulse/petpulse-go/internal/conf"
	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/datastore/repository"
	"github.com/petpulse/petpulse-go/internal/errors"
	"github.com/petpulse/petpulse-go/internal/logger"
)

// mockRepo is an in-memory AlertRepository mirroring the store's conditional
// update semantics, so the engine and executor can be tested without a
// database.
type mockRepo struct {
	mu      sync.Mutex
	pets    map[string]*entities.Pet
	alerts  map[string]*entities.Alert
	actions []*entities.QuickAction

	failGetPet error
	failOpen   error
}

func newMockRepo(petIDs ...string) *mockRepo {
	m := &mockRepo{
		pets:   make(map[string]*entities.Pet),
		alerts: make(map[string]*entities.Alert),
	}
	for _, id := range petIDs {
		m.pets[id] = &entities.Pet{ID: id, Name: "Rex"}
	}
	return m
}

func clonePet(p *entities.Pet) *entities.Pet {
	c := *p
	if p.OpenAlertID != nil {
		v := *p.OpenAlertID
		c.OpenAlertID = &v
	}
	return &c
}

func cloneAlert(a *entities.Alert) *entities.Alert {
	c := *a
	if a.InterventionAction != nil {
		v := *a.InterventionAction
		c.InterventionAction = &v
	}
	return &c
}

func (m *mockRepo) GetPet(_ context.Context, petID string) (*entities.Pet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGetPet != nil {
		return nil, m.failGetPet
	}
	pet, ok := m.pets[petID]
	if !ok {
		return nil, repository.ErrPetNotFound
	}
	return clonePet(pet), nil
}

func (m *mockRepo) CreatePet(_ context.Context, pet *entities.Pet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pets[pet.ID] = clonePet(pet)
	return nil
}

func (m *mockRepo) ListPets(_ context.Context) ([]entities.Pet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Pet
	for _, p := range m.pets {
		out = append(out, *clonePet(p))
	}
	return out, nil
}

func (m *mockRepo) OpenOrEscalate(_ context.Context, alert *entities.Alert) (*repository.EscalationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOpen != nil {
		return nil, m.failOpen
	}
	if _, exists := m.alerts[alert.ID]; exists {
		return nil, repository.ErrDuplicateAlert
	}
	pet, ok := m.pets[alert.PetID]
	if !ok {
		return nil, repository.ErrPetNotFound
	}

	state := &repository.EscalationState{Count: pet.ConsecutiveUnusualCount + 1}
	alert.EscalationCount = state.Count
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	m.alerts[alert.ID] = cloneAlert(alert)

	if pet.HasOpenAlert() {
		if prev, ok := m.alerts[*pet.OpenAlertID]; ok && prev.Outcome == entities.OutcomePending {
			prev.Outcome = entities.OutcomeEscalated
			state.Superseded = prev.ID
		}
	}
	pet.ConsecutiveUnusualCount = state.Count
	id := alert.ID
	pet.OpenAlertID = &id
	return state, nil
}

func (m *mockRepo) MarkExecuted(_ context.Context, alertID string, rec repository.ExecutionRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[alertID]
	if !ok || alert.InterventionAction != nil {
		return false, nil
	}
	action := rec.Action
	now := time.Now().UTC()
	alert.InterventionAction = &action
	alert.InterventionAt = &now
	alert.Tier = rec.Tier
	alert.DeliveryStatus = rec.DeliveryStatus
	return true, nil
}

func (m *mockRepo) MarkEscalated(_ context.Context, alertID string, rec repository.ExecutionRecord, qa *entities.QuickAction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[alertID]
	if !ok || alert.InterventionAction != nil {
		return false, nil
	}
	action := rec.Action
	now := time.Now().UTC()
	alert.InterventionAction = &action
	alert.InterventionAt = &now
	alert.Tier = rec.Tier
	alert.DeliveryStatus = rec.DeliveryStatus
	alert.Outcome = entities.OutcomeEscalated
	if qa != nil {
		m.actions = append(m.actions, qa)
	}
	return true, nil
}

func (m *mockRepo) MarkNotified(_ context.Context, alertID string, channels []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[alertID]
	if !ok || alert.NotificationSent {
		return false, nil
	}
	alert.NotificationSent = true
	alert.NotificationChannels = entities.EncodeStringList(channels)
	return true, nil
}

func (m *mockRepo) ResolveOpen(_ context.Context, petID, alertID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pet, ok := m.pets[petID]
	if !ok || pet.OpenAlertID == nil || *pet.OpenAlertID != alertID {
		return false, nil
	}
	pet.ConsecutiveUnusualCount = 0
	pet.OpenAlertID = nil
	if alert, ok := m.alerts[alertID]; ok && alert.Outcome == entities.OutcomePending {
		alert.Outcome = entities.OutcomeResolved
	}
	return true, nil
}

func (m *mockRepo) GetAlert(_ context.Context, alertID string) (*entities.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[alertID]
	if !ok {
		return nil, repository.ErrAlertNotFound
	}
	return cloneAlert(alert), nil
}

func (m *mockRepo) ListAlerts(_ context.Context, filter repository.AlertFilter) ([]entities.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Alert
	for _, a := range m.alerts {
		if filter.PetID != "" && a.PetID != filter.PetID {
			continue
		}
		out = append(out, *cloneAlert(a))
	}
	return out, nil
}

func (m *mockRepo) CreateQuickAction(_ context.Context, qa *entities.QuickAction, alertOutcome string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[qa.AlertID]
	if !ok {
		return repository.ErrAlertNotFound
	}
	m.actions = append(m.actions, qa)
	if alertOutcome != "" {
		alert.Outcome = alertOutcome
	}
	return nil
}

func (m *mockRepo) ListQuickActions(_ context.Context, alertID string) ([]entities.QuickAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.QuickAction
	for _, qa := range m.actions {
		if qa.AlertID == alertID {
			out = append(out, *qa)
		}
	}
	return out, nil
}

func (m *mockRepo) HasPendingQuickActionForContact(_ context.Context, contactID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, qa := range m.actions {
		if qa.EmergencyContactID == contactID && qa.Status == entities.QuickActionPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) Acknowledge(_ context.Context, alertID, response string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[alertID]
	if !ok {
		return repository.ErrAlertNotFound
	}
	now := time.Now().UTC()
	alert.UserAcknowledgedAt = &now
	alert.UserResponse = response
	return nil
}

func (m *mockRepo) ResolveByUser(_ context.Context, alertID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[alertID]
	if !ok {
		return repository.ErrAlertNotFound
	}
	alert.Outcome = entities.OutcomeResolved
	if pet, ok := m.pets[alert.PetID]; ok && pet.OpenAlertID != nil && *pet.OpenAlertID == alertID {
		pet.ConsecutiveUnusualCount = 0
		pet.OpenAlertID = nil
	}
	return nil
}

// alert returns the stored row for assertions.
func (m *mockRepo) alert(t *testing.T, alertID string) *entities.Alert {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[alertID]
	require.True(t, ok, "alert %s not stored", alertID)
	return cloneAlert(alert)
}

func (m *mockRepo) pet(t *testing.T, petID string) *entities.Pet {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	pet, ok := m.pets[petID]
	require.True(t, ok, "pet %s not stored", petID)
	return clonePet(pet)
}

func (m *mockRepo) setAlertCreatedAt(alertID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if alert, ok := m.alerts[alertID]; ok {
		alert.CreatedAt = at
	}
}

// mockPublisher records playback commands. The first `failures` publishes
// fail so retry behavior can be exercised.
type mockPublisher struct {
	mu       sync.Mutex
	cmds     []PlaybackCommand
	failures int
}

func (p *mockPublisher) Publish(_ context.Context, cmd PlaybackCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.NewStd("hub unreachable")
	}
	p.cmds = append(p.cmds, cmd)
	return nil
}

func (p *mockPublisher) commands() []PlaybackCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlaybackCommand, len(p.cmds))
	copy(out, p.cmds)
	return out
}

// mockNotifier records notification calls and answers with fixed channels.
type mockNotifier struct {
	mu       sync.Mutex
	alerts   []string
	tiers    []string
	channels []string
	err      error
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{channels: []string{"push"}}
}

func (n *mockNotifier) NotifyAlert(_ context.Context, _ *entities.Pet, alert *entities.Alert, tier string) ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert.ID)
	n.tiers = append(n.tiers, tier)
	return n.channels, n.err
}

func (n *mockNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

// mockContactProvider serves a fixed, already prioritized contact list.
type mockContactProvider struct {
	contacts []entities.EmergencyContact
	err      error
}

func (c *mockContactProvider) ActiveContacts(_ context.Context) ([]entities.EmergencyContact, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.contacts, nil
}

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

func testExecutorSettings() conf.ExecutorSettings {
	return conf.ExecutorSettings{
		RetryLimit:     2,
		RetryDelay:     conf.Duration(time.Millisecond),
		PublishTimeout: conf.Duration(time.Second),
	}
}

type engineFixture struct {
	repo     *mockRepo
	pub      *mockPublisher
	notifier *mockNotifier
	contacts *mockContactProvider
	engine   *Engine
}

func newEngineFixture(petIDs ...string) *engineFixture {
	f := &engineFixture{
		repo:     newMockRepo(petIDs...),
		pub:      &mockPublisher{},
		notifier: newMockNotifier(),
		contacts: &mockContactProvider{},
	}
	exec := NewExecutor(f.repo, f.contacts, f.pub, f.notifier, nil, testLogger(), testExecutorSettings())
	f.engine = NewEngine(f.repo, NewPolicy(testPolicySettings()), exec, nil, testLogger(), 45*time.Second)
	return f
}

func unusualObs(petID, alertID string) Observation {
	return Observation{
		AlertID:       alertID,
		PetID:         petID,
		AlertType:     entities.AlertTypePacing,
		SeverityLevel: entities.SeverityMedium,
		IsUnusual:     true,
		ObservedAt:    time.Now().UTC(),
	}
}

func TestEngine_RejectsUnknownPet(t *testing.T) {
	f := newEngineFixture()

	err := f.engine.Process(t.Context(), unusualObs("ghost", "a-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidObservation))
	assert.Empty(t, f.pub.commands())
}

func TestEngine_FirstAlertRunsMildIntervention(t *testing.T) {
	f := newEngineFixture("pet-1")

	require.NoError(t, f.engine.Process(t.Context(), unusualObs("pet-1", "a-1")))

	alert := f.repo.alert(t, "a-1")
	assert.Equal(t, TierMild, alert.Tier)
	require.NotNil(t, alert.InterventionAction)
	assert.Equal(t, InterventionAdjustEnvironment, *alert.InterventionAction)
	assert.Equal(t, entities.DeliveryDelivered, alert.DeliveryStatus)
	assert.False(t, alert.NotificationSent)
	assert.Equal(t, 1, alert.EscalationCount)

	pet := f.repo.pet(t, "pet-1")
	assert.Equal(t, 1, pet.ConsecutiveUnusualCount)
	require.NotNil(t, pet.OpenAlertID)
	assert.Equal(t, "a-1", *pet.OpenAlertID)

	cmds := f.pub.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, InterventionAdjustEnvironment, cmds[0].Action)
	assert.Equal(t, EnvironmentDimLights, cmds[0].Detail)
	assert.Equal(t, 0, f.notifier.calls())
}

func TestEngine_EscalatesThroughTiers(t *testing.T) {
	f := newEngineFixture("pet-1")
	f.contacts.contacts = []entities.EmergencyContact{
		{ID: "c-1", Name: "Alice", Priority: 1, IsActive: true},
	}

	for i, alertID := range []string{"a-1", "a-2", "a-3", "a-4", "a-5"} {
		require.NoError(t, f.engine.Process(t.Context(), unusualObs("pet-1", alertID)), "alert %d", i+1)
	}

	wantTiers := map[string]string{
		"a-1": TierMild,
		"a-2": TierMild,
		"a-3": TierModerate,
		"a-4": TierNotify,
		"a-5": TierCritical,
	}
	wantActions := map[string]string{
		"a-1": InterventionAdjustEnvironment,
		"a-2": InterventionAdjustEnvironment,
		"a-3": InterventionOwnerVoice,
		"a-4": InterventionNotifyUser,
		"a-5": InterventionNotifyUser,
	}
	for id, tier := range wantTiers {
		alert := f.repo.alert(t, id)
		assert.Equal(t, tier, alert.Tier, id)
		require.NotNil(t, alert.InterventionAction, id)
		assert.Equal(t, wantActions[id], *alert.InterventionAction, id)
	}

	// a-1 through a-4 were superseded, and the critical tier escalated a-5
	// itself, so every row ends up escalated.
	for _, id := range []string{"a-1", "a-2", "a-3", "a-4", "a-5"} {
		assert.Equal(t, entities.OutcomeEscalated, f.repo.alert(t, id).Outcome, id)
	}

	pet := f.repo.pet(t, "pet-1")
	assert.Equal(t, 5, pet.ConsecutiveUnusualCount)

	// Notifications at the Notify and Critical tiers only.
	assert.Equal(t, []string{TierNotify, TierCritical}, f.notifier.tiers)
	assert.True(t, f.repo.alert(t, "a-4").NotificationSent)
	assert.True(t, f.repo.alert(t, "a-5").NotificationSent)

	// Playback: dim lights twice, owner voice at moderate, owner voice
	// backup at notify. The critical tier publishes nothing.
	var actions []string
	for _, cmd := range f.pub.commands() {
		actions = append(actions, cmd.Action)
	}
	assert.Equal(t, []string{
		InterventionAdjustEnvironment,
		InterventionAdjustEnvironment,
		InterventionOwnerVoice,
		InterventionOwnerVoice,
	}, actions)

	// The critical tier generated exactly one quick action, for the only
	// contact.
	require.Len(t, f.repo.actions, 1)
	assert.Equal(t, "a-5", f.repo.actions[0].AlertID)
	assert.Equal(t, "c-1", f.repo.actions[0].EmergencyContactID)
}

func TestEngine_CriticalSeverityJumpsTiers(t *testing.T) {
	f := newEngineFixture("pet-1")
	f.contacts.contacts = []entities.EmergencyContact{
		{ID: "c-1", Name: "Alice", Priority: 1, IsActive: true},
	}

	obs := unusualObs("pet-1", "a-1")
	obs.SeverityLevel = entities.SeverityCritical
	require.NoError(t, f.engine.Process(t.Context(), obs))

	alert := f.repo.alert(t, "a-1")
	assert.Equal(t, TierCritical, alert.Tier)
	assert.Equal(t, entities.OutcomeEscalated, alert.Outcome)
	assert.True(t, alert.NotificationSent)
	assert.Equal(t, 1, alert.EscalationCount)
	assert.Equal(t, []string{TierCritical}, f.notifier.tiers)
	require.Len(t, f.repo.actions, 1)
	assert.Equal(t, entities.QuickActionPending, f.repo.actions[0].Status)
}

func TestEngine_DuplicateDeliveryIsNoOp(t *testing.T) {
	f := newEngineFixture("pet-1")
	obs := unusualObs("pet-1", "a-1")

	require.NoError(t, f.engine.Process(t.Context(), obs))
	require.NoError(t, f.engine.Process(t.Context(), obs))

	pet := f.repo.pet(t, "pet-1")
	assert.Equal(t, 1, pet.ConsecutiveUnusualCount, "duplicate must not advance the count")
	assert.Len(t, f.pub.commands(), 1, "duplicate must not replay the intervention")
	assert.Len(t, f.repo.alerts, 1)
}

func TestEngine_RedeliveryFinishesInterruptedExecution(t *testing.T) {
	f := newEngineFixture("pet-1")

	// Simulate a crash after persistence: the row exists but no intervention
	// was recorded.
	obs := unusualObs("pet-1", "a-1")
	norm := obs.normalize(time.Now().UTC())
	alert := norm.toAlert()
	alert.Tier = TierMild
	_, err := f.repo.OpenOrEscalate(t.Context(), alert)
	require.NoError(t, err)
	require.Nil(t, f.repo.alert(t, "a-1").InterventionAction)

	require.NoError(t, f.engine.Process(t.Context(), obs))

	stored := f.repo.alert(t, "a-1")
	require.NotNil(t, stored.InterventionAction, "redelivery must finish the interrupted execution")
	assert.Equal(t, InterventionAdjustEnvironment, *stored.InterventionAction)
	assert.Len(t, f.pub.commands(), 1)
	assert.Equal(t, 1, f.repo.pet(t, "pet-1").ConsecutiveUnusualCount)
}

func TestEngine_StateUnavailableWhenStoreFails(t *testing.T) {
	f := newEngineFixture("pet-1")
	f.repo.failGetPet = errors.NewStd("connection refused")

	err := f.engine.Process(t.Context(), unusualObs("pet-1", "a-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateUnavailable))
	assert.Empty(t, f.pub.commands(), "no intervention may run without state")
}

func TestEngine_ResolutionMonitor(t *testing.T) {
	normalObs := func(petID string, at time.Time) Observation {
		return Observation{PetID: petID, IsUnusual: false, ObservedAt: at}
	}

	t.Run("resolves within window", func(t *testing.T) {
		f := newEngineFixture("pet-1")
		require.NoError(t, f.engine.Process(t.Context(), unusualObs("pet-1", "a-1")))

		created := f.repo.alert(t, "a-1").CreatedAt
		require.NoError(t, f.engine.Process(t.Context(), normalObs("pet-1", created.Add(10*time.Second))))

		pet := f.repo.pet(t, "pet-1")
		assert.Equal(t, 0, pet.ConsecutiveUnusualCount)
		assert.Nil(t, pet.OpenAlertID)
		assert.Equal(t, entities.OutcomeResolved, f.repo.alert(t, "a-1").Outcome)
	})

	t.Run("ignores normal outside window", func(t *testing.T) {
		f := newEngineFixture("pet-1")
		require.NoError(t, f.engine.Process(t.Context(), unusualObs("pet-1", "a-1")))

		created := f.repo.alert(t, "a-1").CreatedAt
		require.NoError(t, f.engine.Process(t.Context(), normalObs("pet-1", created.Add(2*time.Minute))))

		pet := f.repo.pet(t, "pet-1")
		assert.Equal(t, 1, pet.ConsecutiveUnusualCount)
		assert.Equal(t, entities.OutcomePending, f.repo.alert(t, "a-1").Outcome)
	})

	t.Run("ignores normal observed before the alert", func(t *testing.T) {
		f := newEngineFixture("pet-1")
		require.NoError(t, f.engine.Process(t.Context(), unusualObs("pet-1", "a-1")))

		created := f.repo.alert(t, "a-1").CreatedAt
		require.NoError(t, f.engine.Process(t.Context(), normalObs("pet-1", created.Add(-time.Minute))))

		assert.Equal(t, entities.OutcomePending, f.repo.alert(t, "a-1").Outcome)
	})

	t.Run("no open alert is a no-op", func(t *testing.T) {
		f := newEngineFixture("pet-1")
		require.NoError(t, f.engine.Process(t.Context(), normalObs("pet-1", time.Now().UTC())))
		assert.Equal(t, 0, f.repo.pet(t, "pet-1").ConsecutiveUnusualCount)
	})

	t.Run("count restarts after resolution", func(t *testing.T) {
		f := newEngineFixture("pet-1")
		require.NoError(t, f.engine.Process(t.Context(), unusualObs("pet-1", "a-1")))
		created := f.repo.alert(t, "a-1").CreatedAt
		require.NoError(t, f.engine.Process(t.Context(), normalObs("pet-1", created.Add(time.Second))))

		require.NoError(t, f.engine.Process(t.Context(), unusualObs("pet-1", "a-2")))
		alert := f.repo.alert(t, "a-2")
		assert.Equal(t, 1, alert.EscalationCount, "resolution must reset the consecutive count")
		assert.Equal(t, TierMild, alert.Tier)
	})
}

func TestEngine_InconsistentStateWhenOpenAlertMissing(t *testing.T) {
	f := newEngineFixture("pet-1")
	ghost := "ghost-alert"
	f.repo.pets["pet-1"].OpenAlertID = &ghost

	err := f.engine.Process(t.Context(), Observation{PetID: "pet-1", ObservedAt: time.Now().UTC()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentState))
}
