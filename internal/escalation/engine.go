package escalation

import (
	"context"
	"time"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/datastore/repository"
	"github.com/petpulse/petpulse-go/internal/errors"
	"github.com/petpulse/petpulse-go/internal/logger"
	"github.com/petpulse/petpulse-go/internal/observability/metrics"
)

// Engine is the decision core. Process ingests one observation end to end:
// validation, history update, tier decision, intervention execution, or
// resolution for a return-to-normal.
//
// Process assumes observations for one pet arrive serially. The dispatcher
// pins each pet to a single partition to provide that; calling Process
// concurrently for the same pet from elsewhere voids the count arithmetic.
// Different pets are fully independent.
type Engine struct {
	repo     repository.AlertRepository
	policy   *Policy
	executor *Executor
	metrics  *metrics.Monitor
	log      logger.Logger

	// window bounds how long after an alert a return-to-normal observation
	// may still resolve it.
	window time.Duration
}

// NewEngine builds the engine. metrics may be nil, everything else must not
// be.
func NewEngine(
	repo repository.AlertRepository,
	policy *Policy,
	executor *Executor,
	m *metrics.Monitor,
	log logger.Logger,
	window time.Duration,
) *Engine {
	return &Engine{
		repo:     repo,
		policy:   policy,
		executor: executor,
		metrics:  m,
		log:      log,
		window:   window,
	}
}

// Process ingests one observation. Unusual observations become alert rows
// and run an intervention; normal ones may resolve the pet's open alert.
// Redelivered observations are detected by alert id and never duplicate a
// row or an execution.
func (e *Engine) Process(ctx context.Context, obs Observation) error {
	if err := obs.Validate(); err != nil {
		return err
	}
	obs = obs.normalize(time.Now().UTC())
	if obs.IsUnusual {
		return e.processUnusual(ctx, obs)
	}
	return e.processNormal(ctx, obs)
}

func (e *Engine) processUnusual(ctx context.Context, obs Observation) error {
	pet, err := e.repo.GetPet(ctx, obs.PetID)
	if err != nil {
		if errors.Is(err, repository.ErrPetNotFound) {
			return invalidObservation("unknown pet "+obs.PetID, obs.PetID)
		}
		return stateUnavailable("loading pet", obs.PetID, err)
	}

	n := pet.ConsecutiveUnusualCount + 1
	decision := e.policy.Decide(n, obs.SeverityLevel, obs.AlertType)

	alert := obs.toAlert()
	alert.Tier = decision.Tier

	state, err := e.repo.OpenOrEscalate(ctx, alert)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateAlert):
			return e.processRedelivery(ctx, pet, obs)
		case errors.Is(err, repository.ErrPetNotFound):
			return invalidObservation("unknown pet "+obs.PetID, obs.PetID)
		default:
			return stateUnavailable("persisting alert", obs.PetID, err)
		}
	}

	if e.metrics != nil {
		e.metrics.IncUnusualEvents(obs.PetID)
	}

	if state.Count != n {
		// The transaction saw a newer count than our read. Re-decide from
		// what was actually persisted.
		n = state.Count
		decision = e.policy.Decide(n, obs.SeverityLevel, obs.AlertType)
	}

	e.log.Info("unusual observation admitted",
		logger.String("pet_id", obs.PetID),
		logger.String("alert_id", alert.ID),
		logger.String("alert_type", obs.AlertType),
		logger.String("severity_level", obs.SeverityLevel),
		logger.Int("consecutive_count", n),
		logger.String("tier", decision.Tier),
	)

	if decision.Tier == TierCritical && e.metrics != nil {
		e.metrics.IncCriticalAlerts(obs.PetID)
	}

	return e.executor.Execute(ctx, pet, alert, decision)
}

// processRedelivery handles an alert id the store already ingested. When the
// earlier delivery crashed between persisting and executing, the row carries
// no intervention yet: recompute the decision from the persisted history and
// finish the job. Otherwise the redelivery is a pure no-op.
func (e *Engine) processRedelivery(ctx context.Context, pet *entities.Pet, obs Observation) error {
	alert, err := e.repo.GetAlert(ctx, obs.AlertID)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return inconsistentState(obs.PetID, obs.AlertID)
		}
		return stateUnavailable("loading redelivered alert", obs.PetID, err)
	}

	if alert.InterventionAction != nil {
		e.log.Info("duplicate observation ignored",
			logger.String("pet_id", alert.PetID),
			logger.String("alert_id", alert.ID),
		)
		return nil
	}

	decision := e.policy.Decide(alert.EscalationCount, alert.SeverityLevel, alert.AlertType)
	e.log.Info("finishing interrupted intervention",
		logger.String("pet_id", alert.PetID),
		logger.String("alert_id", alert.ID),
		logger.String("tier", decision.Tier),
	)
	return e.executor.Execute(ctx, pet, alert, decision)
}

// processNormal is the resolution monitor. A return-to-normal observation
// closes the pet's open alert when it lands inside the monitoring window
// measured from the alert row's creation.
func (e *Engine) processNormal(ctx context.Context, obs Observation) error {
	pet, err := e.repo.GetPet(ctx, obs.PetID)
	if err != nil {
		if errors.Is(err, repository.ErrPetNotFound) {
			return invalidObservation("unknown pet "+obs.PetID, obs.PetID)
		}
		return stateUnavailable("loading pet", obs.PetID, err)
	}
	if !pet.HasOpenAlert() {
		return nil
	}

	alert, err := e.repo.GetAlert(ctx, *pet.OpenAlertID)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return inconsistentState(pet.ID, *pet.OpenAlertID)
		}
		return stateUnavailable("loading open alert", obs.PetID, err)
	}

	elapsed := obs.ObservedAt.Sub(alert.CreatedAt)
	if elapsed < 0 || elapsed > e.window {
		e.log.Debug("normal observation outside monitoring window",
			logger.String("pet_id", pet.ID),
			logger.String("alert_id", alert.ID),
			logger.Duration("elapsed", elapsed),
		)
		return nil
	}

	resolved, err := e.repo.ResolveOpen(ctx, pet.ID, alert.ID)
	if err != nil {
		return stateUnavailable("resolving alert", obs.PetID, err)
	}
	if resolved {
		if e.metrics != nil {
			e.metrics.IncResolutions()
		}
		e.log.Info("alert resolved, pet back to normal",
			logger.String("pet_id", pet.ID),
			logger.String("alert_id", alert.ID),
		)
	}
	return nil
}

func stateUnavailable(op, petID string, err error) error {
	return errors.Newf("%w: %s: %w", ErrStateUnavailable, op, err).
		Component("escalation").
		Category(errors.CategoryDatabase).
		Context("pet_id", petID).
		Build()
}

func inconsistentState(petID, alertID string) error {
	return errors.Newf("%w: pet %s references missing alert %s", ErrInconsistentState, petID, alertID).
		Component("escalation").
		Category(errors.CategoryState).
		Context("pet_id", petID).
		Build()
}
