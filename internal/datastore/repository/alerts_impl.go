package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/errors"
)

// alertRepository implements AlertRepository.
type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository. The db must be opened
// with TranslateError so duplicate keys surface as gorm.ErrDuplicatedKey.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// GetPet returns the pet aggregate. Returns ErrPetNotFound for unknown ids.
func (r *alertRepository) GetPet(ctx context.Context, petID string) (*entities.Pet, error) {
	var pet entities.Pet
	if err := r.db.WithContext(ctx).First(&pet, "id = ?", petID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPetNotFound
		}
		return nil, fmt.Errorf("failed to load pet %s: %w", petID, err)
	}
	return &pet, nil
}

func (r *alertRepository) CreatePet(ctx context.Context, pet *entities.Pet) error {
	if err := r.db.WithContext(ctx).Create(pet).Error; err != nil {
		return fmt.Errorf("failed to create pet %s: %w", pet.ID, err)
	}
	return nil
}

func (r *alertRepository) ListPets(ctx context.Context) ([]entities.Pet, error) {
	var pets []entities.Pet
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&pets).Error; err != nil {
		return nil, fmt.Errorf("failed to list pets: %w", err)
	}
	return pets, nil
}

// OpenOrEscalate appends the alert row, supersedes the previously open row,
// and advances the pet aggregate, all or nothing.
func (r *alertRepository) OpenOrEscalate(ctx context.Context, alert *entities.Alert) (*EscalationState, error) {
	state := &EscalationState{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pet entities.Pet
		if err := tx.First(&pet, "id = ?", alert.PetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPetNotFound
			}
			return fmt.Errorf("loading pet state: %w", err)
		}

		n := pet.ConsecutiveUnusualCount + 1
		alert.EscalationCount = n
		if alert.Outcome == "" {
			alert.Outcome = entities.OutcomePending
		}
		if err := tx.Create(alert).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateAlert
			}
			return fmt.Errorf("appending alert row: %w", err)
		}

		if pet.HasOpenAlert() {
			res := tx.Model(&entities.Alert{}).
				Where("id = ? AND outcome = ?", *pet.OpenAlertID, entities.OutcomePending).
				Update("outcome", entities.OutcomeEscalated)
			if res.Error != nil {
				return fmt.Errorf("superseding open alert: %w", res.Error)
			}
			if res.RowsAffected > 0 {
				state.Superseded = *pet.OpenAlertID
			}
		}

		updates := map[string]any{
			"consecutive_unusual_count": n,
			"open_alert_id":             alert.ID,
			"last_unusual_at":           alert.ObservedAt,
		}
		if err := tx.Model(&entities.Pet{}).Where("id = ?", pet.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating pet state: %w", err)
		}

		state.Count = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// MarkExecuted conditionally records the intervention. RowsAffected==0 means
// some earlier call already executed this row.
func (r *alertRepository) MarkExecuted(ctx context.Context, alertID string, rec ExecutionRecord) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Where("id = ? AND intervention_action IS NULL", alertID).
		Updates(map[string]any{
			"intervention_action": rec.Action,
			"intervention_at":     time.Now().UTC(),
			"tier":                rec.Tier,
			"delivery_status":     rec.DeliveryStatus,
		})
	if res.Error != nil {
		return false, fmt.Errorf("marking alert %s executed: %w", alertID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkEscalated records the critical-tier execution. The quick action insert
// shares the transaction with the outcome update so either both persist or
// neither does.
func (r *alertRepository) MarkEscalated(ctx context.Context, alertID string, rec ExecutionRecord, qa *entities.QuickAction) (bool, error) {
	first := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entities.Alert{}).
			Where("id = ? AND intervention_action IS NULL", alertID).
			Updates(map[string]any{
				"intervention_action": rec.Action,
				"intervention_at":     time.Now().UTC(),
				"tier":                rec.Tier,
				"delivery_status":     rec.DeliveryStatus,
				"outcome":             entities.OutcomeEscalated,
			})
		if res.Error != nil {
			return fmt.Errorf("marking alert %s escalated: %w", alertID, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		first = true

		if qa != nil {
			if err := tx.Create(qa).Error; err != nil {
				return fmt.Errorf("persisting quick action for alert %s: %w", alertID, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return first, nil
}

// MarkNotified flips notification_sent exactly once per alert row.
func (r *alertRepository) MarkNotified(ctx context.Context, alertID string, channels []string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Where("id = ? AND notification_sent = ?", alertID, false).
		Updates(map[string]any{
			"notification_sent":     true,
			"notification_channels": entities.EncodeStringList(channels),
		})
	if res.Error != nil {
		return false, fmt.Errorf("marking alert %s notified: %w", alertID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ResolveOpen closes the open alert if, and only if, it is still alertID.
// The conditional update on the pet row is the race guard: when a newer
// unusual observation retargeted open_alert_id first, this is a no-op.
func (r *alertRepository) ResolveOpen(ctx context.Context, petID, alertID string) (bool, error) {
	resolved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entities.Pet{}).
			Where("id = ? AND open_alert_id = ?", petID, alertID).
			Updates(map[string]any{
				"consecutive_unusual_count": 0,
				"open_alert_id":             nil,
			})
		if res.Error != nil {
			return fmt.Errorf("clearing open alert for pet %s: %w", petID, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&entities.Alert{}).
			Where("id = ? AND outcome = ?", alertID, entities.OutcomePending).
			Update("outcome", entities.OutcomeResolved).Error; err != nil {
			return fmt.Errorf("resolving alert %s: %w", alertID, err)
		}
		resolved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return resolved, nil
}

// GetAlert returns a single alert row. Returns ErrAlertNotFound if missing.
func (r *alertRepository) GetAlert(ctx context.Context, alertID string) (*entities.Alert, error) {
	var alert entities.Alert
	if err := r.db.WithContext(ctx).First(&alert, "id = ?", alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to load alert %s: %w", alertID, err)
	}
	return &alert, nil
}

// ListAlerts returns alert rows matching the filter, newest first.
func (r *alertRepository) ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, error) {
	query := r.db.WithContext(ctx).Model(&entities.Alert{})

	if filter.PetID != "" {
		query = query.Where("pet_id = ?", filter.PetID)
	}
	if filter.SeverityLevel != "" {
		query = query.Where("severity_level = ?", filter.SeverityLevel)
	}
	if len(filter.Outcomes) > 0 {
		query = query.Where("outcome IN ?", filter.Outcomes)
	}
	if filter.Unacknowledged {
		query = query.Where("user_acknowledged_at IS NULL")
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var alerts []entities.Alert
	if err := query.Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// CreateQuickAction inserts a human-triggered quick action and, when
// alertOutcome is set, transitions the alert in the same transaction.
func (r *alertRepository) CreateQuickAction(ctx context.Context, qa *entities.QuickAction, alertOutcome string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var alert entities.Alert
		if err := tx.First(&alert, "id = ?", qa.AlertID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAlertNotFound
			}
			return fmt.Errorf("loading alert %s: %w", qa.AlertID, err)
		}

		if err := tx.Create(qa).Error; err != nil {
			return fmt.Errorf("creating quick action: %w", err)
		}

		if alertOutcome != "" && alert.Outcome != alertOutcome {
			if err := tx.Model(&entities.Alert{}).
				Where("id = ?", qa.AlertID).
				Update("outcome", alertOutcome).Error; err != nil {
				return fmt.Errorf("updating alert outcome: %w", err)
			}
		}
		return nil
	})
}

func (r *alertRepository) ListQuickActions(ctx context.Context, alertID string) ([]entities.QuickAction, error) {
	var actions []entities.QuickAction
	if err := r.db.WithContext(ctx).
		Where("alert_id = ?", alertID).
		Order("created_at ASC").
		Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("failed to list quick actions for alert %s: %w", alertID, err)
	}
	return actions, nil
}

// HasPendingQuickActionForContact reports whether the contact already has an
// undelivered quick action, across all alerts. Used for outreach dedupe.
func (r *alertRepository) HasPendingQuickActionForContact(ctx context.Context, contactID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.QuickAction{}).
		Where("emergency_contact_id = ? AND status = ?", contactID, entities.QuickActionPending).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("counting pending quick actions for contact %s: %w", contactID, err)
	}
	return count > 0, nil
}

// Acknowledge records the user's response on a notified alert.
func (r *alertRepository) Acknowledge(ctx context.Context, alertID, response string) error {
	res := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Where("id = ?", alertID).
		Updates(map[string]any{
			"user_acknowledged_at": time.Now().UTC(),
			"user_response":        response,
		})
	if res.Error != nil {
		return fmt.Errorf("acknowledging alert %s: %w", alertID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// ResolveByUser closes an alert manually. Unlike ResolveOpen it also accepts
// escalated rows, and clears the pet aggregate when this row is the open one.
func (r *alertRepository) ResolveByUser(ctx context.Context, alertID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var alert entities.Alert
		if err := tx.First(&alert, "id = ?", alertID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAlertNotFound
			}
			return fmt.Errorf("loading alert %s: %w", alertID, err)
		}

		if err := tx.Model(&entities.Alert{}).
			Where("id = ?", alertID).
			Update("outcome", entities.OutcomeResolved).Error; err != nil {
			return fmt.Errorf("resolving alert %s: %w", alertID, err)
		}

		if err := tx.Model(&entities.Pet{}).
			Where("id = ? AND open_alert_id = ?", alert.PetID, alertID).
			Updates(map[string]any{
				"consecutive_unusual_count": 0,
				"open_alert_id":             nil,
			}).Error; err != nil {
			return fmt.Errorf("clearing pet state for alert %s: %w", alertID, err)
		}
		return nil
	})
}
