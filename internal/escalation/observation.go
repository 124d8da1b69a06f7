package escalation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/errors"
)

// Observation is one analysis result for a single video, as delivered by the
// behavior worker. Unusual observations become alert rows; normal ones feed
// the resolution monitor. The struct is consumed once and never mutated
// after normalization.
type Observation struct {
	AlertID            string    `json:"alert_id"`
	PetID              string    `json:"pet_id"`
	AlertType          string    `json:"alert_type"`
	Severity           string    `json:"severity"`
	SeverityLevel      string    `json:"severity_level"`
	IsUnusual          bool      `json:"is_unusual"`
	Title              string    `json:"title"`
	Message            string    `json:"message"`
	VideoID            string    `json:"video_id"`
	CriticalIndicators []string  `json:"critical_indicators"`
	RecommendedActions []string  `json:"recommended_actions"`
	ObservedAt         time.Time `json:"timestamp"`
}

// Validate rejects payloads the engine must never act on. Failures wrap
// ErrInvalidObservation with the offending field so the API layer can both
// match the sentinel and report the cause.
func (o *Observation) Validate() error {
	if strings.TrimSpace(o.PetID) == "" {
		return invalidObservation("pet_id is required", o.PetID)
	}
	if o.SeverityLevel != "" && !ValidSeverity(o.SeverityLevel) {
		return invalidObservation("unknown severity_level "+o.SeverityLevel, o.PetID)
	}
	if o.Severity != "" && !ValidSeverity(o.Severity) {
		return invalidObservation("unknown severity "+o.Severity, o.PetID)
	}
	return nil
}

func invalidObservation(reason, petID string) error {
	return errors.Newf("%w: %s", ErrInvalidObservation, reason).
		Component("escalation").
		Category(errors.CategoryValidation).
		Context("pet_id", petID).
		Build()
}

// normalize fills producer-optional fields on a copy: a fresh alert id when
// the producer did not assign one, the low severity floor, the mirrored
// legacy severity column, and the receive time when the payload carries no
// timestamp.
func (o Observation) normalize(now time.Time) Observation {
	if o.AlertID == "" {
		o.AlertID = uuid.New().String()
	}
	if o.AlertType == "" {
		o.AlertType = entities.AlertTypeUnusualBehavior
	}
	if o.SeverityLevel == "" || o.SeverityLevel == entities.SeverityInfo {
		o.SeverityLevel = entities.SeverityLow
	}
	if o.Severity == "" {
		o.Severity = legacySeverityFor(o.SeverityLevel)
	}
	if o.ObservedAt.IsZero() {
		o.ObservedAt = now
	}
	return o
}

// toAlert builds the history row for an unusual observation. Tier and
// intervention fields stay empty until the policy decides.
func (o *Observation) toAlert() *entities.Alert {
	message := o.Message
	if message == "" {
		message = o.Title
	}
	return &entities.Alert{
		ID:                 o.AlertID,
		PetID:              o.PetID,
		AlertType:          o.AlertType,
		Severity:           o.Severity,
		SeverityLevel:      o.SeverityLevel,
		Message:            message,
		Indicators:         entities.EncodeStringList(o.CriticalIndicators),
		RecommendedActions: entities.EncodeStringList(o.RecommendedActions),
		Outcome:            entities.OutcomePending,
		ObservedAt:         o.ObservedAt,
	}
}
