// Package entities defines the gorm models for the alert history store.
// The alerts table is append-only: rows transition through outcomes but are
// never deleted, so the escalation history doubles as the audit log.
package entities

import "time"

// Severity levels carried by observations and stored on alerts, ordered
// info < low < medium < high < critical. The ingestion gate never stores
// anything below low.
const (
	SeverityInfo     = "info"
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert outcomes. A pet's open alert is its latest row with OutcomePending;
// every other value is terminal for that row.
const (
	OutcomePending         = "pending"
	OutcomeEscalated       = "escalated"
	OutcomeResolved        = "resolved"
	OutcomeQuickActionSent = "quick_action_taken"
)

// Delivery status of the intervention playback command.
const (
	DeliveryDelivered = "delivered"
	DeliveryDegraded  = "degraded"
)

// Alert types reported by the analysis worker.
const (
	AlertTypePacing           = "pacing"
	AlertTypeVocalization     = "vocalization"
	AlertTypePositionChanges  = "position_changes"
	AlertTypeDoorProximity    = "door_proximity"
	AlertTypeRestlessness     = "restlessness"
	AlertTypeAttentionSeeking = "attention_seeking"
	AlertTypeUnusualBehavior  = "unusual_behavior"
	AlertTypeComfort          = "comfort"
	AlertTypeProcessingError  = "processing_error"
)

// Alert is one row of the per-pet alert history. The primary key is the
// producer-assigned alert id when present, which is what makes redelivered
// observations collapse into a single row.
type Alert struct {
	ID                   string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	PetID                string     `gorm:"type:varchar(36);not null;index:idx_alerts_pet_created,priority:1" json:"pet_id"`
	AlertType            string     `gorm:"size:50;not null;default:'unusual_behavior'" json:"alert_type"`
	Severity             string     `gorm:"size:20;not null;default:'low'" json:"severity"`
	SeverityLevel        string     `gorm:"size:20;not null;default:'low';index" json:"severity_level"`
	Message              string     `gorm:"type:text;default:''" json:"message"`
	Indicators           string     `gorm:"type:text;default:''" json:"indicators"`
	RecommendedActions   string     `gorm:"type:text;default:''" json:"recommended_actions"`
	EscalationCount      int        `gorm:"not null;default:0" json:"escalation_count"`
	Tier                 string     `gorm:"size:20;default:''" json:"tier"`
	InterventionAction   *string    `gorm:"size:100" json:"intervention_action"`
	InterventionAt       *time.Time `json:"intervention_at"`
	DeliveryStatus       string     `gorm:"size:20;default:''" json:"delivery_status"`
	Outcome              string     `gorm:"size:32;not null;default:'pending';index" json:"outcome"`
	NotificationSent     bool       `gorm:"not null;default:false" json:"notification_sent"`
	NotificationChannels string     `gorm:"type:text;default:''" json:"notification_channels"`
	UserAcknowledgedAt   *time.Time `json:"user_acknowledged_at"`
	UserResponse         string     `gorm:"size:255;default:''" json:"user_response"`
	ObservedAt           time.Time  `gorm:"not null" json:"observed_at"`
	CreatedAt            time.Time  `gorm:"autoCreateTime;index:idx_alerts_pet_created,priority:2" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Alert) TableName() string {
	return "alerts"
}

// Open reports whether this row is still the pet's live alert.
func (a *Alert) Open() bool {
	return a.Outcome == OutcomePending
}
