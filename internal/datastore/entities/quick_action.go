package entities

import "time"

// QuickAction statuses.
const (
	QuickActionPending      = "pending"
	QuickActionSent         = "sent"
	QuickActionAcknowledged = "acknowledged"
	QuickActionFailed       = "failed"
)

// Default quick action type: reach out to an emergency contact.
const QuickActionTypeNotifyContact = "notify_contact"

// QuickAction is an outreach task generated for an emergency contact, either
// automatically on a critical alert or by a user from the alert view.
type QuickAction struct {
	ID                 string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	AlertID            string     `gorm:"type:varchar(36);not null;index" json:"alert_id"`
	EmergencyContactID string     `gorm:"type:varchar(36);not null;index" json:"emergency_contact_id"`
	ActionType         string     `gorm:"size:50;not null;default:'notify_contact'" json:"action_type"`
	Message            string     `gorm:"type:text;default:''" json:"message"`
	VideoClips         string     `gorm:"type:text;default:''" json:"video_clips"`
	Status             string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	SentAt             *time.Time `json:"sent_at"`
	AcknowledgedAt     *time.Time `json:"acknowledged_at"`
	ErrorMessage       string     `gorm:"size:500;default:''" json:"error_message"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (QuickAction) TableName() string {
	return "quick_actions"
}
