package entities

import "time"

// Pet carries the per-pet escalation aggregate. ConsecutiveUnusualCount and
// OpenAlertID move together: the count is the N fed to the policy table and
// OpenAlertID points at the latest pending alert row, or is nil when the pet
// is calm.
type Pet struct {
	ID                      string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name                    string     `gorm:"size:120;not null" json:"name"`
	Species                 string     `gorm:"size:50;default:''" json:"species"`
	ConsecutiveUnusualCount int        `gorm:"not null;default:0" json:"consecutive_unusual_count"`
	OpenAlertID             *string    `gorm:"type:varchar(36)" json:"open_alert_id"`
	LastUnusualAt           *time.Time `json:"last_unusual_at"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Pet) TableName() string {
	return "pets"
}

// HasOpenAlert reports whether an alert is currently open for the pet.
func (p *Pet) HasOpenAlert() bool {
	return p.OpenAlertID != nil && *p.OpenAlertID != ""
}
