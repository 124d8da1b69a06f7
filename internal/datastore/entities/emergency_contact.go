package entities

import "time"

// EmergencyContact is someone who can physically check on a pet. Lower
// Priority means contacted first. The escalation engine only reads this
// table; rows are managed through the admin API or seeded externally.
type EmergencyContact struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	ContactType string    `gorm:"size:50;not null;default:'neighbor'" json:"contact_type"`
	Phone       string    `gorm:"size:40;default:''" json:"phone"`
	Email       string    `gorm:"size:255;default:''" json:"email"`
	Address     string    `gorm:"size:500;default:''" json:"address"`
	Notes       string    `gorm:"size:1000;default:''" json:"notes"`
	Priority    int       `gorm:"not null;index" json:"priority"`
	IsActive    bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (EmergencyContact) TableName() string {
	return "emergency_contacts"
}
