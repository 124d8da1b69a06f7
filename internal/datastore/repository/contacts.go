package repository

import (
	"context"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
)

// ContactRepository reads and manages emergency contacts. The escalation
// engine only ever calls ListActive; the mutating methods back the admin API.
type ContactRepository interface {
	// ListActive returns active contacts ordered by priority ascending,
	// highest priority first.
	ListActive(ctx context.Context) ([]entities.EmergencyContact, error)
	List(ctx context.Context) ([]entities.EmergencyContact, error)
	GetContact(ctx context.Context, id string) (*entities.EmergencyContact, error)
	CreateContact(ctx context.Context, contact *entities.EmergencyContact) error
}
