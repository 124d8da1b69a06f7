package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/errors"
)

type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) ListActive(ctx context.Context) ([]entities.EmergencyContact, error) {
	var contacts []entities.EmergencyContact
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority ASC").
		Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("failed to list active contacts: %w", err)
	}
	return contacts, nil
}

func (r *contactRepository) List(ctx context.Context) ([]entities.EmergencyContact, error) {
	var contacts []entities.EmergencyContact
	if err := r.db.WithContext(ctx).Order("priority ASC").Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

func (r *contactRepository) GetContact(ctx context.Context, id string) (*entities.EmergencyContact, error) {
	var contact entities.EmergencyContact
	if err := r.db.WithContext(ctx).First(&contact, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to load contact %s: %w", id, err)
	}
	return &contact, nil
}

func (r *contactRepository) CreateContact(ctx context.Context, contact *entities.EmergencyContact) error {
	if err := r.db.WithContext(ctx).Create(contact).Error; err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}
