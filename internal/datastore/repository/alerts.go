// Package repository implements the alert history store on top of gorm.
// The store owns every persisted invariant of the escalation pipeline: the
// append-only alerts table, the single-open-alert-per-pet rule, and the
// conditional updates that make intervention execution at-most-once.
package repository

import (
	"context"
	"time"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
)

// AlertRepository handles pets, the alert history, and quick actions.
type AlertRepository interface {
	// Pets
	GetPet(ctx context.Context, petID string) (*entities.Pet, error)
	CreatePet(ctx context.Context, pet *entities.Pet) error
	ListPets(ctx context.Context) ([]entities.Pet, error)

	// OpenOrEscalate appends the alert row and advances the pet's
	// consecutive-unusual count in one transaction. Any previously open row
	// is marked escalated. Returns ErrDuplicateAlert when the alert id was
	// already ingested; nothing is written in that case.
	OpenOrEscalate(ctx context.Context, alert *entities.Alert) (*EscalationState, error)

	// MarkExecuted records the intervention for an alert row. The update is
	// conditional on no intervention being recorded yet, which is what makes
	// execution at-most-once; first reports whether this call won the write.
	MarkExecuted(ctx context.Context, alertID string, rec ExecutionRecord) (first bool, err error)

	// MarkEscalated is MarkExecuted plus outcome=escalated plus (optionally)
	// the auto-generated quick action, all in one transaction. If the quick
	// action insert fails the outcome update rolls back with it.
	MarkEscalated(ctx context.Context, alertID string, rec ExecutionRecord, qa *entities.QuickAction) (first bool, err error)

	// MarkNotified flips notification_sent, returning whether this call did
	// the flip. Used to suppress duplicate user notifications.
	MarkNotified(ctx context.Context, alertID string, channels []string) (first bool, err error)

	// ResolveOpen closes the pet's open alert and resets the consecutive
	// count, but only while alertID is still the open row. Reports whether
	// anything was resolved.
	ResolveOpen(ctx context.Context, petID, alertID string) (resolved bool, err error)

	// Queries
	GetAlert(ctx context.Context, alertID string) (*entities.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, error)

	// Quick actions
	CreateQuickAction(ctx context.Context, qa *entities.QuickAction, alertOutcome string) error
	ListQuickActions(ctx context.Context, alertID string) ([]entities.QuickAction, error)
	HasPendingQuickActionForContact(ctx context.Context, contactID string) (bool, error)

	// User operations on critical alerts
	Acknowledge(ctx context.Context, alertID, response string) error
	ResolveByUser(ctx context.Context, alertID string) error
}

// EscalationState is what OpenOrEscalate leaves behind.
type EscalationState struct {
	// Count is N, the consecutive-unusual count including the new alert.
	Count int
	// Superseded is the id of the previous open row that was marked
	// escalated, or empty when the new alert opened fresh.
	Superseded string
}

// ExecutionRecord is what MarkExecuted and MarkEscalated persist on the
// alert row once the intervention ran.
type ExecutionRecord struct {
	// Action is the intervention identifier, e.g. "play_calming_music".
	Action string
	// Tier the policy decided for this row.
	Tier string
	// DeliveryStatus is "delivered" or "degraded".
	DeliveryStatus string
}

// AlertFilter controls alert listing queries.
type AlertFilter struct {
	PetID          string
	SeverityLevel  string
	Outcomes       []string
	Unacknowledged bool
	Since          time.Time
	Limit          int
}
