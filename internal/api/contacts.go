package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/logger"
)

type createContactRequest struct {
	Name        string `json:"name"`
	ContactType string `json:"contact_type"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	Notes       string `json:"notes"`
	Priority    *int   `json:"priority"`
	IsActive    *bool  `json:"is_active"`
}

// ListContacts returns every emergency contact, active or not.
func (c *Controller) ListContacts(ctx echo.Context) error {
	contacts, err := c.contactRepo.List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list emergency contacts", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"contacts": contacts,
		"count":    len(contacts),
	})
}

// CreateContact adds an emergency contact and invalidates the engine's
// contact cache so the next critical alert sees it without waiting out the
// TTL.
func (c *Controller) CreateContact(ctx echo.Context) error {
	var req createContactRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Contact name is required"})
	}
	if req.ContactType == "" {
		req.ContactType = "neighbor"
	}

	contact := &entities.EmergencyContact{
		ID:          uuid.New().String(),
		Name:        req.Name,
		ContactType: req.ContactType,
		Phone:       req.Phone,
		Email:       req.Email,
		Address:     req.Address,
		Notes:       req.Notes,
		Priority:    100,
		IsActive:    true,
	}
	if req.Priority != nil {
		contact.Priority = *req.Priority
	}
	if req.IsActive != nil {
		contact.IsActive = *req.IsActive
	}

	if err := c.contactRepo.CreateContact(ctx.Request().Context(), contact); err != nil {
		return c.HandleError(ctx, err, "Failed to create emergency contact", http.StatusInternalServerError)
	}

	if c.cache != nil {
		c.cache.Invalidate()
	}

	c.log.Info("emergency contact created",
		logger.String("contact_id", contact.ID),
		logger.String("name", contact.Name),
		logger.Int("priority", contact.Priority),
	)

	return ctx.JSON(http.StatusCreated, contact)
}
