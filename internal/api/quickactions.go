package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/datastore/repository"
	"github.com/petpulse/petpulse-go/internal/errors"
	"github.com/petpulse/petpulse-go/internal/logger"
)

type createQuickActionRequest struct {
	EmergencyContactID string   `json:"emergency_contact_id"`
	ActionType         string   `json:"action_type"`
	Message            string   `json:"message"`
	VideoClipIDs       []string `json:"video_clip_ids"`
}

// quickActionResponse embeds the row plus the contact fields the alert view
// renders next to it.
type quickActionResponse struct {
	entities.QuickAction
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
}

// CreateQuickAction records a user-triggered outreach to an emergency
// contact and flips the alert outcome to quick_action_taken. A contact with
// an outreach still pending is rejected, same rule the engine applies to its
// auto-generated quick actions.
func (c *Controller) CreateQuickAction(ctx echo.Context) error {
	var req createQuickActionRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.EmergencyContactID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Emergency contact ID is required"})
	}
	if req.Message == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Message is required"})
	}
	if req.ActionType == "" {
		req.ActionType = entities.QuickActionTypeNotifyContact
	}

	reqCtx := ctx.Request().Context()
	alertID := ctx.Param("id")

	alert, err := c.repo.GetAlert(reqCtx, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
		}
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}

	contact, err := c.contactRepo.GetContact(reqCtx, req.EmergencyContactID)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Emergency contact not found"})
		}
		return c.HandleError(ctx, err, "Failed to get emergency contact", http.StatusInternalServerError)
	}

	pending, err := c.repo.HasPendingQuickActionForContact(reqCtx, contact.ID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to check pending outreach", http.StatusInternalServerError)
	}
	if pending {
		return ctx.JSON(http.StatusConflict, map[string]string{"error": "Contact already has a pending outreach"})
	}

	qa := &entities.QuickAction{
		ID:                 uuid.New().String(),
		AlertID:            alert.ID,
		EmergencyContactID: contact.ID,
		ActionType:         req.ActionType,
		Message:            req.Message,
		VideoClips:         entities.EncodeStringList(req.VideoClipIDs),
		Status:             entities.QuickActionPending,
	}
	if err := c.repo.CreateQuickAction(reqCtx, qa, entities.OutcomeQuickActionSent); err != nil {
		return c.HandleError(ctx, err, "Failed to create quick action", http.StatusInternalServerError)
	}

	c.log.Info("quick action created",
		logger.String("quick_action_id", qa.ID),
		logger.String("alert_id", alert.ID),
		logger.String("contact_id", contact.ID),
	)

	return ctx.JSON(http.StatusCreated, quickActionResponse{
		QuickAction:  *qa,
		ContactName:  contact.Name,
		ContactPhone: contact.Phone,
	})
}

// ListQuickActions returns the outreach rows for one alert with the contact
// details joined in.
func (c *Controller) ListQuickActions(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	alertID := ctx.Param("id")

	if _, err := c.repo.GetAlert(reqCtx, alertID); err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
		}
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}

	actions, err := c.repo.ListQuickActions(reqCtx, alertID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list quick actions", http.StatusInternalServerError)
	}

	contacts, err := c.contactRepo.List(reqCtx)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list emergency contacts", http.StatusInternalServerError)
	}
	byID := make(map[string]*entities.EmergencyContact, len(contacts))
	for i := range contacts {
		byID[contacts[i].ID] = &contacts[i]
	}

	resp := make([]quickActionResponse, 0, len(actions))
	for i := range actions {
		r := quickActionResponse{QuickAction: actions[i]}
		if contact, ok := byID[actions[i].EmergencyContactID]; ok {
			r.ContactName = contact.Name
			r.ContactPhone = contact.Phone
		}
		resp = append(resp, r)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"quick_actions": resp,
		"count":         len(resp),
	})
}
