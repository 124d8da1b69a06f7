package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/datastore/repository"
	"github.com/petpulse/petpulse-go/internal/errors"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 200
)

// ListAlerts returns alert history rows, newest first.
// Query params: pet_id, severity, outcome (repeatable), unacknowledged, limit.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	filter := repository.AlertFilter{
		PetID:         ctx.QueryParam("pet_id"),
		SeverityLevel: ctx.QueryParam("severity"),
		Outcomes:      ctx.QueryParams()["outcome"],
		Limit:         defaultAlertLimit,
	}
	if ctx.QueryParam("unacknowledged") == "true" {
		filter.Unacknowledged = true
	}
	if raw := ctx.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
		filter.Limit = min(limit, maxAlertLimit)
	}

	alerts, err := c.repo.ListAlerts(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alerts", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ListCriticalAlerts returns the critical alerts that still need somebody:
// rows neither resolved nor answered with a quick action.
func (c *Controller) ListCriticalAlerts(ctx echo.Context) error {
	filter := repository.AlertFilter{
		SeverityLevel: entities.SeverityCritical,
		Outcomes:      []string{entities.OutcomePending, entities.OutcomeEscalated},
		Limit:         maxAlertLimit,
	}

	alerts, err := c.repo.ListAlerts(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list critical alerts", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetAlert returns a single alert row by id.
func (c *Controller) GetAlert(ctx echo.Context) error {
	alert, err := c.repo.GetAlert(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
		}
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, alert)
}

type acknowledgeRequest struct {
	Response string `json:"response"`
}

// AcknowledgeAlert records the user's response on the alert. Acknowledgment
// is metadata, not a lifecycle step: the row's outcome is untouched, so an
// acknowledged open alert can still resolve on calm observations.
func (c *Controller) AcknowledgeAlert(ctx echo.Context) error {
	var req acknowledgeRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	err := c.repo.Acknowledge(ctx.Request().Context(), ctx.Param("id"), req.Response)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
		}
		return c.HandleError(ctx, err, "Failed to acknowledge alert", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]string{"status": "acknowledged"})
}

// ResolveAlert closes an alert manually, clearing the pet's escalation state
// when this row was the open one.
func (c *Controller) ResolveAlert(ctx echo.Context) error {
	err := c.repo.ResolveByUser(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
		}
		return c.HandleError(ctx, err, "Failed to resolve alert", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]string{"status": "resolved"})
}
