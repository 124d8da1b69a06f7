package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/petpulse/petpulse-go/internal/errors"
	"github.com/petpulse/petpulse-go/internal/escalation"
)

// IngestObservation accepts one analysis result and queues it for the
// escalation pipeline. POST /api/v1/alert and /api/v1/alert/critical share
// this handler; the severity in the payload decides the handling, not the
// path. Replies 202 before processing: ingestion is asynchronous and
// idempotent on alert_id, so producers retry the whole request on 5xx.
func (c *Controller) IngestObservation(ctx echo.Context) error {
	var obs escalation.Observation
	if err := ctx.Bind(&obs); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if err := obs.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := c.intake.Enqueue(ctx.Request().Context(), obs); err != nil {
		if errors.Is(err, escalation.ErrQueueFull) || errors.Is(err, escalation.ErrDispatcherStopped) {
			return c.HandleError(ctx, err, "Ingestion temporarily unavailable", http.StatusServiceUnavailable)
		}
		return c.HandleError(ctx, err, "Failed to queue observation", http.StatusInternalServerError)
	}

	resp := map[string]string{"status": "queued"}
	if obs.AlertID != "" {
		resp["alert_id"] = obs.AlertID
	}
	return ctx.JSON(http.StatusAccepted, resp)
}
