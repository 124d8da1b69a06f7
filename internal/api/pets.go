package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/errors"
	"github.com/petpulse/petpulse-go/internal/logger"
)

type createPetRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Species string `json:"species"`
}

// ListPets returns all pets with their current escalation state.
func (c *Controller) ListPets(ctx echo.Context) error {
	pets, err := c.repo.ListPets(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list pets", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"pets":  pets,
		"count": len(pets),
	})
}

// CreatePet registers a pet. The id is normally assigned by the camera
// provisioning flow and sent along; when absent one is generated.
func (c *Controller) CreatePet(ctx echo.Context) error {
	var req createPetRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Pet name is required"})
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	pet := &entities.Pet{
		ID:      req.ID,
		Name:    req.Name,
		Species: req.Species,
	}
	if err := c.repo.CreatePet(ctx.Request().Context(), pet); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ctx.JSON(http.StatusConflict, map[string]string{"error": "A pet with this id already exists"})
		}
		return c.HandleError(ctx, err, "Failed to create pet", http.StatusInternalServerError)
	}

	c.log.Info("pet registered",
		logger.String("pet_id", pet.ID),
		logger.String("name", pet.Name),
	)

	return ctx.JSON(http.StatusCreated, pet)
}
