package handlers

import (
	"errors"
	"net/http"

	"github.com/aperturelab/proofing/cmd/proofing/container"
	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/aperturelab/proofing/cmd/proofing/service"
	"github.com/labstack/echo/v4"
)

// ProofHandler handles the public client-facing proofing endpoints.
// Clients authenticate with their opaque ident token only.
type ProofHandler struct {
	container *container.Container
}

// NewProofHandler creates a new proof handler
func NewProofHandler(c *container.Container) *ProofHandler {
	return &ProofHandler{container: c}
}

// GetProofView returns what a client sees: the open gallery and their
// own saved selection
// GET /proof/:id/:ident
func (h *ProofHandler) GetProofView(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}
	ident := c.Param("ident")
	ctx := c.Request().Context()

	collection, err := h.container.Lifecycle.Collection(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	client, err := h.container.Registry.Client(ctx, id, ident)
	if err != nil {
		return respondError(c, models.ErrNotAuthorized)
	}

	var selection *models.Selection
	sel, err := h.container.Selection.Selection(ctx, id, ident)
	if err == nil {
		selection = sel
	} else if !errors.Is(err, models.ErrNotFound) {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"collection": map[string]interface{}{
			"id":         collection.ID,
			"title":      collection.Title,
			"status":     collection.Status,
			"item_ids":   collection.ActiveItemIDs(),
			"expires_at": collection.ExpiresAt,
		},
		"client": map[string]interface{}{
			"name":     client.Name,
			"initials": models.ClientInitials(client.Name),
			"status":   client.Status,
			"can_edit": client.CanEdit() && collection.IsLive(),
		},
		"selection": selection,
	})
}

// SaveSelection stores a client's selection; an approve/order intent
// finalizes it
// POST /proof/:id/:ident
func (h *ProofHandler) SaveSelection(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}
	ident := c.Param("ident")

	var in service.SaveInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", err))
	}
	if in.Intent == "" {
		in.Intent = service.IntentSave
	}

	selection, err := h.container.Selection.Save(c.Request().Context(), id, ident, in)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"saved":     true,
		"finalized": in.Intent.IsFinal(),
		"selection": selection,
	})
}
