package handlers

import (
	"net/http"

	"github.com/aperturelab/proofing/cmd/proofing/container"
	"github.com/labstack/echo/v4"
)

// ClientHandler handles the studio-facing client registry endpoints
type ClientHandler struct {
	container *container.Container
}

// NewClientHandler creates a new client handler
func NewClientHandler(c *container.Container) *ClientHandler {
	return &ClientHandler{container: c}
}

type addClientRequest struct {
	Name  string            `json:"name"`
	Email string            `json:"email"`
	Extra map[string]string `json:"extra"`
}

// AddClient registers a recipient and returns their access token
// POST /api/v1/collections/:id/clients
func (h *ClientHandler) AddClient(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	var req addClientRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", err))
	}

	client, err := h.container.Registry.AddClient(c.Request().Context(), id, req.Name, req.Email, req.Extra)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, client)
}

// ListClients lists a collection's recipients with their selection counts
// GET /api/v1/collections/:id/clients
func (h *ClientHandler) ListClients(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	clients, err := h.container.Registry.Clients(ctx, id)
	if err != nil {
		return respondError(c, err)
	}

	type entry struct {
		Ident          string `json:"ident"`
		Name           string `json:"name"`
		Email          string `json:"email,omitempty"`
		Status         string `json:"status"`
		SelectionCount int    `json:"selection_count"`
	}
	out := make([]entry, 0, len(clients))
	for _, client := range clients {
		count, err := h.container.Selection.SelectionCount(ctx, id, client.Ident)
		if err != nil {
			return respondError(c, err)
		}
		out = append(out, entry{
			Ident:          client.Ident,
			Name:           client.Name,
			Email:          client.Email,
			Status:         string(client.Status),
			SelectionCount: count,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"clients": out})
}

// RemoveClient drops a recipient and purges their selection
// DELETE /api/v1/collections/:id/clients/:ident
func (h *ClientHandler) RemoveClient(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	if err := h.container.Registry.RemoveClient(c.Request().Context(), id, c.Param("ident")); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
