package handlers

import (
	"net/http"

	"github.com/aperturelab/proofing/cmd/proofing/container"
	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/aperturelab/proofing/cmd/proofing/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CollectionHandler handles the studio-facing collection endpoints
type CollectionHandler struct {
	container *container.Container
}

// NewCollectionHandler creates a new collection handler
func NewCollectionHandler(c *container.Container) *CollectionHandler {
	return &CollectionHandler{container: c}
}

type createCollectionRequest struct {
	Title   string   `json:"title"`
	ItemIDs []string `json:"item_ids"`
}

// CreateCollection creates a new draft collection
// POST /api/v1/collections
func (h *CollectionHandler) CreateCollection(c echo.Context) error {
	var req createCollectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", err))
	}

	collection, err := h.container.Lifecycle.CreateCollection(c.Request().Context(), req.Title, req.ItemIDs)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, collection)
}

// GetCollection retrieves a collection
// GET /api/v1/collections/:id
func (h *CollectionHandler) GetCollection(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	collection, err := h.container.Lifecycle.Collection(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, collection)
}

// ListCollections lists collections, optionally filtered by status
// GET /api/v1/collections?status=sent
func (h *CollectionHandler) ListCollections(c echo.Context) error {
	status := models.CollectionStatus(c.QueryParam("status"))

	collections, err := h.container.Lifecycle.Collections(c.Request().Context(), status)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"collections": collections,
	})
}

type updateItemsRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// UpdateItems replaces a collection's item set and prunes selections
// that reference removed items
// PUT /api/v1/collections/:id/items
func (h *CollectionHandler) UpdateItems(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	var req updateItemsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", err))
	}

	ctx := c.Request().Context()
	collection, err := h.container.Lifecycle.UpdateItems(ctx, id, req.ItemIDs)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.container.Selection.PruneRemovedItems(ctx, id); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, collection)
}

type publishRequest struct {
	ExpirationDays *int `json:"expiration_days"`
}

// Publish takes a draft live
// POST /api/v1/collections/:id/publish
func (h *CollectionHandler) Publish(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("bad_request", err))
	}
	days := -1
	if req.ExpirationDays != nil {
		days = *req.ExpirationDays
	}

	collection, err := h.container.Lifecycle.Publish(c.Request().Context(), id, days)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, collection)
}

// Close ends proofing manually
// POST /api/v1/collections/:id/close
func (h *CollectionHandler) Close(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	if err := h.container.Lifecycle.Close(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": string(models.StatusClosedManually)})
}

// Reopen reverts a closed collection to sent
// POST /api/v1/collections/:id/reopen
func (h *CollectionHandler) Reopen(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	if err := h.container.Lifecycle.Reopen(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": string(models.StatusSent)})
}

// ReopenForClient lets one client edit again
// POST /api/v1/collections/:id/clients/:ident/reopen
func (h *CollectionHandler) ReopenForClient(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	if err := h.container.Lifecycle.ReopenForClient(c.Request().Context(), id, c.Param("ident")); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": string(models.StatusSent)})
}

// RevertToDraft pulls a live collection back to draft
// POST /api/v1/collections/:id/revert
func (h *CollectionHandler) RevertToDraft(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	if err := h.container.Lifecycle.RevertToDraft(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": string(models.StatusDraft)})
}

// DeleteCollection removes a collection and everything attached to it
// DELETE /api/v1/collections/:id
func (h *CollectionHandler) DeleteCollection(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	if err := h.container.Lifecycle.DeleteCollection(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// GetHistory returns the collection's event log, newest first
// GET /api/v1/collections/:id/history
func (h *CollectionHandler) GetHistory(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	events, err := h.container.History.Events(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	type entry struct {
		Time   int64    `json:"time"`
		Event  string   `json:"event"`
		Pretty string   `json:"pretty"`
		Data   string   `json:"data,omitempty"`
		Meta   []string `json:"meta,omitempty"`
	}
	out := make([]entry, 0, len(events))
	for _, e := range events {
		out = append(out, entry{
			Time:   e.Time,
			Event:  string(e.Event),
			Pretty: models.PrettyEvent(e.Event),
			Data:   e.Data,
			Meta:   e.Meta,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"history": out})
}

// GetLastEvent returns the newest log entry, falling back to a
// synthetic last-modified event for collections without history
// GET /api/v1/collections/:id/history/last
func (h *CollectionHandler) GetLastEvent(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	event, err := h.container.History.LastEvent(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, event)
}

// GetSelectedItems aggregates the saved selections
// GET /api/v1/collections/:id/selected-items?mode=by_all
func (h *CollectionHandler) GetSelectedItems(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	mode := service.AggregationMode(c.QueryParam("mode"))
	if mode == "" {
		mode = service.AtLeastOnce
	}
	if mode != service.AtLeastOnce && mode != service.ByAll {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error":   "bad_request",
			"message": "mode must be at_least_once or by_all",
		})
	}

	items, err := h.container.Selection.SelectedItems(c.Request().Context(), id, mode)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []string{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"mode":     mode,
		"item_ids": items,
	})
}

// GetSummary renders the plain-text proof summary
// GET /api/v1/collections/:id/summary
func (h *CollectionHandler) GetSummary(c echo.Context) error {
	id, err := collectionID(c)
	if err != nil {
		return err
	}

	summary, err := h.container.Summary.ProofSummary(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.String(http.StatusOK, summary)
}

// collectionID parses the :id path parameter
func collectionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid collection id")
	}
	return id, nil
}
