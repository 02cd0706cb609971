package handlers

import (
	"net/http"

	"github.com/aperturelab/proofing/cmd/proofing/container"
	"github.com/labstack/echo/v4"
)

// NoticeHandler exposes pending studio notices
type NoticeHandler struct {
	container *container.Container
}

// NewNoticeHandler creates a new notice handler
func NewNoticeHandler(c *container.Container) *NoticeHandler {
	return &NoticeHandler{container: c}
}

// ListNotices returns pending notices
// GET /api/v1/notices
func (h *NoticeHandler) ListNotices(c echo.Context) error {
	notices, err := h.container.Notices.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"notices": notices})
}

// DismissNotices clears pending notices, unblocking publishing
// DELETE /api/v1/notices
func (h *NoticeHandler) DismissNotices(c echo.Context) error {
	if err := h.container.Notices.Dismiss(c.Request().Context()); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
