package routes

import (
	"github.com/aperturelab/proofing/cmd/proofing/container"
	"github.com/aperturelab/proofing/cmd/proofing/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterNoticeRoutes registers the studio notice routes
func RegisterNoticeRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewNoticeHandler(c)

	g := e.Group("/api/v1/notices")
	{
		g.GET("", h.ListNotices)
		g.DELETE("", h.DismissNotices)
	}
}
