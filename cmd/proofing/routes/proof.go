package routes

import (
	"github.com/aperturelab/proofing/cmd/proofing/container"
	"github.com/aperturelab/proofing/cmd/proofing/handlers"
	"github.com/aperturelab/proofing/common/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterProofRoutes registers the public client-facing routes.
// The whole group sits behind the service-wide limit; saves are
// additionally rate limited per ident so a runaway client cannot
// hammer the endpoint.
func RegisterProofRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewProofHandler(c)

	cfg := c.Components.Config.Proofing
	g := e.Group("/proof", middleware.GlobalRateLimitMiddleware(c.RateLimiter, cfg.GlobalRateLimit))
	{
		g.GET("/:id/:ident", h.GetProofView)
		g.POST("/:id/:ident", h.SaveSelection,
			middleware.IdentRateLimitMiddleware(c.RateLimiter, cfg.SaveRateLimit, cfg.SaveRateWindowSec))
	}
}
