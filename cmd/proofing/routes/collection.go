package routes

import (
	"github.com/aperturelab/proofing/cmd/proofing/container"
	"github.com/aperturelab/proofing/cmd/proofing/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterCollectionRoutes registers the studio-facing collection routes
func RegisterCollectionRoutes(e *echo.Echo, c *container.Container) {
	ch := handlers.NewCollectionHandler(c)
	cl := handlers.NewClientHandler(c)

	g := e.Group("/api/v1/collections")
	{
		g.POST("", ch.CreateCollection)
		g.GET("", ch.ListCollections)
		g.GET("/:id", ch.GetCollection)
		g.DELETE("/:id", ch.DeleteCollection)
		g.PUT("/:id/items", ch.UpdateItems)

		g.POST("/:id/publish", ch.Publish)
		g.POST("/:id/close", ch.Close)
		g.POST("/:id/reopen", ch.Reopen)
		g.POST("/:id/revert", ch.RevertToDraft)

		g.GET("/:id/history", ch.GetHistory)
		g.GET("/:id/history/last", ch.GetLastEvent)
		g.GET("/:id/selected-items", ch.GetSelectedItems)
		g.GET("/:id/summary", ch.GetSummary)

		g.POST("/:id/clients", cl.AddClient)
		g.GET("/:id/clients", cl.ListClients)
		g.DELETE("/:id/clients/:ident", cl.RemoveClient)
		g.POST("/:id/clients/:ident/reopen", ch.ReopenForClient)
	}
}
