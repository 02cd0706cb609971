package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aperturelab/proofing/cmd/proofing/container"
	"github.com/aperturelab/proofing/cmd/proofing/repository"
	"github.com/aperturelab/proofing/cmd/proofing/routes"
	"github.com/aperturelab/proofing/common/bootstrap"
	"github.com/aperturelab/proofing/common/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, queue, cache, telemetry)
	components, err := bootstrap.Setup(ctx, "proofing",
		bootstrap.WithDBInitHook(repository.InitSchema),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap proofing service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Initialize Echo server
	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, serviceContainer)
	registerRoutes(e, serviceContainer)

	startBackground(ctx, serviceContainer)

	startServer(e, serviceContainer)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ec echo.Context) error {
		if err := c.Components.Health(ec.Request().Context()); err != nil {
			return ec.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return ec.JSON(200, map[string]string{
			"status":  "ok",
			"service": "proofing",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, c *container.Container) {
	routes.RegisterCollectionRoutes(e, c)
	routes.RegisterProofRoutes(e, c)
	routes.RegisterNoticeRoutes(e, c)
}

// startBackground launches the notification dispatcher and the sweepers
func startBackground(ctx context.Context, c *container.Container) {
	log := c.Components.Logger

	if err := c.Dispatcher.Start(ctx); err != nil {
		log.Error("failed to start notification dispatcher", "error", err)
		os.Exit(1)
	}

	if c.Companion.Enabled() && !c.Companion.LicenseValid(ctx) {
		log.Warn("companion license check failed, continuing without a valid license")
	}
}

// startServer starts the HTTP server with graceful shutdown, wiring the
// sweepers to the same lifetime
func startServer(e *echo.Echo, c *container.Container) {
	components := c.Components
	sweepCtx, cancel := context.WithCancel(context.Background())

	go c.ExpireSweeper.Run(sweepCtx)
	if components.Config.Proofing.ReminderEnabled {
		go c.ReminderSweeper.Run(sweepCtx)
	}

	srv := server.New("proofing", components.Config.Service.Port, e, components.Logger)
	srv.OnShutdown(cancel)

	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		cancel()
		os.Exit(1)
	}
	cancel()
}
