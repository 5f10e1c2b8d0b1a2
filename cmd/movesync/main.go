package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/shuttleops/movesync/cmd/movesync/container"
	"github.com/shuttleops/movesync/cmd/movesync/handlers"
	"github.com/shuttleops/movesync/cmd/movesync/middleware"
	"github.com/shuttleops/movesync/cmd/movesync/routes"
	"github.com/shuttleops/movesync/common/bootstrap"
	"github.com/shuttleops/movesync/common/db"
	"github.com/shuttleops/movesync/common/repository"
	"github.com/shuttleops/movesync/common/server"
)

const serviceName = "movesync"

func main() {
	ctx := context.Background()

	// Bootstrap common components (config, logger, DB, redis, telemetry)
	components, err := bootstrap.Setup(ctx, serviceName,
		bootstrap.WithDBInitHook(func(database *db.DB) error {
			migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return repository.Migrate(migrateCtx, database)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap %s: %v\n", serviceName, err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		components.Logger.Error("failed to initialize service container", "error", err)
		components.Shutdown(ctx)
		os.Exit(1)
	}

	// Warm the index so the first request does not pay for the full fetch
	if _, err := serviceContainer.Mirror.Refresh(ctx, true); err != nil {
		components.Logger.Warn("initial move log refresh failed", "error", err)
	}

	e := setupEcho()
	setupMiddleware(e, components)
	setupHealthCheck(e, components)
	registerRoutes(e, serviceContainer)

	srv := server.New(serviceName, components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(ctx); err != nil {
		components.Logger.Error("server error", "error", err)
		components.Shutdown(ctx)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, components *bootstrap.Components) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			components.Logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID)
			return nil
		},
	}))
	e.Use(middleware.Prometheus(components.Metrics))
	e.Use(middleware.ExtractActor())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": serviceName,
				"error":   err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": serviceName,
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterDriverRoutes(e, serviceContainer)
	routes.RegisterMoveRoutes(e, serviceContainer)
	routes.RegisterReconcileRoutes(e, serviceContainer)
}
