package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/shuttleops/movesync/cmd/movesync/container"
	"github.com/shuttleops/movesync/cmd/movesync/handlers"
	"github.com/shuttleops/movesync/cmd/movesync/middleware"
)

// RegisterDriverRoutes registers the driver board and assignment routes
func RegisterDriverRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewDriverHandler(c.Engine, c.Board, c.CompletedMoveRepo, c.Components.Logger)

	drivers := e.Group("/api/v1/drivers")
	{
		drivers.GET("/:driver_id", h.GetDriver)               // GET /api/v1/drivers/BM-0001
		drivers.GET("/:driver_id/completed", h.ListCompleted) // GET /api/v1/drivers/BM-0001/completed
	}

	guards := append([]echo.MiddlewareFunc{middleware.RequireActor()}, c.Limits(c.MutationPolicy)...)
	mutating := e.Group("/api/v1/drivers", guards...)
	{
		mutating.POST("/:driver_id/current", h.AssignCurrent)     // POST /api/v1/drivers/BM-0001/current
		mutating.DELETE("/:driver_id/current", h.UnassignCurrent) // DELETE /api/v1/drivers/BM-0001/current
		mutating.POST("/:driver_id/next", h.AssignNext)           // POST /api/v1/drivers/BM-0001/next
		mutating.DELETE("/:driver_id/next", h.UnassignNext)       // DELETE /api/v1/drivers/BM-0001/next
		mutating.POST("/:driver_id/status", h.AdvanceStatus)      // POST /api/v1/drivers/BM-0001/status
		mutating.POST("/:driver_id/pictures", h.AttachPicture)    // POST /api/v1/drivers/BM-0001/pictures
	}
}
