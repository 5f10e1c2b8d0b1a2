package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/shuttleops/movesync/cmd/movesync/container"
	"github.com/shuttleops/movesync/cmd/movesync/handlers"
	"github.com/shuttleops/movesync/cmd/movesync/middleware"
)

// RegisterMoveRoutes registers the move log and open move routes
func RegisterMoveRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewMoveHandler(c.Mirror, c.OpenMoveRepo, c.Components.Logger)
	refresh := append([]echo.MiddlewareFunc{middleware.RequireActor()}, c.Limits(c.RefreshPolicy)...)

	moves := e.Group("/api/v1/moves")
	{
		moves.GET("", h.ListMoves)                    // GET /api/v1/moves
		moves.GET("/:move_id", h.GetMove)             // GET /api/v1/moves/M-1042
		moves.POST("/refresh", h.Refresh, refresh...) // POST /api/v1/moves/refresh
	}

	open := e.Group("/api/v1/open-moves")
	{
		open.GET("/:driver_id", h.ListOpenMoves)        // GET /api/v1/open-moves/BM-0001
		open.GET("/:driver_id/:move_id", h.GetOpenMove) // GET /api/v1/open-moves/BM-0001/M-1042
	}
}

// RegisterReconcileRoutes registers the drift report and audit history, admin only
func RegisterReconcileRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewReconcileHandler(c.Reconciler, c.Components.Logger)
	hh := handlers.NewHistoryHandler(c.MoveLogRepo, c.Components.Logger)
	admin := middleware.RequireAdmin()

	e.GET("/api/v1/reconcile", h.Report, admin)                          // GET /api/v1/reconcile
	e.GET("/api/v1/moves/:move_id/history", hh.MoveHistory, admin)       // GET /api/v1/moves/M-1042/history
	e.GET("/api/v1/drivers/:driver_id/history", hh.DriverHistory, admin) // GET /api/v1/drivers/BM-0001/history
}
