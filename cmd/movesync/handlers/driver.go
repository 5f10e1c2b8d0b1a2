package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shuttleops/movesync/cmd/movesync/middleware"
	"github.com/shuttleops/movesync/cmd/movesync/service"
	"github.com/shuttleops/movesync/common/logger"
	"github.com/shuttleops/movesync/common/models"
)

// Assigner is the engine surface the driver routes use
type Assigner interface {
	AssignCurrent(ctx context.Context, actor models.Actor, driverID, moveID, bobtailDestination string) (*service.Result, error)
	AssignNext(ctx context.Context, actor models.Actor, driverID, moveID, bobtailDestination string) (*service.Result, error)
	UnassignCurrent(ctx context.Context, actor models.Actor, driverID string) (*service.Result, error)
	UnassignNext(ctx context.Context, actor models.Actor, driverID string) (*service.Result, error)
	AdvanceStatus(ctx context.Context, actor models.Actor, driverID string, action service.StatusAction) (*service.Result, error)
	AttachPicture(ctx context.Context, actor models.Actor, driverID string, side models.PictureSide, ref string) (*service.Result, error)
}

// BoardLoader builds the driver page
type BoardLoader interface {
	Load(ctx context.Context, actor models.Actor, driverID string) (*service.DriverView, error)
}

// CompletedLister lists a driver's finished moves
type CompletedLister interface {
	ListByDriver(ctx context.Context, driverID string, limit int) ([]*models.CompletedMove, error)
}

// DriverHandler handles driver board and assignment requests
type DriverHandler struct {
	engine    Assigner
	board     BoardLoader
	completed CompletedLister
	logger    *logger.Logger
}

// NewDriverHandler creates a new driver handler
func NewDriverHandler(engine Assigner, board BoardLoader, completed CompletedLister, log *logger.Logger) *DriverHandler {
	return &DriverHandler{
		engine:    engine,
		board:     board,
		completed: completed,
		logger:    log,
	}
}

type assignRequest struct {
	MoveID             string `json:"move_id" validate:"required,max=64"`
	BobtailDestination string `json:"bobtail_destination" validate:"omitempty,max=128"`
}

type statusRequest struct {
	Action string `json:"action" validate:"required"`
}

type pictureRequest struct {
	Side string `json:"side" validate:"required,oneof=pickup dropoff"`
	Ref  string `json:"ref" validate:"required,max=1024"`
}

// GetDriver returns the driver board
// GET /api/v1/drivers/:driver_id
func (h *DriverHandler) GetDriver(c echo.Context) error {
	view, err := h.board.Load(requestContext(c), middleware.GetActor(c), c.Param("driver_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, view)
}

// AssignCurrent assigns the driver's current move
// POST /api/v1/drivers/:driver_id/current
func (h *DriverHandler) AssignCurrent(c echo.Context) error {
	var req assignRequest
	if fields, err := bind(c, &req); err != nil {
		return respondInvalid(c, fields, err)
	}

	res, err := h.engine.AssignCurrent(requestContext(c), middleware.GetActor(c), c.Param("driver_id"), req.MoveID, req.BobtailDestination)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// UnassignCurrent releases the driver's current move
// DELETE /api/v1/drivers/:driver_id/current
func (h *DriverHandler) UnassignCurrent(c echo.Context) error {
	res, err := h.engine.UnassignCurrent(requestContext(c), middleware.GetActor(c), c.Param("driver_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// AssignNext pre-stages the driver's next move
// POST /api/v1/drivers/:driver_id/next
func (h *DriverHandler) AssignNext(c echo.Context) error {
	var req assignRequest
	if fields, err := bind(c, &req); err != nil {
		return respondInvalid(c, fields, err)
	}

	res, err := h.engine.AssignNext(requestContext(c), middleware.GetActor(c), c.Param("driver_id"), req.MoveID, req.BobtailDestination)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// UnassignNext releases the driver's next move
// DELETE /api/v1/drivers/:driver_id/next
func (h *DriverHandler) UnassignNext(c echo.Context) error {
	res, err := h.engine.UnassignNext(requestContext(c), middleware.GetActor(c), c.Param("driver_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// AdvanceStatus applies a status action to the current move
// POST /api/v1/drivers/:driver_id/status
func (h *DriverHandler) AdvanceStatus(c echo.Context) error {
	var req statusRequest
	if fields, err := bind(c, &req); err != nil {
		return respondInvalid(c, fields, err)
	}

	action, err := service.ParseStatusAction(req.Action)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	res, err := h.engine.AdvanceStatus(requestContext(c), middleware.GetActor(c), c.Param("driver_id"), action)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// AttachPicture stores a picture reference on the current move
// POST /api/v1/drivers/:driver_id/pictures
func (h *DriverHandler) AttachPicture(c echo.Context) error {
	var req pictureRequest
	if fields, err := bind(c, &req); err != nil {
		return respondInvalid(c, fields, err)
	}

	res, err := h.engine.AttachPicture(requestContext(c), middleware.GetActor(c), c.Param("driver_id"), models.PictureSide(req.Side), req.Ref)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ListCompleted lists the driver's completed moves, newest first
// GET /api/v1/drivers/:driver_id/completed?limit=20
func (h *DriverHandler) ListCompleted(c echo.Context) error {
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "limit must be between 1 and 200",
			})
		}
		limit = n
	}

	driverID := c.Param("driver_id")
	if !models.ValidDriverID(driverID) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Driver ID doesn't match format.",
		})
	}

	moves, err := h.completed.ListByDriver(requestContext(c), driverID, limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"driver_id": driverID,
		"moves":     moves,
		"count":     len(moves),
	})
}
