package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shuttleops/movesync/common/errs"
	"github.com/shuttleops/movesync/common/logger"
	"github.com/shuttleops/movesync/common/models"
	"github.com/shuttleops/movesync/common/moveindex"
	"github.com/shuttleops/movesync/common/repository"
)

// Index exposes the mirrored move log
type Index interface {
	Snapshot() *moveindex.Snapshot
	Refresh(ctx context.Context, force bool) (*moveindex.Snapshot, error)
}

// OpenMoveFinder looks up open moves
type OpenMoveFinder interface {
	Find(ctx context.Context, driverID, moveID string, slot models.Slot) (*models.OpenMove, error)
	ListByDriver(ctx context.Context, driverID string) ([]*models.OpenMove, error)
}

// MoveHandler handles move log and open move requests
type MoveHandler struct {
	index  Index
	open   OpenMoveFinder
	logger *logger.Logger
}

// NewMoveHandler creates a new move handler
func NewMoveHandler(index Index, open OpenMoveFinder, log *logger.Logger) *MoveHandler {
	return &MoveHandler{
		index:  index,
		open:   open,
		logger: log,
	}
}

// ListMoves lists the mirrored moves in log order
// GET /api/v1/moves?customer=ACME&origin=Yard&unclaimed=true
func (h *MoveHandler) ListMoves(c echo.Context) error {
	snap := h.index.Snapshot()
	customer := c.QueryParam("customer")
	origin := c.QueryParam("origin")
	unclaimed := c.QueryParam("unclaimed") == "true"

	moves := make([]models.Move, 0, snap.Len())
	for _, m := range snap.Moves() {
		if customer != "" && m.Customer != customer {
			continue
		}
		if origin != "" && m.Origin != origin {
			continue
		}
		if unclaimed && m.Claimed() {
			continue
		}
		moves = append(moves, m)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"version": snap.Version(),
		"moves":   moves,
		"count":   len(moves),
	})
}

// GetMove returns one mirrored move
// GET /api/v1/moves/:move_id
func (h *MoveHandler) GetMove(c echo.Context) error {
	m, ok := h.index.Snapshot().Get(c.Param("move_id"))
	if !ok {
		return respondError(c, h.logger, errs.New(errs.KindUnknownMove, "", nil))
	}
	return c.JSON(http.StatusOK, m)
}

// Refresh forces a rebuild of the mirror
// POST /api/v1/moves/refresh
func (h *MoveHandler) Refresh(c echo.Context) error {
	snap, err := h.index.Refresh(requestContext(c), true)
	if err != nil {
		return respondError(c, h.logger, errs.New(errs.KindUnavailable, "Move log unavailable, please report this", err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"version": snap.Version(),
		"count":   snap.Len(),
	})
}

// GetOpenMove returns a driver's open move
// GET /api/v1/open-moves/:driver_id/:move_id?slot=NEXT
func (h *MoveHandler) GetOpenMove(c echo.Context) error {
	slot := models.SlotCurrent
	switch strings.ToUpper(c.QueryParam("slot")) {
	case "", string(models.SlotCurrent):
	case string(models.SlotNext):
		slot = models.SlotNext
	default:
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "slot must be CURRENT or NEXT",
		})
	}

	m, err := h.open.Find(requestContext(c), c.Param("driver_id"), c.Param("move_id"), slot)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Open move not found",
		})
	}
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, m)
}

// ListOpenMoves returns a driver's open moves, current slot first
// GET /api/v1/open-moves/:driver_id
func (h *MoveHandler) ListOpenMoves(c echo.Context) error {
	driverID := c.Param("driver_id")
	if !models.ValidDriverID(driverID) {
		return respondError(c, h.logger, errs.New(errs.KindInvalidFormat, "", nil))
	}

	moves, err := h.open.ListByDriver(requestContext(c), driverID)
	if err != nil {
		return respondError(c, h.logger, errs.New(errs.KindUnavailable, "", err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"driver_id":  driverID,
		"open_moves": moves,
		"count":      len(moves),
	})
}
