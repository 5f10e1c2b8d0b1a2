package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shuttleops/movesync/common/errs"
	"github.com/shuttleops/movesync/common/logger"
	"github.com/shuttleops/movesync/common/models"
)

// AuditReader reads the move log
type AuditReader interface {
	ListByMove(ctx context.Context, moveID string) ([]*models.MoveLogEntry, error)
	ListByDriver(ctx context.Context, driverID string, limit int) ([]*models.MoveLogEntry, error)
}

// HistoryHandler serves the audit trail
type HistoryHandler struct {
	audit  AuditReader
	logger *logger.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(audit AuditReader, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{audit: audit, logger: log}
}

// MoveHistory lists every transition recorded for a move, oldest first
// GET /api/v1/moves/:move_id/history
func (h *HistoryHandler) MoveHistory(c echo.Context) error {
	moveID := c.Param("move_id")
	entries, err := h.audit.ListByMove(requestContext(c), moveID)
	if err != nil {
		return respondError(c, h.logger, errs.New(errs.KindUnavailable, "", err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"move_id": moveID,
		"entries": entries,
		"count":   len(entries),
	})
}

// DriverHistory lists a driver's recent transitions, newest first
// GET /api/v1/drivers/:driver_id/history?limit=50
func (h *HistoryHandler) DriverHistory(c echo.Context) error {
	driverID := c.Param("driver_id")
	if !models.ValidDriverID(driverID) {
		return respondError(c, h.logger, errs.New(errs.KindInvalidFormat, "", nil))
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "limit must be between 1 and 500",
			})
		}
		limit = n
	}

	entries, err := h.audit.ListByDriver(requestContext(c), driverID, limit)
	if err != nil {
		return respondError(c, h.logger, errs.New(errs.KindUnavailable, "", err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"driver_id": driverID,
		"entries":   entries,
		"count":     len(entries),
	})
}
