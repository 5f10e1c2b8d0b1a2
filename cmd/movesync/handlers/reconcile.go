package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shuttleops/movesync/cmd/movesync/service"
	"github.com/shuttleops/movesync/common/logger"
)

// DriftReporter produces a reconciliation report
type DriftReporter interface {
	Reconcile(ctx context.Context) (*service.Report, error)
}

// ReconcileHandler serves the drift report
type ReconcileHandler struct {
	reconciler DriftReporter
	logger     *logger.Logger
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(r DriftReporter, log *logger.Logger) *ReconcileHandler {
	return &ReconcileHandler{reconciler: r, logger: log}
}

// Report compares open moves with the log and the carriers
// GET /api/v1/reconcile
func (h *ReconcileHandler) Report(c echo.Context) error {
	report, err := h.reconciler.Reconcile(requestContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, report)
}
