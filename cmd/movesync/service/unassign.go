package service

import (
	"context"
	"fmt"

	"github.com/shuttleops/movesync/common/errs"
	"github.com/shuttleops/movesync/common/models"
)

// Detailed status written to a row released by its driver
const detailUnassigned = "Container Has been unassigned"

// UnassignCurrent releases the driver's current move
func (e *Engine) UnassignCurrent(ctx context.Context, actor models.Actor, driverID string) (res *Result, err error) {
	defer func() { e.observe(OpUnassignCurrent, err) }()

	ctx, s, err := e.begin(ctx, actor, driverID)
	if err != nil {
		return nil, err
	}
	return e.unassign(ctx, s, models.SlotCurrent)
}

// UnassignNext releases the driver's pre-staged next move
func (e *Engine) UnassignNext(ctx context.Context, actor models.Actor, driverID string) (res *Result, err error) {
	defer func() { e.observe(OpUnassignNext, err) }()

	ctx, s, err := e.begin(ctx, actor, driverID)
	if err != nil {
		return nil, err
	}
	return e.unassign(ctx, s, models.SlotNext)
}

// unassign clears the log row, drops the open move, then tells the carrier.
// A slot holding only STANDBY is cleared at the carrier alone.
func (e *Engine) unassign(ctx context.Context, s *session, slot models.Slot) (*Result, error) {
	action, carrierMoveID, detail := OpUnassignCurrent, s.snapshot.CurrentMoveID, ""
	if slot == models.SlotNext {
		action, carrierMoveID, detail = OpUnassignNext, s.snapshot.NextMoveID, models.DetailIsNext
	}

	open, err := e.findOpen(ctx, s.driver.ID, "", slot)
	if err != nil {
		return nil, err
	}

	moveID := carrierMoveID
	if open != nil {
		moveID = open.MoveID
	}
	if moveID == "" {
		return noop(action, s.driver.ID), nil
	}

	sg := &saga{action: action}
	log := s.log.WithMove(moveID)

	move, hasRow := e.releasableRow(s, open, moveID)
	if hasRow {
		update := models.RowUpdate{
			DriverID:       models.Str(""),
			TruckNumber:    models.Str(""),
			Status:         models.Str(""),
			DetailedStatus: models.Str(detailUnassigned),
		}
		if open != nil && open.CarrierAssigned {
			update.CarrierCode = models.Str("")
		}

		if err := e.log.UpdateRow(ctx, move.RowID, update); err != nil {
			return nil, errs.New(errs.KindUnavailable, "", err)
		}
		released := update.Apply(move)
		sg.patch = rowPatch(move, released)
		sg.done(models.StepSheet)
		e.mirror.Publish(released)
	}

	if open != nil {
		if err := e.open.Delete(ctx, open.ID); err != nil {
			if !hasRow {
				return nil, errs.New(errs.KindUnavailable, "", fmt.Errorf("failed to delete open move: %w", err))
			}
			sg.fail(models.StepStore, err)
		} else {
			sg.done(models.StepStore)
		}
	}

	if slot == models.SlotCurrent {
		err = e.carriers.UnassignCurrent(ctx, s.driver)
	} else {
		err = e.carriers.UnassignNext(ctx, s.driver)
	}
	switch {
	case err != nil && sg.step == models.StepNone && !sg.broken:
		// nothing was written yet
		return nil, err
	case err != nil:
		sg.fail(models.StepCarrier, err)
	default:
		sg.done(models.StepCarrier)
	}

	e.record(ctx, s, sg, models.ActionUnassign, moveID, detail, slot, "")
	log.Info("move unassigned", "slot", slot, "saga_step", sg.step)

	return e.result(s, sg, moveID, slot, ""), nil
}

// releasableRow finds the log row to clear. Rows claimed by another driver
// are never touched.
func (e *Engine) releasableRow(s *session, open *models.OpenMove, moveID string) (models.Move, bool) {
	if models.IsSynthetic(moveID) {
		return models.Move{}, false
	}

	move, ok := s.index.Get(moveID)
	if !ok {
		if open == nil || open.RowID == nil {
			return models.Move{}, false
		}
		move = models.Move{ID: moveID, RowID: *open.RowID}
		return move, true
	}
	if move.Claimed() && move.DriverID != s.driver.ID {
		return models.Move{}, false
	}
	if open != nil && open.RowID != nil {
		move.RowID = *open.RowID
	}
	return move, true
}
