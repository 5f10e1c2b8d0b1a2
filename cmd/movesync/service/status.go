package service

import (
	"context"
	"fmt"

	"github.com/shuttleops/movesync/common/clients"
	"github.com/shuttleops/movesync/common/errs"
	"github.com/shuttleops/movesync/common/models"
)

// StatusAction is an operator-requested status change on the current move
type StatusAction string

const (
	ActionConfirmCheckout  StatusAction = "CONFIRM_CHECKOUT"
	ActionConfirmArrival   StatusAction = "CONFIRM_ARRIVAL"
	ActionIssueDamaged     StatusAction = "ISSUE_DAMAGED"
	ActionIssueNotFound    StatusAction = "ISSUE_NOT_FOUND"
	ActionForceToCompleted StatusAction = "FORCE_TO_COMPLETED"
	ActionUnassign         StatusAction = "UNASSIGN"
)

// transition is one row of the status table
type transition struct {
	from   []models.MoveStatus
	to     models.MoveStatus
	sheet  models.RowUpdate
	audit  models.LogAction
	remove bool
}

var transitions = map[StatusAction]transition{
	ActionConfirmCheckout: {
		from: []models.MoveStatus{models.StatusSearching},
		to:   models.StatusOTW,
		sheet: models.RowUpdate{
			Status:         models.Str(models.SheetStatusOTW),
			DetailedStatus: models.Str("Container Checked out"),
		},
		audit: models.ActionGateOut,
	},
	ActionConfirmArrival: {
		from: []models.MoveStatus{models.StatusOTW},
		to:   models.StatusDroppingOff,
		sheet: models.RowUpdate{
			DetailedStatus: models.Str("Confirmed Arrival at destination"),
		},
		audit: models.ActionGateIn,
	},
	ActionIssueDamaged: {
		from: []models.MoveStatus{models.StatusSearching, models.StatusOTW},
		to:   models.StatusIssue,
		sheet: models.RowUpdate{
			Status:   models.Str(models.SheetStatusIssue),
			Comments: models.Str("Container Damaged"),
		},
		audit:  models.ActionIssue,
		remove: true,
	},
	ActionIssueNotFound: {
		from: []models.MoveStatus{models.StatusSearching, models.StatusOTW},
		to:   models.StatusIssue,
		sheet: models.RowUpdate{
			Status:   models.Str(models.SheetStatusIssue),
			Comments: models.Str("Container Not Found"),
		},
		audit:  models.ActionIssue,
		remove: true,
	},
	ActionForceToCompleted: {
		from: []models.MoveStatus{models.StatusSearching, models.StatusOTW, models.StatusDroppingOff},
		to:   models.StatusDelivered,
		sheet: models.RowUpdate{
			Status:         models.Str(models.SheetStatusCompleted),
			DetailedStatus: models.Str("Forced to completed."),
		},
		audit:  models.ActionCompleted,
		remove: true,
	},
}

func (t transition) allows(status models.MoveStatus) bool {
	for _, s := range t.from {
		if s == status {
			return true
		}
	}
	return false
}

// ParseStatusAction validates an action name
func ParseStatusAction(s string) (StatusAction, error) {
	a := StatusAction(s)
	if a == ActionUnassign {
		return a, nil
	}
	if _, ok := transitions[a]; !ok {
		return "", errs.New(errs.KindInvalidFormat, "Unknown status action", nil)
	}
	return a, nil
}

// AdvanceStatus applies action to the driver's current move. A driver with
// no current move gets an accepted no-op.
func (e *Engine) AdvanceStatus(ctx context.Context, actor models.Actor, driverID string, action StatusAction) (res *Result, err error) {
	defer func() { e.observe(OpAdvanceStatus, err) }()

	if _, err := ParseStatusAction(string(action)); err != nil {
		return nil, err
	}

	ctx, s, err := e.begin(ctx, actor, driverID)
	if err != nil {
		return nil, err
	}

	if action == ActionUnassign {
		return e.unassign(ctx, s, models.SlotCurrent)
	}

	current, err := e.currentOpen(ctx, s)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return noop(OpAdvanceStatus, s.driver.ID), nil
	}

	t := transitions[action]
	if !t.allows(current.Status) {
		return nil, errs.New(errs.KindConflict,
			fmt.Sprintf("Can't apply %s to a move in %s", action, current.Status), nil)
	}

	sg := &saga{action: OpAdvanceStatus}
	log := s.log.WithMove(current.MoveID)

	if current.RowID != nil {
		move, ok := s.index.Get(current.MoveID)
		if !ok {
			move = models.Move{ID: current.MoveID, RowID: *current.RowID}
		}
		if err := e.log.UpdateRow(ctx, *current.RowID, t.sheet); err != nil {
			return nil, errs.New(errs.KindUnavailable, "", err)
		}
		after := t.sheet.Apply(move)
		sg.patch = rowPatch(move, after)
		sg.done(models.StepSheet)
		if ok {
			e.mirror.Publish(after)
		}
	}

	prev := current.Status
	current.Status = t.to
	if t.sheet.Status != nil {
		current.SheetStatus = *t.sheet.Status
	}

	if err := e.storeTransition(ctx, action, current); err != nil {
		if sg.step == models.StepNone {
			return nil, errs.New(errs.KindUnavailable, "", err)
		}
		sg.fail(models.StepStore, err)
	} else {
		sg.done(models.StepStore)
	}

	if pushed, err := e.pushTransition(ctx, s, action); err != nil {
		sg.fail(models.StepCarrier, err)
	} else if pushed {
		sg.done(models.StepCarrier)
	}

	e.record(ctx, s, sg, t.audit, current.MoveID, string(action), models.SlotCurrent, t.to)
	log.Info("status advanced", "action", action, "from", prev, "to", t.to, "saga_step", sg.step)

	res = e.result(s, sg, current.MoveID, models.SlotCurrent, t.to)
	if action == ActionForceToCompleted {
		res.Promoted = e.promoteNext(ctx, s, res)
	}
	return res, nil
}

// storeTransition persists the new status. Issues drop the open move,
// forced completions move it to the completed table.
func (e *Engine) storeTransition(ctx context.Context, action StatusAction, m *models.OpenMove) error {
	switch action {
	case ActionIssueDamaged, ActionIssueNotFound:
		return e.open.Delete(ctx, m.ID)
	case ActionForceToCompleted:
		if err := e.open.Update(ctx, m); err != nil {
			return err
		}
		return e.completed.MigrateFromOpen(ctx, m.ID)
	default:
		return e.open.Update(ctx, m)
	}
}

// pushTransition tells the carrier about the transition. Checkout and
// arrival are tracked in the log only and report pushed=false.
func (e *Engine) pushTransition(ctx context.Context, s *session, action StatusAction) (pushed bool, err error) {
	switch action {
	case ActionIssueDamaged, ActionIssueNotFound:
		return true, e.carriers.UnassignCurrent(ctx, s.driver)
	case ActionForceToCompleted:
		return true, e.carriers.PushStatus(ctx, s.driver, clients.StatusUpdate{
			DriverID:  s.driver.ID,
			NewStatus: clients.CarrierStatusForceToCompleted,
		})
	default:
		return false, nil
	}
}

// promoteNext moves the next open move into the current slot after a
// completion and returns its move id, or "" when there is none.
func (e *Engine) promoteNext(ctx context.Context, s *session, res *Result) string {
	if !s.snapshot.HasNext() {
		return ""
	}
	next, err := e.findOpen(ctx, s.driver.ID, s.snapshot.NextMoveID, models.SlotNext)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("promote: %v", err))
		return ""
	}
	if next == nil {
		return ""
	}

	sg := &saga{action: OpAdvanceStatus}
	next.Slot = models.SlotCurrent
	next.Status = models.StatusSearching
	if err := e.open.Update(ctx, next); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("promote: %v", err))
		return ""
	}
	sg.done(models.StepStore)

	update := clients.StatusUpdate{
		DriverID:    s.driver.ID,
		NewStatus:   clients.CarrierStatusSearching,
		Destination: models.Str(next.Destination),
	}
	if next.ContainerNumber != nil {
		update.ContainerNumber = models.Str(next.Container())
	}
	err = e.carriers.PushStatus(ctx, s.driver, update)
	if err != nil {
		sg.fail(models.StepCarrier, err)
	} else {
		sg.done(models.StepCarrier)
	}

	e.record(ctx, s, sg, models.ActionAssignedFromNext, next.MoveID, "", models.SlotCurrent, models.StatusSearching)
	s.log.Info("next move promoted", "move_id", next.MoveID, "saga_step", sg.step)

	res.Warnings = append(res.Warnings, sg.warnings...)
	return next.MoveID
}

// AttachPicture records a picture reference on the current move
func (e *Engine) AttachPicture(ctx context.Context, actor models.Actor, driverID string, side models.PictureSide, ref string) (res *Result, err error) {
	defer func() { e.observe(OpAttachPicture, err) }()

	if side != models.PicturePickup && side != models.PictureDropoff {
		return nil, errs.New(errs.KindInvalidFormat, "Picture side must be pickup or dropoff", nil)
	}
	if ref == "" {
		return nil, errs.New(errs.KindInvalidFormat, "Picture reference is required", nil)
	}

	ctx, s, err := e.begin(ctx, actor, driverID)
	if err != nil {
		return nil, err
	}

	current, err := e.currentOpen(ctx, s)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errs.New(errs.KindConflict, "Driver has no current move", nil)
	}

	if side == models.PicturePickup {
		current.PickupPicture = &ref
	} else {
		current.DropoffPicture = &ref
	}
	if err := e.open.Update(ctx, current); err != nil {
		return nil, errs.New(errs.KindUnavailable, "", err)
	}

	sg := &saga{action: OpAttachPicture}
	sg.done(models.StepStore)
	e.record(ctx, s, sg, models.ActionPictureUpload, current.MoveID, string(side), models.SlotCurrent, current.Status)

	return e.result(s, sg, current.MoveID, models.SlotCurrent, current.Status), nil
}
