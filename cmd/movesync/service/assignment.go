package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shuttleops/movesync/common/clients"
	"github.com/shuttleops/movesync/common/errs"
	"github.com/shuttleops/movesync/common/lock"
	"github.com/shuttleops/movesync/common/models"
	"github.com/shuttleops/movesync/common/moveindex"
)

// Engine action names, used in results, events and metrics
const (
	OpAssignCurrent   = "ASSIGN_CURRENT"
	OpAssignNext      = "ASSIGN_NEXT"
	OpUnassignCurrent = "UNASSIGN_CURRENT"
	OpUnassignNext    = "UNASSIGN_NEXT"
	OpAdvanceStatus   = "ADVANCE_STATUS"
	OpAttachPicture   = "ATTACH_PICTURE"
)

// AssignCurrent gives the driver a current move: STANDBY, BOBTAIL (with a
// destination) or a candidate move id from the index.
func (e *Engine) AssignCurrent(ctx context.Context, actor models.Actor, driverID, moveID, bobtailDestination string) (res *Result, err error) {
	defer func() { e.observe(OpAssignCurrent, err) }()

	ctx, s, err := e.begin(ctx, actor, driverID)
	if err != nil {
		return nil, err
	}

	if occupied(s.snapshot.CurrentMoveID) {
		return nil, errs.New(errs.KindConflict, "Driver already has a current move", nil)
	}

	switch moveID {
	case models.MoveStandby:
		return e.assignStandby(ctx, s)
	case models.MoveBobtail:
		if bobtailDestination == "" {
			return &Result{Action: OpAssignCurrent, DriverID: s.driver.ID, MoveID: models.MoveBobtail, PendingBobtail: true}, nil
		}
		return e.assignBobtail(ctx, s, models.SlotCurrent, s.actor.Location, bobtailDestination)
	}

	move, ok := s.index.Get(moveID)
	if !ok {
		return nil, errs.New(errs.KindUnknownMove, "", nil)
	}
	if !e.currentQuery(s).Eligible(move) {
		return nil, errs.New(errs.KindConflict, "", nil)
	}

	return e.claim(ctx, s, move, models.SlotCurrent, e.currentQuery(s))
}

// AssignNext pre-stages the driver's next move in the opposite direction.
// STANDBY leaves the next slot empty.
func (e *Engine) AssignNext(ctx context.Context, actor models.Actor, driverID, moveID, bobtailDestination string) (res *Result, err error) {
	defer func() { e.observe(OpAssignNext, err) }()

	ctx, s, err := e.begin(ctx, actor, driverID)
	if err != nil {
		return nil, err
	}

	if occupied(s.snapshot.NextMoveID) {
		return nil, errs.New(errs.KindConflict, "Driver already has a next move", nil)
	}

	current, err := e.currentOpen(ctx, s)
	if err != nil {
		return nil, err
	}

	switch moveID {
	case models.MoveStandby:
		return noop(OpAssignNext, s.driver.ID), nil
	case models.MoveBobtail:
		if bobtailDestination == "" {
			return &Result{Action: OpAssignNext, DriverID: s.driver.ID, MoveID: models.MoveBobtail, PendingBobtail: true}, nil
		}
		return e.assignBobtail(ctx, s, models.SlotNext, nextBobtailOrigin(s, current), bobtailDestination)
	}

	move, ok := s.index.Get(moveID)
	if !ok {
		return nil, errs.New(errs.KindUnknownMove, "", nil)
	}
	if current == nil {
		return nil, errs.New(errs.KindConflict, "Driver has no current move", nil)
	}

	q := e.oppositeQuery(s, current.Destination)
	if !q.Eligible(move) {
		return nil, errs.New(errs.KindConflict, "", nil)
	}

	return e.claim(ctx, s, move, models.SlotNext, q)
}

// nextBobtailOrigin is where a next-slot bobtail starts: the current move's
// destination, or the actor's location when there is no current move.
func nextBobtailOrigin(s *session, current *models.OpenMove) string {
	if current != nil && current.Destination != "" {
		return current.Destination
	}
	return s.actor.Location
}

func (e *Engine) assignStandby(ctx context.Context, s *session) (*Result, error) {
	sg := &saga{action: OpAssignCurrent}

	err := e.carriers.AssignCurrent(ctx, s.driver, clients.AssignCurrentRequest{MoveID: models.MoveStandby})
	if err != nil {
		return nil, err
	}
	sg.done(models.StepCarrier)

	e.record(ctx, s, sg, models.ActionAssign, models.MoveStandby, "", models.SlotCurrent, "")
	s.log.Info("driver set to standby")

	return e.result(s, sg, models.MoveStandby, models.SlotCurrent, ""), nil
}

// assignBobtail creates a containerless move with no sheet row. A destination
// that is not a known location or equals the origin is a silent no-op.
func (e *Engine) assignBobtail(ctx context.Context, s *session, slot models.Slot, origin, destination string) (*Result, error) {
	action := OpAssignCurrent
	status := models.StatusSearching
	detail := ""
	if slot == models.SlotNext {
		action = OpAssignNext
		status = models.StatusPendingDriverArrival
		detail = models.DetailIsNext
	}

	if !e.locations[destination] || destination == origin {
		s.log.Debug("bobtail destination rejected", "origin", origin, "destination", destination)
		return noop(action, s.driver.ID), nil
	}

	sg := &saga{action: action}

	open := &models.OpenMove{
		MoveID:       models.MoveBobtail,
		LoadKind:     models.LoadBobtail,
		Priority:     models.PriorityStandard,
		Customer:     s.snapshot.AssignedCustomer,
		Origin:       origin,
		Destination:  destination,
		CarrierCode:  s.driver.CarrierCode,
		SheetStatus:  models.SheetStatusOpen,
		DriverID:     s.driver.ID,
		Slot:         slot,
		Status:       status,
		TruckNumber:  s.snapshot.TruckNumber,
		LicensePlate: s.snapshot.LicensePlate,
	}
	if err := e.open.Create(ctx, open); err != nil {
		return nil, errs.New(errs.KindUnavailable, "", fmt.Errorf("failed to store bobtail: %w", err))
	}
	sg.done(models.StepStore)

	var err error
	if slot == models.SlotCurrent {
		err = e.carriers.AssignCurrent(ctx, s.driver, clients.AssignCurrentRequest{
			MoveID:      models.MoveBobtail,
			Origin:      models.Str(origin),
			Destination: models.Str(destination),
		})
	} else {
		err = e.carriers.AssignNext(ctx, s.driver, models.MoveBobtail)
	}
	if err != nil {
		sg.fail(models.StepCarrier, err)
	} else {
		sg.done(models.StepCarrier)
	}

	e.record(ctx, s, sg, models.ActionAssign, models.MoveBobtail, detail, slot, status)
	s.log.Info("bobtail assigned", "slot", slot, "origin", origin, "destination", destination)

	return e.result(s, sg, models.MoveBobtail, slot, status), nil
}

// claim takes the per-move lock, re-reads the row from the sheet and writes
// the claim. The re-read catches claims made since the index was built.
func (e *Engine) claim(ctx context.Context, s *session, move models.Move, slot models.Slot, q moveindex.Query) (*Result, error) {
	action, status, detail := OpAssignCurrent, models.StatusSearching, ""
	if slot == models.SlotNext {
		action, status, detail = OpAssignNext, models.StatusPendingDriverArrival, models.DetailIsNext
	}
	log := s.log.WithMove(move.ID)

	held, err := e.locker.Obtain(ctx, "move:"+move.ID)
	if errors.Is(err, lock.ErrNotObtained) {
		return nil, errs.New(errs.KindConflict, "Move is being assigned by someone else, try again", err)
	}
	if err != nil {
		return nil, errs.New(errs.KindUnavailable, "", err)
	}
	defer func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release move lock", "error", err)
		}
	}()

	fresh, err := e.log.Row(ctx, move.RowID)
	if err != nil {
		return nil, errs.New(errs.KindUnavailable, "", fmt.Errorf("failed to re-read move row: %w", err))
	}
	if fresh.ID != move.ID {
		return nil, errs.New(errs.KindConflict, "Move log row changed, refresh and try again", nil)
	}
	if fresh.Claimed() && fresh.DriverID != s.driver.ID {
		e.mirror.Publish(fresh)
		return nil, errs.New(errs.KindConflict, fmt.Sprintf("Move already claimed by %s", fresh.DriverID), nil)
	}
	if !q.Eligible(models.RowUpdate{DriverID: models.Str("")}.Apply(fresh)) {
		e.mirror.Publish(fresh)
		return nil, errs.New(errs.KindConflict, "", nil)
	}

	update := models.RowUpdate{
		DriverID:    models.Str(s.driver.ID),
		TruckNumber: models.Str(s.snapshot.TruckNumber),
		Status:      models.Str(models.SheetStatusOpen),
	}
	carrierAssigned := fresh.CarrierCode == ""
	if carrierAssigned {
		update.CarrierCode = models.Str(s.driver.CarrierCode)
	}

	if err := e.log.UpdateRow(ctx, fresh.RowID, update); err != nil {
		return nil, errs.New(errs.KindUnavailable, "", err)
	}
	claimed := update.Apply(fresh)
	sg := &saga{action: action, patch: rowPatch(fresh, claimed)}
	sg.done(models.StepSheet)
	e.mirror.Publish(claimed)

	open := newOpenMove(claimed, s, slot, status, carrierAssigned)
	if err := e.open.Create(ctx, open); err != nil {
		sg.fail(models.StepStore, err)
	} else {
		sg.done(models.StepStore)
	}

	if slot == models.SlotCurrent {
		req := clients.AssignCurrentRequest{
			MoveID:      claimed.ID,
			Origin:      models.Str(claimed.Origin),
			Destination: models.Str(claimed.Destination),
		}
		if claimed.ContainerNumber != "" {
			req.ContainerNumber = models.Str(claimed.ContainerNumber)
		}
		err = e.carriers.AssignCurrent(ctx, s.driver, req)
	} else {
		err = e.carriers.AssignNext(ctx, s.driver, claimed.ID)
	}
	if err != nil {
		sg.fail(models.StepCarrier, err)
	} else {
		sg.done(models.StepCarrier)
	}

	e.record(ctx, s, sg, models.ActionAssign, claimed.ID, detail, slot, status)
	log.Info("move assigned", "slot", slot, "carrier_assigned", carrierAssigned, "saga_step", sg.step)

	return e.result(s, sg, claimed.ID, slot, status), nil
}

func newOpenMove(m models.Move, s *session, slot models.Slot, status models.MoveStatus, carrierAssigned bool) *models.OpenMove {
	rowID := m.RowID
	open := &models.OpenMove{
		MoveID:          m.ID,
		RowID:           &rowID,
		LoadKind:        m.LoadKind,
		Priority:        m.Priority,
		Customer:        m.Customer,
		Origin:          m.Origin,
		Destination:     m.Destination,
		CarrierCode:     s.driver.CarrierCode,
		SheetStatus:     models.SheetStatusOpen,
		DriverID:        s.driver.ID,
		Slot:            slot,
		Status:          status,
		TruckNumber:     s.snapshot.TruckNumber,
		LicensePlate:    s.snapshot.LicensePlate,
		CarrierAssigned: carrierAssigned,
	}
	if m.ContainerNumber != "" {
		open.ContainerNumber = models.Str(m.ContainerNumber)
	}
	return open
}
