package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shuttleops/movesync/common/clients"
	"github.com/shuttleops/movesync/common/errs"
	"github.com/shuttleops/movesync/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidDriverIDRejectedBeforeNetwork(t *testing.T) {
	h := newHarness(t, sheetMove("M1", 101, "Yard", "Rail", ""))

	for _, id := range []string{"bm-0001", "BM0001", "BM-001", "BMK-0001", ""} {
		_, err := h.engine.AssignCurrent(context.Background(), yard, id, "M1", "")
		assert.ErrorIs(t, err, errs.ErrInvalidFormat, id)
	}

	assert.Zero(t, h.carrier.fetches)
	assert.Zero(t, h.sheet.versionCalls)
}

func TestUnknownCarrierPrefix(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.AssignCurrent(context.Background(), yard, "ZZ-0001", models.MoveStandby, "")
	require.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, "Carrier not found", errs.Reason(err))
}

func TestAssignUnassignRoundTrip(t *testing.T) {
	h := newHarness(t, sheetMove("M1", 101, "Yard", "Rail", ""))
	ctx := context.Background()

	res, err := h.engine.AssignCurrent(ctx, yard, testDriver, "M1", "")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.StepCarrier, res.Step)
	assert.Empty(t, res.Warnings)

	row := h.sheet.row(101)
	assert.Equal(t, testDriver, row.DriverID)
	assert.Equal(t, "BMKJ", row.CarrierCode)
	assert.Equal(t, "T-0001", row.TruckNumber)
	assert.Equal(t, models.SheetStatusOpen, row.Status)

	open, err := h.store.Find(ctx, testDriver, "M1", models.SlotCurrent)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSearching, open.Status)
	assert.True(t, open.CarrierAssigned)
	assert.Equal(t, "CONTM1", open.Container())

	assert.Equal(t, "M1", h.carrier.snapshot(testDriver).CurrentMoveID)

	entry := h.audit.last()
	assert.Equal(t, models.ActionAssign, entry.Action)
	assert.Equal(t, "gate@yard.test", entry.Actor)
	assert.JSONEq(t, `{"carrier_code":"BMKJ","driver_id":"BM-0001","status":"Open","truck_number":"T-0001"}`, string(entry.RowPatch))

	// the claim is visible without waiting for another refresh
	q := h.engine.currentQuery(&session{actor: yard, driver: models.Driver{ID: otherDrv, CarrierCode: "BMKJ"}, snapshot: &models.DriverSnapshot{AssignedCustomer: customer}})
	assert.NotContains(t, h.mirror.Snapshot().Candidates(q), "M1")

	res, err = h.engine.UnassignCurrent(ctx, yard, testDriver)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, "M1", res.MoveID)

	row = h.sheet.row(101)
	assert.Empty(t, row.DriverID)
	assert.Empty(t, row.CarrierCode, "carrier written by the assignment is cleared")
	assert.Empty(t, row.TruckNumber)
	assert.Empty(t, row.Status)
	assert.Equal(t, "Container Has been unassigned", row.DetailedStatus)

	assert.Zero(t, h.store.count())
	assert.Empty(t, h.carrier.snapshot(testDriver).CurrentMoveID)
	assert.Equal(t, []models.LogAction{models.ActionAssign, models.ActionUnassign}, h.audit.actions())
	assert.Contains(t, h.mirror.Snapshot().Candidates(q), "M1")
	assert.Len(t, h.events.events, 2)
}

func TestUnassignKeepsPreexistingCarrier(t *testing.T) {
	h := newHarness(t, sheetMove("M1", 101, "Yard", "Rail", "BMKJ"))
	ctx := context.Background()

	_, err := h.engine.AssignCurrent(ctx, yard, testDriver, "M1", "")
	require.NoError(t, err)
	_, err = h.engine.UnassignCurrent(ctx, yard, testDriver)
	require.NoError(t, err)

	assert.Equal(t, "BMKJ", h.sheet.row(101).CarrierCode)
}

func TestAssignRejectsMoveClaimedAtSource(t *testing.T) {
	h := newHarness(t, sheetMove("M1", 101, "Yard", "Rail", ""))
	ctx := context.Background()

	_, err := h.mirror.Refresh(ctx, false)
	require.NoError(t, err)

	// claimed by someone else without a version bump the mirror would notice
	h.sheet.edit(101, false, func(m *models.Move) { m.DriverID = otherDrv })

	_, err = h.engine.AssignCurrent(ctx, yard, testDriver, "M1", "")
	require.ErrorIs(t, err, errs.ErrConflict)
	assert.Equal(t, "Move already claimed by BM-0002", errs.Reason(err))

	assert.Zero(t, h.store.count())
	assert.Empty(t, h.carrier.calls)
	got, _ := h.mirror.Snapshot().Get("M1")
	assert.Equal(t, otherDrv, got.DriverID, "fresh row replaces the stale one")
}

func TestAssignRejections(t *testing.T) {
	claimed := sheetMove("M3", 103, "Yard", "Rail", "BMKJ")
	claimed.DriverID = otherDrv
	h := newHarness(t,
		sheetMove("M1", 101, "Yard", "Rail", ""),
		sheetMove("M2", 102, "Port", "Rail", ""),
		claimed,
		sheetMove("M4", 104, "Yard", "Rail", "QTLX"),
	)
	ctx := context.Background()

	_, err := h.engine.AssignCurrent(ctx, yard, testDriver, "NOPE", "")
	assert.ErrorIs(t, err, errs.ErrUnknownMove)

	_, err = h.engine.AssignCurrent(ctx, yard, testDriver, "M2", "")
	assert.ErrorIs(t, err, errs.ErrConflict, "wrong origin")

	_, err = h.engine.AssignCurrent(ctx, yard, testDriver, "M3", "")
	assert.ErrorIs(t, err, errs.ErrConflict, "already claimed")

	_, err = h.engine.AssignCurrent(ctx, yard, testDriver, "M4", "")
	assert.ErrorIs(t, err, errs.ErrConflict, "other carrier")

	_, err = h.engine.AssignCurrent(ctx, yard, testDriver, "M1", "")
	require.NoError(t, err)
	_, err = h.engine.AssignCurrent(ctx, yard, testDriver, models.MoveStandby, "")
	assert.ErrorIs(t, err, errs.ErrConflict, "current slot taken")

	assert.Empty(t, h.sheet.updates[102])
	assert.Empty(t, h.sheet.updates[104])
}

func TestAssignStandby(t *testing.T) {
	h := newHarness(t, sheetMove("M1", 101, "Yard", "Rail", ""))
	ctx := context.Background()

	res, err := h.engine.AssignCurrent(ctx, yard, testDriver, models.MoveStandby, "")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.MoveStandby, h.carrier.snapshot(testDriver).CurrentMoveID)
	assert.Zero(t, h.store.count())
	assert.Empty(t, h.sheet.updates)

	// standby holds the slot open for a real assignment
	_, err = h.engine.AssignCurrent(ctx, yard, testDriver, "M1", "")
	require.NoError(t, err)
	assert.Equal(t, "M1", h.carrier.snapshot(testDriver).CurrentMoveID)
}

func TestBobtail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.engine.AssignCurrent(ctx, yard, testDriver, models.MoveBobtail, "")
	require.NoError(t, err)
	assert.True(t, res.PendingBobtail)
	assert.False(t, res.Applied)

	for _, dest := range []string{"Yard", "Nowhere"} {
		res, err = h.engine.AssignCurrent(ctx, yard, testDriver, models.MoveBobtail, dest)
		require.NoError(t, err, dest)
		assert.False(t, res.Applied, dest)
	}
	assert.Zero(t, h.store.count())
	assert.Empty(t, h.carrier.calls)
	assert.Empty(t, h.audit.entries)

	res, err = h.engine.AssignCurrent(ctx, yard, testDriver, models.MoveBobtail, "Rail")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	open, err := h.store.Find(ctx, testDriver, models.MoveBobtail, models.SlotCurrent)
	require.NoError(t, err)
	assert.Equal(t, models.LoadBobtail, open.LoadKind)
	assert.Equal(t, models.PriorityStandard, open.Priority)
	assert.Equal(t, "Yard", open.Origin)
	assert.Equal(t, "Rail", open.Destination)
	assert.Nil(t, open.RowID)
	assert.Equal(t, []string{"assign_current:BOBTAIL"}, h.carrier.calls)

	// a second bobtail from the destination goes into the next slot
	res, err = h.engine.AssignNext(ctx, yard, testDriver, models.MoveBobtail, "Yard")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	next, err := h.store.Find(ctx, testDriver, models.MoveBobtail, models.SlotNext)
	require.NoError(t, err)
	assert.Equal(t, "Rail", next.Origin)
	assert.Equal(t, models.StatusPendingDriverArrival, next.Status)
	assert.Equal(t, models.DetailIsNext, h.audit.last().Detail)
}

func TestAssignNext(t *testing.T) {
	h := newHarness(t,
		sheetMove("M1", 101, "Yard", "Rail", ""),
		sheetMove("M2", 102, "Rail", "Yard", ""),
		sheetMove("M5", 105, "Yard", "Port", ""),
	)
	ctx := context.Background()

	_, err := h.engine.AssignNext(ctx, yard, testDriver, "M2", "")
	require.ErrorIs(t, err, errs.ErrConflict, "no current move")

	_, err = h.engine.AssignCurrent(ctx, yard, testDriver, "M1", "")
	require.NoError(t, err)

	_, err = h.engine.AssignNext(ctx, yard, testDriver, "M5", "")
	assert.ErrorIs(t, err, errs.ErrConflict, "must leave from the current destination")

	res, err := h.engine.AssignNext(ctx, yard, testDriver, models.MoveStandby, "")
	require.NoError(t, err)
	assert.False(t, res.Applied)

	res, err = h.engine.AssignNext(ctx, yard, testDriver, "M2", "")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.StatusPendingDriverArrival, res.Status)
	assert.Equal(t, "M2", h.carrier.snapshot(testDriver).NextMoveID)
	assert.Equal(t, models.DetailIsNext, h.audit.last().Detail)

	_, err = h.engine.UnassignNext(ctx, yard, testDriver)
	require.NoError(t, err)
	assert.Empty(t, h.carrier.snapshot(testDriver).NextMoveID)
	assert.Empty(t, h.sheet.row(102).DriverID)
	assert.Equal(t, "M1", h.carrier.snapshot(testDriver).CurrentMoveID)
}

func TestUnassignEmptySlotIsNoop(t *testing.T) {
	h := newHarness(t)

	res, err := h.engine.UnassignCurrent(context.Background(), yard, testDriver)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Empty(t, h.carrier.calls)
	assert.Empty(t, h.audit.entries)
}

func TestSheetWriteFailureRejects(t *testing.T) {
	h := newHarness(t, sheetMove("M1", 101, "Yard", "Rail", ""))
	h.sheet.updateErr = errors.New("sheet timeout")

	_, err := h.engine.AssignCurrent(context.Background(), yard, testDriver, "M1", "")
	require.ErrorIs(t, err, errs.ErrUnavailable)
	assert.Zero(t, h.store.count())
	assert.Empty(t, h.carrier.calls)
	assert.Empty(t, h.audit.entries)
}

func TestCarrierFailureAfterCommitIsWarning(t *testing.T) {
	h := newHarness(t, sheetMove("M1", 101, "Yard", "Rail", ""))
	h.carrier.failAssign = errs.New(errs.KindUnavailable, "", errors.New("carrier down"))

	res, err := h.engine.AssignCurrent(context.Background(), yard, testDriver, "M1", "")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.StepStore, res.Step)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "carrier down")

	entry := h.audit.last()
	assert.Equal(t, models.StepStore, entry.Step)
	assert.Contains(t, entry.Warning, "carrier down")
	assert.Equal(t, 1, h.store.count(), "committed writes are not rolled back")
	assert.Equal(t, testDriver, h.sheet.row(101).DriverID)
}

func TestRefreshFailureRejectsMutation(t *testing.T) {
	h := newHarness(t, sheetMove("M1", 101, "Yard", "Rail", ""))
	h.sheet.versionErr = errors.New("sheet down")

	_, err := h.engine.AssignCurrent(context.Background(), yard, testDriver, "M1", "")
	require.ErrorIs(t, err, errs.ErrUnavailable)
	assert.Empty(t, h.sheet.updates)
}

func TestCarrierFetchErrorsPassThrough(t *testing.T) {
	h := newHarness(t)
	h.carrier.fetchErr = errs.New(errs.KindNotScheduled, "", nil)

	_, err := h.engine.AssignCurrent(context.Background(), yard, testDriver, models.MoveStandby, "")
	require.ErrorIs(t, err, errs.ErrNotScheduled)
	assert.Equal(t, "Driver is not set as working today by dispatch", errs.Reason(err))
}

func TestTransitionEventCarriesStep(t *testing.T) {
	h := newHarness(t, sheetMove("M1", 101, "Yard", "Rail", ""))

	_, err := h.engine.AssignCurrent(context.Background(), yard, testDriver, "M1", "")
	require.NoError(t, err)

	require.Len(t, h.events.events, 1)
	ev := h.events.events[0]
	assert.Equal(t, OpAssignCurrent, ev.Action)
	assert.Equal(t, models.SlotCurrent, ev.Slot)
	assert.Equal(t, models.StepCarrier, ev.Step)
	assert.Equal(t, string(models.StatusSearching), ev.Status)
}

func TestStandbyCarrierFailureRejects(t *testing.T) {
	h := newHarness(t)
	h.carrier.failAssign = errs.New(errs.KindUnavailable, "", errors.New("carrier down"))

	_, err := h.engine.AssignCurrent(context.Background(), yard, testDriver, models.MoveStandby, "")
	require.ErrorIs(t, err, errs.ErrUnavailable)
	assert.Empty(t, h.audit.entries)
}

var _ CarrierGateway = (*clients.CarrierClient)(nil)
