package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/shuttleops/movesync/common/models"
)

// DriftKind names a disagreement between the durable store and an external view
type DriftKind string

const (
	DriftMissingRow          DriftKind = "MISSING_ROW"
	DriftDriverMismatch      DriftKind = "DRIVER_MISMATCH"
	DriftCarrierMismatch     DriftKind = "CARRIER_MISMATCH"
	DriftCarrierSlotMismatch DriftKind = "CARRIER_SLOT_MISMATCH"
	DriftCarrierUnreachable  DriftKind = "CARRIER_UNREACHABLE"
)

// Drift is one finding. Patch is the merge patch turning the durable view
// into the external one.
type Drift struct {
	Kind     DriftKind       `json:"kind"`
	DriverID string          `json:"driver_id"`
	MoveID   string          `json:"move_id"`
	Slot     models.Slot     `json:"slot"`
	Detail   string          `json:"detail,omitempty"`
	Patch    json.RawMessage `json:"patch,omitempty"`
}

// Report is the result of one reconciliation pass
type Report struct {
	IndexVersion int64     `json:"index_version"`
	Checked      int       `json:"checked"`
	Drifts       []Drift   `json:"drifts"`
	Stale        bool      `json:"stale,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// comparable view of an open move, shared by all three systems
type moveView struct {
	MoveID      string `json:"move_id"`
	DriverID    string `json:"driver_id"`
	CarrierCode string `json:"carrier_code"`
	TruckNumber string `json:"truck_number"`
}

// Reconciler compares open moves with the log and the carriers. It never writes.
type Reconciler struct {
	engine *Engine
}

// NewReconciler creates a reconciler reading through the engine's collaborators
func NewReconciler(e *Engine) *Reconciler {
	return &Reconciler{engine: e}
}

// Reconcile checks every open move once
func (r *Reconciler) Reconcile(ctx context.Context) (*Report, error) {
	e := r.engine

	moves, err := e.open.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open moves: %w", err)
	}

	report := &Report{Drifts: []Drift{}, GeneratedAt: e.now().UTC()}

	index, err := e.mirror.Refresh(ctx, false)
	if err != nil {
		e.logger.Warn("reconciling against stale move index", "error", err)
		index = e.mirror.Snapshot()
		report.Stale = true
	}
	report.IndexVersion = index.Version()

	snapshots := make(map[string]*models.DriverSnapshot)
	unreachable := make(map[string]error)

	for _, om := range moves {
		report.Checked++
		durable := moveView{
			MoveID:      om.MoveID,
			DriverID:    om.DriverID,
			CarrierCode: om.CarrierCode,
			TruckNumber: om.TruckNumber,
		}
		drift := func(kind DriftKind, detail string, external moveView) {
			report.Drifts = append(report.Drifts, Drift{
				Kind:     kind,
				DriverID: om.DriverID,
				MoveID:   om.MoveID,
				Slot:     om.Slot,
				Detail:   detail,
				Patch:    viewPatch(durable, external),
			})
		}

		if om.RowID != nil {
			row, ok := index.Get(om.MoveID)
			sheet := moveView{MoveID: row.ID, DriverID: row.DriverID, CarrierCode: row.CarrierCode, TruckNumber: row.TruckNumber}
			switch {
			case !ok:
				drift(DriftMissingRow, "move not in open move log", moveView{})
			case row.DriverID != om.DriverID:
				drift(DriftDriverMismatch, fmt.Sprintf("log holds driver %q", row.DriverID), sheet)
			case row.CarrierCode != om.CarrierCode:
				drift(DriftCarrierMismatch, fmt.Sprintf("log holds carrier %q", row.CarrierCode), sheet)
			}
		}

		snap, err := r.snapshot(ctx, om.DriverID, snapshots, unreachable)
		if err != nil {
			drift(DriftCarrierUnreachable, err.Error(), durable)
			continue
		}
		held := snap.CurrentMoveID
		if om.Slot == models.SlotNext {
			held = snap.NextMoveID
		}
		if held != om.MoveID {
			drift(DriftCarrierSlotMismatch, fmt.Sprintf("carrier holds %q", held), moveView{
				MoveID:      held,
				DriverID:    om.DriverID,
				CarrierCode: om.CarrierCode,
				TruckNumber: snap.TruckNumber,
			})
		}
	}

	e.logger.Info("reconciliation finished",
		"checked", report.Checked,
		"drifts", len(report.Drifts),
		"index_version", report.IndexVersion)

	return report, nil
}

// snapshot fetches each driver's carrier view once per pass
func (r *Reconciler) snapshot(ctx context.Context, driverID string, cache map[string]*models.DriverSnapshot, failed map[string]error) (*models.DriverSnapshot, error) {
	if snap, ok := cache[driverID]; ok {
		return snap, nil
	}
	if err, ok := failed[driverID]; ok {
		return nil, err
	}

	driver, err := r.engine.carriers.Resolve(driverID)
	if err == nil {
		var snap *models.DriverSnapshot
		snap, err = r.engine.carriers.FetchDriver(ctx, driver)
		if err == nil {
			cache[driverID] = snap
			return snap, nil
		}
	}
	failed[driverID] = err
	return nil, err
}

func viewPatch(durable, external moveView) json.RawMessage {
	a, err := json.Marshal(durable)
	if err != nil {
		return nil
	}
	b, err := json.Marshal(external)
	if err != nil {
		return nil
	}
	patch, err := jsonpatch.CreateMergePatch(a, b)
	if err != nil {
		return nil
	}
	return patch
}
