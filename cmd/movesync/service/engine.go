package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/shuttleops/movesync/common/clients"
	"github.com/shuttleops/movesync/common/errs"
	"github.com/shuttleops/movesync/common/lock"
	"github.com/shuttleops/movesync/common/logger"
	"github.com/shuttleops/movesync/common/metrics"
	"github.com/shuttleops/movesync/common/models"
	"github.com/shuttleops/movesync/common/moveindex"
	"github.com/shuttleops/movesync/common/repository"
)

// EngineDeps wires the engine to its collaborators
type EngineDeps struct {
	Mirror    *Mirror
	Log       MoveLog
	Carriers  CarrierGateway
	Open      OpenMoveStore
	Completed CompletedMoveStore
	Audit     AuditStore
	Locker    lock.Locker
	Events    EventPublisher // optional
	Logger    *logger.Logger
	Metrics   *metrics.Metrics // optional
	Locations []string
	Filter    *moveindex.Filter
}

// Engine is the move assignment state machine. Each transition writes the
// move log sheet, then the durable store, then the carrier, then the audit
// log. A failure before the first write rejects the action; a failure after
// it is recorded on the result and never rolled back.
type Engine struct {
	mirror    *Mirror
	log       MoveLog
	carriers  CarrierGateway
	open      OpenMoveStore
	completed CompletedMoveStore
	audit     AuditStore
	locker    lock.Locker
	events    EventPublisher
	logger    *logger.Logger
	metrics   *metrics.Metrics
	locations map[string]bool
	locList   []string
	filter    *moveindex.Filter
	now       func() time.Time
}

// NewEngine creates an engine
func NewEngine(d EngineDeps) *Engine {
	locations := make(map[string]bool, len(d.Locations))
	for _, l := range d.Locations {
		locations[l] = true
	}

	return &Engine{
		mirror:    d.Mirror,
		log:       d.Log,
		carriers:  d.Carriers,
		open:      d.Open,
		completed: d.Completed,
		audit:     d.Audit,
		locker:    d.Locker,
		events:    d.Events,
		logger:    d.Logger,
		metrics:   d.Metrics,
		locations: locations,
		locList:   d.Locations,
		filter:    d.Filter,
		now:       time.Now,
	}
}

// Result describes what a transition did
type Result struct {
	Action   string            `json:"action"`
	DriverID string            `json:"driver_id"`
	MoveID   string            `json:"move_id,omitempty"`
	Slot     models.Slot       `json:"slot,omitempty"`
	Status   models.MoveStatus `json:"status,omitempty"`

	// Applied is false for accepted no-ops
	Applied        bool            `json:"applied"`
	PendingBobtail bool            `json:"pending_bobtail,omitempty"`
	Promoted       string          `json:"promoted_move_id,omitempty"`
	Step           models.SagaStep `json:"saga_step,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// session is the per-request view every transition starts from
type session struct {
	actor    models.Actor
	driver   models.Driver
	snapshot *models.DriverSnapshot
	index    *moveindex.Snapshot
	log      *logger.Logger
}

// begin validates the driver id, fetches the driver and refreshes the mirror.
// Mutations never run on a stale index. The returned context carries the actor.
func (e *Engine) begin(ctx context.Context, actor models.Actor, driverID string) (context.Context, *session, error) {
	driver, err := e.carriers.Resolve(driverID)
	if err != nil {
		return ctx, nil, err
	}

	ctx = clients.WithActor(ctx, actor.Name())
	snapshot, err := e.carriers.FetchDriver(ctx, driver)
	if err != nil {
		return ctx, nil, err
	}

	index, err := e.mirror.Refresh(ctx, false)
	if err != nil {
		return ctx, nil, errs.New(errs.KindUnavailable, "Move log unavailable, please report this", err)
	}

	return ctx, &session{
		actor:    actor,
		driver:   driver,
		snapshot: snapshot,
		index:    index,
		log:      e.logger.WithDriver(driver.ID),
	}, nil
}

// currentQuery selects moves leaving the actor's location
func (e *Engine) currentQuery(s *session) moveindex.Query {
	return moveindex.Query{
		Customer:       s.snapshot.AssignedCustomer,
		ExcludeClaimed: true,
		Origin:         s.actor.Location,
		Carrier:        s.driver.CarrierCode,
		Direction:      moveindex.DirectionCurrent,
		Filter:         e.filter,
	}
}

// oppositeQuery selects moves leaving the current move's destination
func (e *Engine) oppositeQuery(s *session, origin string) moveindex.Query {
	return moveindex.Query{
		Customer:       s.snapshot.AssignedCustomer,
		ExcludeClaimed: true,
		Origin:         origin,
		Carrier:        s.driver.CarrierCode,
		Direction:      moveindex.DirectionOpposite,
		Filter:         e.filter,
	}
}

// occupied reports whether a carrier slot holds a real move.
// STANDBY is the placeholder for an empty slot.
func occupied(moveID string) bool {
	return moveID != "" && moveID != models.MoveStandby
}

// findOpen returns the open move in a slot, or nil when absent
func (e *Engine) findOpen(ctx context.Context, driverID, moveID string, slot models.Slot) (*models.OpenMove, error) {
	m, err := e.open.Find(ctx, driverID, moveID, slot)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.KindUnavailable, "", err)
	}
	return m, nil
}

// currentOpen returns the open move matching the carrier's current move id.
// The carrier snapshot is authoritative, so a durable row for another move
// in the current slot is ignored.
func (e *Engine) currentOpen(ctx context.Context, s *session) (*models.OpenMove, error) {
	if !occupied(s.snapshot.CurrentMoveID) {
		return nil, nil
	}
	return e.findOpen(ctx, s.driver.ID, s.snapshot.CurrentMoveID, models.SlotCurrent)
}

// saga tracks the furthest write that completed in order
type saga struct {
	action   string
	step     models.SagaStep
	broken   bool
	warnings []string
	patch    json.RawMessage
}

func (s *saga) done(step models.SagaStep) {
	if !s.broken {
		s.step = step
	}
}

func (s *saga) fail(step models.SagaStep, err error) {
	s.broken = true
	s.warnings = append(s.warnings, fmt.Sprintf("%s: %v", step, err))
}

func (s *saga) warning() string {
	return strings.Join(s.warnings, "; ")
}

// record appends the audit entry and the transition event for a saga.
// Neither failure changes the outcome; both land in the result warnings.
func (e *Engine) record(ctx context.Context, s *session, sg *saga, action models.LogAction, moveID, detail string, slot models.Slot, status models.MoveStatus) {
	if sg.broken {
		e.metrics.ObserveIncomplete(string(sg.step))
		s.log.Warn("transition committed with failed writes",
			"action", sg.action,
			"move_id", moveID,
			"saga_step", sg.step,
			"warnings", sg.warning())
	}

	entry := &models.MoveLogEntry{
		Action:      action,
		Actor:       s.actor.Name(),
		DriverID:    s.driver.ID,
		CarrierCode: s.driver.CarrierCode,
		MoveID:      moveID,
		Detail:      detail,
		Step:        sg.step,
		RowPatch:    sg.patch,
		Warning:     sg.warning(),
		CreatedAt:   e.now().UTC(),
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		s.log.Error("failed to append move log entry", "action", action, "move_id", moveID, "error", err)
		sg.warnings = append(sg.warnings, fmt.Sprintf("audit: %v", err))
	}

	if e.events == nil {
		return
	}
	ev := models.TransitionEvent{
		Action:      sg.action,
		Actor:       s.actor.Name(),
		DriverID:    s.driver.ID,
		CarrierCode: s.driver.CarrierCode,
		MoveID:      moveID,
		Slot:        slot,
		Status:      string(status),
		Step:        sg.step,
		Warning:     sg.warning(),
		At:          entry.CreatedAt,
	}
	if err := e.events.PublishTransition(ctx, ev); err != nil {
		s.log.Warn("failed to publish transition event", "action", sg.action, "error", err)
	}
}

func (e *Engine) result(s *session, sg *saga, moveID string, slot models.Slot, status models.MoveStatus) *Result {
	return &Result{
		Action:   sg.action,
		DriverID: s.driver.ID,
		MoveID:   moveID,
		Slot:     slot,
		Status:   status,
		Applied:  true,
		Step:     sg.step,
		Warnings: sg.warnings,
	}
}

func noop(action, driverID string) *Result {
	return &Result{Action: action, DriverID: driverID}
}

// rowPatch is the JSON merge patch turning before into after
func rowPatch(before, after models.Move) json.RawMessage {
	a, err := json.Marshal(before)
	if err != nil {
		return nil
	}
	b, err := json.Marshal(after)
	if err != nil {
		return nil
	}
	patch, err := jsonpatch.CreateMergePatch(a, b)
	if err != nil {
		return nil
	}
	return patch
}

// observe counts the outcome of one engine call
func (e *Engine) observe(action string, err error) {
	e.metrics.ObserveTransition(action, err)
}
