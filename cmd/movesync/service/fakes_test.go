package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shuttleops/movesync/common/clients"
	"github.com/shuttleops/movesync/common/errs"
	"github.com/shuttleops/movesync/common/lock"
	"github.com/shuttleops/movesync/common/logger"
	"github.com/shuttleops/movesync/common/models"
	"github.com/shuttleops/movesync/common/repository"
)

// fakeSheet is an in-memory move log
type fakeSheet struct {
	mu           sync.Mutex
	version      int64
	rows         []models.Move
	versionCalls int
	movesCalls   int
	versionErr   error
	updateErr    error
	updates      map[int64][]models.RowUpdate
}

func newFakeSheet(rows ...models.Move) *fakeSheet {
	return &fakeSheet{version: 1, rows: rows, updates: make(map[int64][]models.RowUpdate)}
}

func (f *fakeSheet) Version(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versionCalls++
	if f.versionErr != nil {
		return 0, f.versionErr
	}
	return f.version, nil
}

func (f *fakeSheet) Moves(ctx context.Context) (int64, []models.Move, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movesCalls++
	out := make([]models.Move, len(f.rows))
	copy(out, f.rows)
	return f.version, out, nil
}

func (f *fakeSheet) Row(ctx context.Context, rowID int64) (models.Move, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.RowID == rowID {
			return r, nil
		}
	}
	return models.Move{}, fmt.Errorf("row %d not found", rowID)
}

func (f *fakeSheet) UpdateRow(ctx context.Context, rowID int64, u models.RowUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for i, r := range f.rows {
		if r.RowID == rowID {
			f.rows[i] = u.Apply(r)
			f.updates[rowID] = append(f.updates[rowID], u)
			f.version++
			return nil
		}
	}
	return fmt.Errorf("row %d not found", rowID)
}

// edit changes a row behind the mirror's back, optionally bumping the version
func (f *fakeSheet) edit(rowID int64, bump bool, fn func(m *models.Move)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].RowID == rowID {
			fn(&f.rows[i])
		}
	}
	if bump {
		f.version++
	}
}

func (f *fakeSheet) row(rowID int64) models.Move {
	m, _ := f.Row(context.Background(), rowID)
	return m
}

// fakeCarrier keeps driver slots the way a carrier service would
type fakeCarrier struct {
	*clients.CarrierDirectory

	mu         sync.Mutex
	drivers    map[string]*models.DriverSnapshot
	fetchErr   error
	failAssign error
	fetches    int
	calls      []string
	statuses   []clients.StatusUpdate
}

func newFakeCarrier() *fakeCarrier {
	return &fakeCarrier{
		CarrierDirectory: clients.NewCarrierDirectory(
			map[string]string{"BMKJ": "http://bmkj.test", "QTLX": "http://qtlx.test"},
			map[string]string{"BM": "BMKJ", "QT": "QTLX"},
		),
		drivers: make(map[string]*models.DriverSnapshot),
	}
}

func (f *fakeCarrier) addDriver(id, customer string) {
	f.drivers[id] = &models.DriverSnapshot{
		Name:             "Driver " + id,
		AssignedCustomer: customer,
		TruckNumber:      "T-" + id[3:],
		LicensePlate:     "PL-" + id[3:],
	}
}

func (f *fakeCarrier) FetchDriver(ctx context.Context, driver models.Driver) (*models.DriverSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	snap, ok := f.drivers[driver.ID]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "", nil)
	}
	cp := *snap
	return &cp, nil
}

func (f *fakeCarrier) AssignCurrent(ctx context.Context, driver models.Driver, req clients.AssignCurrentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "assign_current:"+req.MoveID)
	if f.failAssign != nil {
		return f.failAssign
	}
	f.drivers[driver.ID].CurrentMoveID = req.MoveID
	return nil
}

func (f *fakeCarrier) UnassignCurrent(ctx context.Context, driver models.Driver) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "unassign_current")
	f.drivers[driver.ID].CurrentMoveID = ""
	return nil
}

func (f *fakeCarrier) AssignNext(ctx context.Context, driver models.Driver, moveID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "assign_next:"+moveID)
	if f.failAssign != nil {
		return f.failAssign
	}
	f.drivers[driver.ID].NextMoveID = moveID
	return nil
}

func (f *fakeCarrier) UnassignNext(ctx context.Context, driver models.Driver) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "unassign_next")
	f.drivers[driver.ID].NextMoveID = ""
	return nil
}

func (f *fakeCarrier) PushStatus(ctx context.Context, driver models.Driver, update clients.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "status:"+update.NewStatus)
	f.statuses = append(f.statuses, update)
	if update.NewStatus == clients.CarrierStatusForceToCompleted {
		snap := f.drivers[driver.ID]
		snap.CurrentMoveID, snap.NextMoveID = snap.NextMoveID, ""
	}
	return nil
}

func (f *fakeCarrier) snapshot(id string) models.DriverSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.drivers[id]
}

// memStore is an in-memory open/completed move store
type memStore struct {
	mu        sync.Mutex
	open      map[uuid.UUID]models.OpenMove
	completed []models.CompletedMove
	createErr error
}

func newMemStore() *memStore {
	return &memStore{open: make(map[uuid.UUID]models.OpenMove)}
}

func (s *memStore) Create(ctx context.Context, m *models.OpenMove) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, o := range s.open {
		if o.DriverID == m.DriverID && o.Slot == m.Slot {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	m.ModifiedAt = m.CreatedAt
	s.open[m.ID] = *m
	return nil
}

func (s *memStore) Find(ctx context.Context, driverID, moveID string, slot models.Slot) (*models.OpenMove, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.open {
		if o.DriverID == driverID && o.Slot == slot && (moveID == "" || o.MoveID == moveID) {
			cp := o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) Update(ctx context.Context, m *models.OpenMove) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.open[m.ID]; !ok {
		return repository.ErrNotFound
	}
	m.ModifiedAt = time.Now()
	s.open[m.ID] = *m
	return nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.open[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.open, id)
	return nil
}

func (s *memStore) List(ctx context.Context) ([]*models.OpenMove, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.OpenMove
	for _, o := range s.open {
		cp := o
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) MigrateFromOpen(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.open[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(s.open, id)
	s.completed = append(s.completed, models.CompletedMove{OpenMove: o, CompletedAt: time.Now()})
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// memAudit collects move log entries
type memAudit struct {
	mu      sync.Mutex
	entries []models.MoveLogEntry
}

func (a *memAudit) Append(ctx context.Context, e *models.MoveLogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e.ID = int64(len(a.entries) + 1)
	a.entries = append(a.entries, *e)
	return nil
}

func (a *memAudit) actions() []models.LogAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.LogAction
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

func (a *memAudit) last() models.MoveLogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[len(a.entries)-1]
}

// memEvents collects transition events
type memEvents struct {
	mu     sync.Mutex
	events []models.TransitionEvent
}

func (p *memEvents) PublishTransition(ctx context.Context, ev models.TransitionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

const (
	testDriver = "BM-0001"
	otherDrv   = "BM-0002"
	customer   = "ACME"
)

var yard = models.Actor{Email: "gate@yard.test", Location: "Yard"}

func sheetMove(id string, rowID int64, origin, destination, carrier string) models.Move {
	return models.Move{
		ID:              id,
		RowID:           rowID,
		ContainerNumber: "CONT" + id,
		LoadKind:        models.LoadFull,
		Priority:        models.PriorityStandard,
		Customer:        customer,
		Origin:          origin,
		Destination:     destination,
		CarrierCode:     carrier,
	}
}

type harness struct {
	sheet   *fakeSheet
	carrier *fakeCarrier
	store   *memStore
	audit   *memAudit
	events  *memEvents
	mirror  *Mirror
	engine  *Engine
}

func newHarness(t *testing.T, rows ...models.Move) *harness {
	t.Helper()

	h := &harness{
		sheet:   newFakeSheet(rows...),
		carrier: newFakeCarrier(),
		store:   newMemStore(),
		audit:   &memAudit{},
		events:  &memEvents{},
	}
	h.carrier.addDriver(testDriver, customer)
	h.carrier.addDriver(otherDrv, customer)

	log := logger.Discard()
	h.mirror = NewMirror(h.sheet, log, nil)
	h.engine = NewEngine(EngineDeps{
		Mirror:    h.mirror,
		Log:       h.sheet,
		Carriers:  h.carrier,
		Open:      h.store,
		Completed: h.store,
		Audit:     h.audit,
		Locker:    lock.NewLocalLocker(time.Second),
		Events:    h.events,
		Logger:    log,
		Locations: []string{"Yard", "Rail", "Port"},
	})
	return h
}
