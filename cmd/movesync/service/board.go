package service

import (
	"context"

	"github.com/shuttleops/movesync/common/models"
	"github.com/shuttleops/movesync/common/moveindex"
)

// Message shown when the current move has dropped out of the log
const msgMoveNotInLog = "Move not found in open move log"

// DriverView is everything the driver page renders
type DriverView struct {
	Driver             models.Driver          `json:"driver"`
	Snapshot           *models.DriverSnapshot `json:"snapshot"`
	AuthorizedLocation string                 `json:"authorized_location"`
	Admin              bool                   `json:"admin"`
	Locations          []string               `json:"locations"`

	CurrentMoveID     string           `json:"current_move_id"`
	Current           *models.OpenMove `json:"current,omitempty"`
	CurrentMessage    string           `json:"current_message,omitempty"`
	CurrentCandidates []string         `json:"current_candidates,omitempty"`

	NextMoveID     string           `json:"next_move_id"`
	Next           *models.OpenMove `json:"next,omitempty"`
	NextCandidates []string         `json:"next_candidates,omitempty"`
	// NextBobtailOrigin is the origin a next-slot bobtail is checked against
	NextBobtailOrigin string `json:"next_bobtail_origin,omitempty"`

	IndexVersion int64 `json:"index_version"`
	// Stale is set when the log could not be refreshed and an older index was used
	Stale bool `json:"stale,omitempty"`
}

// Board builds driver views. It never writes.
type Board struct {
	engine *Engine
}

// NewBoard creates a board reading through the engine's collaborators
func NewBoard(e *Engine) *Board {
	return &Board{engine: e}
}

// Load returns the view for one driver. A failed log refresh falls back to
// the last snapshot instead of failing the page.
func (b *Board) Load(ctx context.Context, actor models.Actor, driverID string) (*DriverView, error) {
	e := b.engine

	driver, err := e.carriers.Resolve(driverID)
	if err != nil {
		return nil, err
	}
	snap, err := e.carriers.FetchDriver(ctx, driver)
	if err != nil {
		return nil, err
	}

	view := &DriverView{
		Driver:             driver,
		Snapshot:           snap,
		AuthorizedLocation: actor.Location,
		Admin:              actor.Admin,
		Locations:          e.locList,
		CurrentMoveID:      snap.CurrentMoveID,
		NextMoveID:         snap.NextMoveID,
	}

	index, err := e.mirror.Refresh(ctx, false)
	if err != nil {
		e.logger.WithDriver(driver.ID).Warn("serving stale move index", "error", err)
		index = e.mirror.Snapshot()
		view.Stale = true
	}
	view.IndexVersion = index.Version()

	s := &session{actor: actor, driver: driver, snapshot: snap, index: index}

	if occupied(snap.CurrentMoveID) {
		view.Current, err = e.findOpen(ctx, driver.ID, snap.CurrentMoveID, models.SlotCurrent)
		if err != nil {
			return nil, err
		}
		if view.Current != nil && !inLog(index, view.Current.MoveID) {
			view.CurrentMessage = msgMoveNotInLog
		}
	} else {
		view.CurrentCandidates = index.Candidates(e.currentQuery(s))
	}

	if occupied(snap.NextMoveID) {
		view.Next, err = e.findOpen(ctx, driver.ID, snap.NextMoveID, models.SlotNext)
		if err != nil {
			return nil, err
		}
	} else {
		view.NextBobtailOrigin = nextBobtailOrigin(s, view.Current)
		if view.Current != nil {
			view.NextCandidates = index.Candidates(e.oppositeQuery(s, view.Current.Destination))
		}
	}

	return view, nil
}

func inLog(index *moveindex.Snapshot, moveID string) bool {
	if moveID == models.MoveBobtail {
		return true
	}
	_, ok := index.Get(moveID)
	return ok
}
