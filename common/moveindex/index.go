// Package moveindex holds the in-memory workflow table mirrored from the
// open move log. A Snapshot is immutable once built; refreshes and
// write-backs produce new snapshots instead of editing one in place.
package moveindex

import (
	"github.com/shuttleops/movesync/common/models"
)

// Snapshot is one immutable version of the workflow table
type Snapshot struct {
	version int64
	moves   map[string]models.Move
	order   []string
}

// NewSnapshot builds a snapshot from rows in log order.
// Rows without a move id are skipped; on duplicate ids the last row wins
// but keeps the position of the first.
func NewSnapshot(version int64, rows []models.Move) *Snapshot {
	s := &Snapshot{
		version: version,
		moves:   make(map[string]models.Move, len(rows)),
		order:   make([]string, 0, len(rows)),
	}

	for _, m := range rows {
		if m.ID == "" {
			continue
		}
		if _, seen := s.moves[m.ID]; !seen {
			s.order = append(s.order, m.ID)
		}
		s.moves[m.ID] = m
	}

	return s
}

// Empty returns a snapshot with no moves, used before the first refresh
func Empty() *Snapshot {
	return NewSnapshot(0, nil)
}

// Version returns the log version this snapshot was built from
func (s *Snapshot) Version() int64 {
	return s.version
}

// Len returns the number of moves
func (s *Snapshot) Len() int {
	return len(s.order)
}

// Get looks a move up by id
func (s *Snapshot) Get(moveID string) (models.Move, bool) {
	m, ok := s.moves[moveID]
	return m, ok
}

// Moves returns all moves in log order
func (s *Snapshot) Moves() []models.Move {
	out := make([]models.Move, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.moves[id])
	}
	return out
}

// WithMove returns a new snapshot at the same version with m replacing the
// move of the same id. Unknown ids are appended.
func (s *Snapshot) WithMove(m models.Move) *Snapshot {
	next := &Snapshot{
		version: s.version,
		moves:   make(map[string]models.Move, len(s.moves)+1),
		order:   s.order,
	}
	for id, mv := range s.moves {
		next.moves[id] = mv
	}
	if _, ok := s.moves[m.ID]; !ok {
		next.order = append(append([]string(nil), s.order...), m.ID)
	}
	next.moves[m.ID] = m
	return next
}
