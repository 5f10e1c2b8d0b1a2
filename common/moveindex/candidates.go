package moveindex

import (
	"github.com/shuttleops/movesync/common/models"
)

// Direction picks which synthetic entries head a candidate list
type Direction int

const (
	// DirectionCurrent lists moves leaving the driver's location
	DirectionCurrent Direction = iota
	// DirectionOpposite lists moves leaving the current move's destination
	DirectionOpposite
)

// Head returns the synthetic ids that always lead the list
func (d Direction) Head() []string {
	if d == DirectionCurrent {
		return []string{models.MoveStandby, models.MoveBobtail}
	}
	return []string{models.MoveStandby}
}

// Query selects candidate moves for one driver and direction
type Query struct {
	Customer       string
	ExcludeClaimed bool
	Origin         string
	Carrier        string
	Direction      Direction
	Filter         *Filter
}

// Eligible reports whether m may be offered under q, ignoring ordering
func (q Query) Eligible(m models.Move) bool {
	if q.ExcludeClaimed && m.Claimed() {
		return false
	}
	if m.Customer != q.Customer || m.Origin != q.Origin {
		return false
	}
	if m.CarrierCode != "" && m.CarrierCode != q.Carrier {
		return false
	}
	return q.Filter.Match(m)
}

// Candidates returns the ordered move ids offered under q: the synthetic
// head, then moves already tagged with the driver's carrier, then moves with
// no carrier yet. Each group keeps log order; other carriers are excluded.
func (s *Snapshot) Candidates(q Query) []string {
	out := q.Direction.Head()

	var open []string
	for _, id := range s.order {
		m := s.moves[id]
		if !q.Eligible(m) {
			continue
		}
		if m.CarrierCode == q.Carrier {
			out = append(out, id)
		} else {
			open = append(open, id)
		}
	}

	return append(out, open...)
}

// Eligible reports whether moveID exists and may be offered under q
func (s *Snapshot) Eligible(moveID string, q Query) bool {
	m, ok := s.moves[moveID]
	return ok && q.Eligible(m)
}
