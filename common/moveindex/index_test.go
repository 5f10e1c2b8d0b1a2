package moveindex

import (
	"testing"

	"github.com/shuttleops/movesync/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func move(id, carrier, customer, origin string) models.Move {
	return models.Move{
		ID:          id,
		CarrierCode: carrier,
		Customer:    customer,
		Origin:      origin,
		Destination: "Rail",
		LoadKind:    models.LoadFull,
		Priority:    models.PriorityStandard,
	}
}

func TestCandidateOrdering(t *testing.T) {
	snap := NewSnapshot(1, []models.Move{
		move("M3", "QTLX", "C", "O"),
		move("M2", "", "C", "O"),
		move("M1", "BMKJ", "C", "O"),
	})

	got := snap.Candidates(Query{
		Customer:       "C",
		ExcludeClaimed: true,
		Origin:         "O",
		Carrier:        "BMKJ",
		Direction:      DirectionCurrent,
	})

	assert.Equal(t, []string{models.MoveStandby, models.MoveBobtail, "M1", "M2"}, got)
}

func TestCandidatesKeepLogOrderWithinGroup(t *testing.T) {
	snap := NewSnapshot(1, []models.Move{
		move("A", "", "C", "O"),
		move("B", "BMKJ", "C", "O"),
		move("C", "", "C", "O"),
		move("D", "BMKJ", "C", "O"),
		move("E", "BMKJ", "other", "O"),
		move("F", "BMKJ", "C", "elsewhere"),
	})

	got := snap.Candidates(Query{Customer: "C", Origin: "O", Carrier: "BMKJ", Direction: DirectionOpposite})

	assert.Equal(t, []string{models.MoveStandby, "B", "D", "A", "C"}, got)
}

func TestHeadAlwaysPresent(t *testing.T) {
	got := Empty().Candidates(Query{Customer: "C", Origin: "O", Carrier: "BMKJ"})
	assert.Equal(t, []string{models.MoveStandby, models.MoveBobtail}, got)

	got = Empty().Candidates(Query{Direction: DirectionOpposite})
	assert.Equal(t, []string{models.MoveStandby}, got)
}

func TestClaimedMovesNeverOffered(t *testing.T) {
	claimed := move("M1", "BMKJ", "C", "O")
	claimed.DriverID = "BM-0001"
	snap := NewSnapshot(1, []models.Move{claimed, move("M2", "", "C", "O")})

	q := Query{Customer: "C", ExcludeClaimed: true, Origin: "O", Carrier: "BMKJ"}
	assert.NotContains(t, snap.Candidates(q), "M1")
	assert.False(t, snap.Eligible("M1", q))

	unclaimed := snap.WithMove(models.RowUpdate{DriverID: models.Str("")}.Apply(claimed))
	assert.Contains(t, unclaimed.Candidates(q), "M1")
	assert.NotContains(t, snap.Candidates(q), "M1", "original snapshot untouched")
}

func TestNewSnapshotSkipsBlankAndDedupes(t *testing.T) {
	first := move("M1", "", "C", "O")
	second := move("M1", "BMKJ", "C", "O")
	snap := NewSnapshot(7, []models.Move{{}, first, move("M2", "", "C", "O"), second})

	assert.Equal(t, int64(7), snap.Version())
	assert.Equal(t, 2, snap.Len())
	got, ok := snap.Get("M1")
	require.True(t, ok)
	assert.Equal(t, "BMKJ", got.CarrierCode)
	assert.Equal(t, "M1", snap.Moves()[0].ID)
}

func TestWithMoveAppendsUnknown(t *testing.T) {
	snap := NewSnapshot(3, []models.Move{move("M1", "", "C", "O")})
	next := snap.WithMove(move("M9", "", "C", "O"))

	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, 2, next.Len())
	assert.Equal(t, int64(3), next.Version())
}

func TestFilter(t *testing.T) {
	f, err := CompileFilter(`move.priority != "ST"`)
	require.NoError(t, err)

	hp := move("HP1", "", "C", "O")
	hp.Priority = models.PriorityHigh
	snap := NewSnapshot(1, []models.Move{move("ST1", "", "C", "O"), hp})

	got := snap.Candidates(Query{Customer: "C", Origin: "O", Carrier: "BMKJ", Filter: f})
	assert.Equal(t, []string{models.MoveStandby, models.MoveBobtail, "HP1"}, got)
}

func TestFilterNonBoolDoesNotMatch(t *testing.T) {
	f, err := CompileFilter(`move.customer`)
	require.NoError(t, err)
	assert.False(t, f.Match(move("M1", "", "C", "O")))
}

func TestCompileFilter(t *testing.T) {
	f, err := CompileFilter("")
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.True(t, f.Match(models.Move{}))

	_, err = CompileFilter("move.priority ==")
	assert.Error(t, err)
}
