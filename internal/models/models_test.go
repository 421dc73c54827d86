package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBidLess(t *testing.T) {
	assert.True(t, Bid{Quantity: 2, Face: 6}.Less(Bid{Quantity: 3, Face: 1}))
	assert.True(t, Bid{Quantity: 3, Face: 2}.Less(Bid{Quantity: 3, Face: 5}))
	assert.False(t, Bid{Quantity: 3, Face: 5}.Less(Bid{Quantity: 3, Face: 5}))
	assert.False(t, Bid{Quantity: 4, Face: 1}.Less(Bid{Quantity: 3, Face: 6}))
}

func TestNextActiveSkipsEliminated(t *testing.T) {
	s := GameState{Players: []Player{{ID: "a"}, {ID: "b", Eliminated: true}, {ID: "c"}}}
	assert.Equal(t, 2, s.NextActive(0))
	assert.Equal(t, 0, s.NextActive(2))

	s.Players[0].Eliminated = true
	s.Players[2].Eliminated = true
	assert.Equal(t, -1, s.NextActive(0))
}

func TestMergePartialLeavesAbsentFieldsAlone(t *testing.T) {
	mirror := GameState{
		Version: 3,
		Phase:   PhasePlaying,
		Players: []Player{{ID: "host", Name: "Ana"}},
		Log:     []LogEntry{{Seq: 1, Message: "hello"}},
	}
	idx := 0
	mirror.Merge(Snapshot{
		Version:            4,
		CurrentPlayerIndex: &idx,
		Log:                []LogEntry{{Seq: 1, Message: "hello"}, {Seq: 2, Message: "bid"}},
	})

	assert.Equal(t, 4, mirror.Version)
	assert.Equal(t, PhasePlaying, mirror.Phase)
	require.Len(t, mirror.Players, 1)
	assert.Equal(t, "Ana", mirror.Players[0].Name)
	require.Len(t, mirror.Log, 2)
	assert.Equal(t, "bid", mirror.Log[1].Message)
}

func TestMergeIgnoresStaleSnapshot(t *testing.T) {
	mirror := GameState{Version: 5, Phase: PhasePlaying}
	over := PhaseGameOver
	assert.False(t, mirror.Merge(Snapshot{Version: 4, Phase: &over}))
	assert.Equal(t, PhasePlaying, mirror.Phase)
}

func TestFullSnapshotRoundTrip(t *testing.T) {
	src := GameState{
		Version:  7,
		Settings: DefaultSettings(GameDice),
		Phase:    PhasePlaying,
		Players:  []Player{{ID: "host", DiceHeld: []int{1, 2}, DiceCount: 2}},
		Dice:     &DiceState{Round: 2, CurrentBid: &Bid{BidderID: "host", Quantity: 2, Face: 3}, BidHistory: []Bid{}, TotalDice: 2},
		Log:      []LogEntry{{Seq: 1}, {Seq: 2}},
	}
	var mirror GameState
	mirror.Merge(FullSnapshot(&src))
	assert.Equal(t, src, mirror)

	// the mirror must not alias canonical slices
	mirror.Players[0].DiceHeld[0] = 6
	assert.Equal(t, 1, src.Players[0].DiceHeld[0])
}

func TestIllegalMoveErrorsAreDistinguishable(t *testing.T) {
	a := Illegal("too low")
	b := Illegal("bad set")
	assert.True(t, errors.Is(a, ErrIllegalMove))
	assert.False(t, errors.Is(a, b))
	var target *IllegalMoveError
	require.True(t, errors.As(a, &target))
	assert.Equal(t, "too low", target.Reason)
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings(GameDice).Validate())
	assert.NoError(t, DefaultSettings(GameRummy).Validate())

	s := DefaultSettings(GameRummy)
	s.GridWidth = 10
	assert.Error(t, s.Validate())

	s = DefaultSettings(GameDice)
	s.Game = "chess"
	assert.Error(t, s.Validate())
}
