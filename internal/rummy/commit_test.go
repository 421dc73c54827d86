package rummy

import (
	"errors"
	"testing"

	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommitRejectsUnchangedHand(t *testing.T) {
	hand := []models.Tile{tile(1, red), tile(2, red)}
	_, err := ValidateCommit(Commit{StartHand: hand, NewHand: hand, IceBroken: true})
	assert.True(t, errors.Is(err, ErrHandNotReduced))
}

func TestValidateCommitIceBreaking(t *testing.T) {
	tens := []models.Tile{tile(10, red), tile(10, blue), tile(10, black)}
	low := []models.Tile{tile(1, orange), tile(2, orange), tile(3, orange)}
	keep := tile(5, red)

	hand := append(append([]models.Tile{keep}, tens...), low...)

	res, err := ValidateCommit(Commit{
		StartHand: hand,
		NewHand:   []models.Tile{keep},
		NewBoard:  [][]models.Tile{tens, low},
		Threshold: 30,
	})
	require.NoError(t, err)
	assert.True(t, res.BreaksIce)
	assert.Equal(t, 36, res.IceScore)
	assert.Len(t, res.Played, 6)

	_, err = ValidateCommit(Commit{
		StartHand: hand,
		NewHand:   append([]models.Tile{keep}, tens...),
		NewBoard:  [][]models.Tile{low},
		Threshold: 30,
	})
	assert.True(t, errors.Is(err, ErrIceThreshold))
}

func TestValidateCommitBeforeIceCannotExtendBoard(t *testing.T) {
	board := [][]models.Tile{{tile(4, blue), tile(5, blue), tile(6, blue)}}
	seven := tile(7, blue)
	group := []models.Tile{tile(12, red), tile(12, blue), tile(12, black)}
	hand := append([]models.Tile{seven}, group...)

	extended := append(append([]models.Tile{}, board[0]...), seven)
	_, err := ValidateCommit(Commit{
		StartHand:  hand,
		StartBoard: board,
		NewHand:    nil,
		NewBoard:   [][]models.Tile{extended, group},
		Threshold:  30,
	})
	assert.True(t, errors.Is(err, ErrIceNotBroken))

	res, err := ValidateCommit(Commit{
		StartHand:  hand,
		StartBoard: board,
		NewHand:    nil,
		NewBoard:   [][]models.Tile{extended, group},
		IceBroken:  true,
	})
	require.NoError(t, err)
	assert.False(t, res.BreaksIce)
}

func TestValidateCommitRejectsInvalidSet(t *testing.T) {
	a, b := tile(3, red), tile(9, blue)
	_, err := ValidateCommit(Commit{
		StartHand: []models.Tile{a, b, tile(1, red)},
		NewHand:   []models.Tile{},
		NewBoard:  [][]models.Tile{{a, b}},
		IceBroken: true,
	})
	assert.True(t, errors.Is(err, ErrInvalidSet))
}

func TestValidateCommitRejectsTheft(t *testing.T) {
	run := []models.Tile{tile(1, red), tile(2, red), tile(3, red), tile(4, red)}
	group := []models.Tile{tile(8, red), tile(8, blue), tile(8, black)}
	stolen := run[3]

	_, err := ValidateCommit(Commit{
		StartHand:  group,
		StartBoard: [][]models.Tile{run},
		NewHand:    []models.Tile{stolen},
		NewBoard:   [][]models.Tile{run[:3], group},
		IceBroken:  true,
	})
	assert.True(t, errors.Is(err, ErrTileTheft))

	_, err = ValidateCommit(Commit{
		StartHand:  group,
		StartBoard: [][]models.Tile{run},
		NewHand:    []models.Tile{},
		NewBoard:   [][]models.Tile{run[:3], group},
		IceBroken:  true,
	})
	assert.True(t, errors.Is(err, ErrTileMissing))
}

func TestValidateCommitRejectsFabricatedTiles(t *testing.T) {
	hand := []models.Tile{tile(6, red), tile(7, red), tile(2, blue)}
	fake := tile(8, red)
	_, err := ValidateCommit(Commit{
		StartHand: hand,
		NewHand:   []models.Tile{hand[2]},
		NewBoard:  [][]models.Tile{{hand[0], hand[1], fake}},
		IceBroken: true,
	})
	assert.True(t, errors.Is(err, ErrUnknownTile))

	_, err = ValidateCommit(Commit{
		StartHand: hand,
		NewHand:   []models.Tile{hand[2]},
		NewBoard:  [][]models.Tile{{hand[0], hand[1], hand[0]}},
		IceBroken: true,
	})
	assert.Error(t, err)
}

func TestWorkingDraft(t *testing.T) {
	board := [][]models.Tile{{tile(4, blue), tile(5, blue), tile(6, blue)}}
	seven := tile(7, blue)
	spare := tile(1, orange)
	w, err := NewWorking([]models.Tile{seven, spare}, board, 13, 2)
	require.NoError(t, err)
	assert.True(t, w.Pristine())

	require.NoError(t, w.Place(seven.ID, 0, 3))
	assert.False(t, w.Pristine())
	assert.True(t, errors.Is(w.Place(seven.ID, 0, 4), ErrTileNotInHand))
	assert.True(t, errors.Is(w.Lift(0, 0), ErrTileTheft), "pre-existing board tiles stay put")

	newBoard, newHand, res, err := w.Commit(true, 30)
	require.NoError(t, err)
	assert.Len(t, newHand, 1)
	require.Len(t, newBoard, 1)
	assert.Len(t, newBoard[0], 4)
	assert.Len(t, res.Played, 1)

	require.NoError(t, w.Lift(0, 3))
	assert.True(t, w.Pristine())
	_, _, _, err = w.Commit(true, 30)
	assert.True(t, errors.Is(err, ErrHandNotReduced))
}

func TestWorkingMoveAndReset(t *testing.T) {
	a, b, c := tile(9, red), tile(9, blue), tile(9, orange)
	w, err := NewWorking([]models.Tile{a, b, c}, nil, 13, 1)
	require.NoError(t, err)
	require.NoError(t, w.Place(a.ID, 0, 0))
	require.NoError(t, w.Place(b.ID, 0, 1))
	require.NoError(t, w.Place(c.ID, 0, 5))

	_, _, _, err = w.Commit(true, 0)
	assert.True(t, errors.Is(err, ErrInvalidSet), "split tiles are two short sets")

	require.NoError(t, w.Move(0, 5, 0, 2))
	board, hand, _, err := w.Commit(true, 0)
	require.NoError(t, err)
	assert.Empty(t, hand)
	assert.Len(t, board, 1)

	require.NoError(t, w.Reset())
	assert.True(t, w.Pristine())
	assert.Empty(t, w.Grid.Tiles())
}
