package rummy

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/tablehost/internal/models"
)

var (
	ErrHandNotReduced = models.Illegal("play at least one tile or draw instead")
	ErrInvalidSet     = models.Illegal("every set on the board must be a valid group or run")
	ErrTileTheft      = models.Illegal("tiles already on the board cannot go back into a hand")
	ErrTileMissing    = models.Illegal("a tile that was on the board is missing")
	ErrUnknownTile    = models.Illegal("a tile does not belong to your hand or the board")
	ErrDuplicateTile  = models.Illegal("a tile appears more than once")
	ErrIceThreshold   = models.Illegal("your first play does not reach the ice-breaking score")
	ErrIceNotBroken   = models.Illegal("break the ice before adding to sets already on the board")
	ErrHandChanged    = models.Illegal("put your tiles back before drawing")
)

// Commit is a proposed end of turn: the hand and board the turn started
// with, and the arrangement the player wants to make canonical.
type Commit struct {
	StartHand  []models.Tile
	StartBoard [][]models.Tile
	NewHand    []models.Tile
	NewBoard   [][]models.Tile
	IceBroken  bool
	Threshold  int
}

// CommitResult describes an accepted commit.
type CommitResult struct {
	Played    []models.Tile
	IceScore  int
	BreaksIce bool
}

// ValidateCommit checks a turn commit. The hand must shrink, every set must
// be legal, no tile already on the board may leave it, no tile may appear
// from nowhere, and a player who has not broken the ice must score at least
// the threshold with sets built purely from their own tiles.
func ValidateCommit(c Commit) (CommitResult, error) {
	if len(c.NewHand) >= len(c.StartHand) {
		return CommitResult{}, ErrHandNotReduced
	}
	for _, set := range c.NewBoard {
		if !IsValidSet(set) {
			return CommitResult{}, ErrInvalidSet
		}
	}

	startHand := idSet(c.StartHand)
	startBoard := make(map[uuid.UUID]bool)
	for _, set := range c.StartBoard {
		for _, t := range set {
			startBoard[t.ID] = true
		}
	}
	newHand := idSet(c.NewHand)
	newBoard := make(map[uuid.UUID]bool)
	for _, set := range c.NewBoard {
		for _, t := range set {
			if newBoard[t.ID] {
				return CommitResult{}, ErrDuplicateTile
			}
			newBoard[t.ID] = true
		}
	}
	if len(newHand) != len(c.NewHand) {
		return CommitResult{}, ErrDuplicateTile
	}

	for id := range startBoard {
		if newBoard[id] {
			continue
		}
		if newHand[id] {
			return CommitResult{}, ErrTileTheft
		}
		return CommitResult{}, ErrTileMissing
	}
	for id := range newHand {
		if !startHand[id] {
			return CommitResult{}, ErrUnknownTile
		}
	}
	if len(newBoard)+len(newHand) != len(startBoard)+len(startHand) {
		return CommitResult{}, ErrUnknownTile
	}

	var res CommitResult
	played := make(map[uuid.UUID]bool)
	for _, t := range c.StartHand {
		if !newHand[t.ID] {
			played[t.ID] = true
			res.Played = append(res.Played, t)
		}
	}
	for id := range newBoard {
		if !startBoard[id] && !played[id] {
			return CommitResult{}, ErrUnknownTile
		}
	}

	if c.IceBroken {
		return res, nil
	}
	for _, set := range c.NewBoard {
		fromHand := 0
		for _, t := range set {
			if played[t.ID] {
				fromHand++
			}
		}
		switch {
		case fromHand == 0:
		case fromHand == len(set):
			res.IceScore += CalculateSetScore(set)
		default:
			return CommitResult{}, ErrIceNotBroken
		}
	}
	if res.IceScore < c.Threshold {
		return CommitResult{}, ErrIceThreshold
	}
	res.BreaksIce = true
	return res, nil
}

// SameTiles reports whether a and b hold the same tile identities, in any
// order.
func SameTiles(a, b []models.Tile) bool {
	if len(a) != len(b) {
		return false
	}
	ids := idSet(a)
	for _, t := range b {
		if !ids[t.ID] {
			return false
		}
	}
	return len(ids) == len(a)
}

func idSet(tiles []models.Tile) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool, len(tiles))
	for _, t := range tiles {
		out[t.ID] = true
	}
	return out
}
