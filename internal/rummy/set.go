package rummy

import (
	"sort"

	"github.com/jason-s-yu/tablehost/internal/models"
)

// SetKind is the shape of a board set.
type SetKind int

const (
	SetInvalid SetKind = iota
	SetGroup
	SetRun
)

func (k SetKind) String() string {
	switch k {
	case SetGroup:
		return "group"
	case SetRun:
		return "run"
	default:
		return "invalid"
	}
}

const (
	minSetSize   = 3
	maxGroupSize = 4
)

// Classify returns the shape of tiles. Groups are checked first, so a set
// like [7, joker, joker] scores as a group of sevens.
func Classify(tiles []models.Tile) SetKind {
	if len(tiles) < minSetSize {
		return SetInvalid
	}
	if _, ok := groupValue(tiles); ok {
		return SetGroup
	}
	if _, _, ok := runBounds(tiles); ok {
		return SetRun
	}
	return SetInvalid
}

// IsValidSet reports whether tiles form a group or a run of at least three.
func IsValidSet(tiles []models.Tile) bool {
	return Classify(tiles) != SetInvalid
}

// CalculateSetScore returns the point value of a valid set, or 0. Jokers in
// a group take the group's value. Jokers in a run fill internal gaps first,
// then extend the run upward toward 13, then downward toward 1.
func CalculateSetScore(tiles []models.Tile) int {
	switch Classify(tiles) {
	case SetGroup:
		v, _ := groupValue(tiles)
		return v * len(tiles)
	case SetRun:
		lo, hi, _ := runBounds(tiles)
		return (lo + hi) * (hi - lo + 1) / 2
	default:
		return 0
	}
}

// RunValues returns the concrete values a valid run covers, jokers included.
func RunValues(tiles []models.Tile) []int {
	lo, hi, ok := runBounds(tiles)
	if !ok {
		return nil
	}
	out := make([]int, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		out = append(out, v)
	}
	return out
}

func splitJokers(tiles []models.Tile) (plain []models.Tile, jokers int) {
	for _, t := range tiles {
		if t.IsJoker {
			jokers++
		} else {
			plain = append(plain, t)
		}
	}
	return plain, jokers
}

func groupValue(tiles []models.Tile) (int, bool) {
	if len(tiles) < minSetSize || len(tiles) > maxGroupSize {
		return 0, false
	}
	plain, _ := splitJokers(tiles)
	if len(plain) == 0 {
		return 0, false
	}
	value := plain[0].Value
	seen := make(map[models.Color]bool, len(plain))
	for _, t := range plain {
		if t.Value != value || seen[t.Color] {
			return 0, false
		}
		seen[t.Color] = true
	}
	return value, true
}

// runBounds returns the low and high values of tiles read as a run, with
// jokers assigned.
func runBounds(tiles []models.Tile) (lo, hi int, ok bool) {
	if len(tiles) < minSetSize || len(tiles) > MaxValue {
		return 0, 0, false
	}
	plain, jokers := splitJokers(tiles)
	if len(plain) == 0 {
		return 0, 0, false
	}
	color := plain[0].Color
	values := make([]int, len(plain))
	for i, t := range plain {
		if t.Color != color || t.Value < 1 || t.Value > MaxValue {
			return 0, 0, false
		}
		values[i] = t.Value
	}
	sort.Ints(values)
	for i := 1; i < len(values); i++ {
		if values[i] == values[i-1] {
			return 0, 0, false
		}
	}
	lo, hi = values[0], values[len(values)-1]
	gaps := (hi - lo + 1) - len(values)
	if gaps > jokers {
		return 0, 0, false
	}
	left := jokers - gaps
	up := MaxValue - hi
	if up > left {
		up = left
	}
	hi += up
	lo -= left - up
	return lo, hi, lo >= 1
}
