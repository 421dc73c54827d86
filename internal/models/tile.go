package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Color is one of the four tile colors. Jokers carry no color.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorBlack  Color = "black"
	ColorOrange Color = "orange"
)

// Colors lists the tile colors in their canonical sort order.
var Colors = []Color{ColorRed, ColorBlue, ColorBlack, ColorOrange}

// ColorRank orders colors for hand sorting.
func ColorRank(c Color) int {
	for i, cc := range Colors {
		if cc == c {
			return i
		}
	}
	return len(Colors)
}

// Tile is a single rummy tile. Value is 1..13, or 0 for a joker. The ID is
// assigned when the deck is generated and never reused.
type Tile struct {
	ID      uuid.UUID `json:"id"`
	Value   int       `json:"value"`
	Color   Color     `json:"color,omitempty"`
	IsJoker bool      `json:"isJoker,omitempty"`
}

func (t Tile) String() string {
	if t.IsJoker {
		return "J*"
	}
	return fmt.Sprintf("%s%d", string(t.Color[0]), t.Value)
}

// TileIDs collects the identities of tiles in order.
func TileIDs(tiles []Tile) []uuid.UUID {
	ids := make([]uuid.UUID, len(tiles))
	for i, t := range tiles {
		ids[i] = t.ID
	}
	return ids
}

// CloneSets deep-copies a board.
func CloneSets(sets [][]Tile) [][]Tile {
	if sets == nil {
		return nil
	}
	out := make([][]Tile, len(sets))
	for i, s := range sets {
		out[i] = append([]Tile(nil), s...)
	}
	return out
}
