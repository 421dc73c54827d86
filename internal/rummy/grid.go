package rummy

import (
	"errors"
	"fmt"

	"github.com/jason-s-yu/tablehost/internal/models"
)

var (
	ErrSetTooWide     = errors.New("set does not fit in one grid row")
	ErrCellOutOfRange = models.Illegal("cell is outside the board")
	ErrCellOccupied   = models.Illegal("cell already holds a tile")
	ErrCellEmpty      = models.Illegal("cell is empty")
)

// Grid is the physical board: rows of Width cells, nil where empty. Sets are
// read left to right and a row boundary always ends a set, so a set can
// never span two rows.
type Grid struct {
	Width int            `json:"width"`
	Cells []*models.Tile `json:"cells"`
}

// NewGrid returns an empty grid.
func NewGrid(width, rows int) Grid {
	return Grid{Width: width, Cells: make([]*models.Tile, width*rows)}
}

// Rows returns the number of rows.
func (g Grid) Rows() int {
	if g.Width <= 0 {
		return 0
	}
	return len(g.Cells) / g.Width
}

func (g Grid) index(row, col int) (int, bool) {
	if row < 0 || col < 0 || col >= g.Width || row >= g.Rows() {
		return 0, false
	}
	return row*g.Width + col, true
}

// At returns the tile in a cell, or nil.
func (g Grid) At(row, col int) *models.Tile {
	i, ok := g.index(row, col)
	if !ok {
		return nil
	}
	return g.Cells[i]
}

// Put places t in an empty cell.
func (g Grid) Put(row, col int, t models.Tile) error {
	i, ok := g.index(row, col)
	if !ok {
		return ErrCellOutOfRange
	}
	if g.Cells[i] != nil {
		return ErrCellOccupied
	}
	g.Cells[i] = &t
	return nil
}

// Take empties a cell and returns what it held.
func (g Grid) Take(row, col int) (models.Tile, error) {
	i, ok := g.index(row, col)
	if !ok {
		return models.Tile{}, ErrCellOutOfRange
	}
	if g.Cells[i] == nil {
		return models.Tile{}, ErrCellEmpty
	}
	t := *g.Cells[i]
	g.Cells[i] = nil
	return t, nil
}

// Clone deep-copies the grid.
func (g Grid) Clone() Grid {
	out := Grid{Width: g.Width, Cells: make([]*models.Tile, len(g.Cells))}
	for i, c := range g.Cells {
		if c != nil {
			t := *c
			out.Cells[i] = &t
		}
	}
	return out
}

// Grow appends empty rows.
func (g *Grid) Grow(rows int) {
	g.Cells = append(g.Cells, make([]*models.Tile, rows*g.Width)...)
}

// Tiles lists every tile on the grid in reading order.
func (g Grid) Tiles() []models.Tile {
	var out []models.Tile
	for _, c := range g.Cells {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// EncodeGrid lays sets out row by row with one empty cell between sets. A set
// that does not fit in what is left of a row starts on the next one. The
// grid has at least minRows rows.
func EncodeGrid(sets [][]models.Tile, width, minRows int) (Grid, error) {
	if width <= 0 {
		return Grid{}, fmt.Errorf("grid width must be positive, got %d", width)
	}
	var cells []*models.Tile
	row, col := 0, 0
	place := func(r, c int, t models.Tile) {
		need := (r + 1) * width
		if len(cells) < need {
			cells = append(cells, make([]*models.Tile, need-len(cells))...)
		}
		cells[r*width+c] = &t
	}
	for _, set := range sets {
		if len(set) == 0 {
			continue
		}
		if len(set) > width {
			return Grid{}, fmt.Errorf("%w: %d tiles, width %d", ErrSetTooWide, len(set), width)
		}
		if col+len(set) > width {
			row++
			col = 0
		}
		for i, t := range set {
			place(row, col+i, t)
		}
		col += len(set) + 1
		if col >= width {
			row++
			col = 0
		}
	}
	g := Grid{Width: width, Cells: cells}
	if rows := g.Rows(); rows < minRows {
		g.Grow(minRows - rows)
	}
	return g, nil
}

// Decode reads the grid back into sets: runs of adjacent tiles on a row,
// broken by empty cells and by row ends.
func (g Grid) Decode() [][]models.Tile {
	var sets [][]models.Tile
	for r := 0; r < g.Rows(); r++ {
		var cur []models.Tile
		for c := 0; c < g.Width; c++ {
			t := g.Cells[r*g.Width+c]
			if t == nil {
				if len(cur) > 0 {
					sets = append(sets, cur)
					cur = nil
				}
				continue
			}
			cur = append(cur, *t)
		}
		if len(cur) > 0 {
			sets = append(sets, cur)
		}
	}
	return sets
}
