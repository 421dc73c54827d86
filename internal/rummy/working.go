package rummy

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/tablehost/internal/models"
)

var ErrTileNotInHand = models.Illegal("that tile is not in your hand")

// Working is a player's uncommitted turn: a draft hand and a draft grid
// that start as copies of the canonical hand and board. Nothing here is
// canonical until Commit succeeds and the authority accepts it.
type Working struct {
	StartHand  []models.Tile
	StartBoard [][]models.Tile
	Hand       []models.Tile
	Grid       Grid

	width, rows int
	onBoard     map[uuid.UUID]bool
}

// NewWorking opens a draft over the given hand and board.
func NewWorking(hand []models.Tile, board [][]models.Tile, width, rows int) (*Working, error) {
	w := &Working{
		StartHand:  append([]models.Tile(nil), hand...),
		StartBoard: models.CloneSets(board),
		width:      width,
		rows:       rows,
	}
	if err := w.Reset(); err != nil {
		return nil, err
	}
	return w, nil
}

// Reset discards every edit.
func (w *Working) Reset() error {
	g, err := EncodeGrid(w.StartBoard, w.width, w.rows)
	if err != nil {
		return err
	}
	w.Grid = g
	w.Hand = append([]models.Tile(nil), w.StartHand...)
	w.onBoard = make(map[uuid.UUID]bool)
	for _, set := range w.StartBoard {
		for _, t := range set {
			w.onBoard[t.ID] = true
		}
	}
	w.spareRow()
	return nil
}

// Place moves a tile from the draft hand into an empty cell.
func (w *Working) Place(id uuid.UUID, row, col int) error {
	idx := -1
	for i, t := range w.Hand {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrTileNotInHand
	}
	if err := w.Grid.Put(row, col, w.Hand[idx]); err != nil {
		return err
	}
	w.Hand = append(w.Hand[:idx], w.Hand[idx+1:]...)
	w.spareRow()
	return nil
}

// Lift returns a tile from the grid to the draft hand. Only tiles that came
// from this hand during the turn may be lifted.
func (w *Working) Lift(row, col int) error {
	t := w.Grid.At(row, col)
	if t == nil {
		if _, ok := w.Grid.index(row, col); !ok {
			return ErrCellOutOfRange
		}
		return ErrCellEmpty
	}
	if w.onBoard[t.ID] {
		return ErrTileTheft
	}
	tile, err := w.Grid.Take(row, col)
	if err != nil {
		return err
	}
	w.Hand = append(w.Hand, tile)
	return nil
}

// Move slides a tile between two grid cells.
func (w *Working) Move(fromRow, fromCol, toRow, toCol int) error {
	if w.Grid.At(toRow, toCol) != nil {
		return ErrCellOccupied
	}
	if _, ok := w.Grid.index(toRow, toCol); !ok {
		return ErrCellOutOfRange
	}
	t, err := w.Grid.Take(fromRow, fromCol)
	if err != nil {
		return err
	}
	if err := w.Grid.Put(toRow, toCol, t); err != nil {
		return err
	}
	w.spareRow()
	return nil
}

// Pristine reports whether the draft hand still matches the starting hand.
func (w *Working) Pristine() bool {
	return SameTiles(w.Hand, w.StartHand)
}

// Commit decodes the grid and validates the draft as a turn commit.
func (w *Working) Commit(iceBroken bool, threshold int) ([][]models.Tile, []models.Tile, CommitResult, error) {
	board := w.Grid.Decode()
	hand := append([]models.Tile(nil), w.Hand...)
	res, err := ValidateCommit(Commit{
		StartHand:  w.StartHand,
		StartBoard: w.StartBoard,
		NewHand:    hand,
		NewBoard:   board,
		IceBroken:  iceBroken,
		Threshold:  threshold,
	})
	if err != nil {
		return nil, nil, CommitResult{}, err
	}
	return board, hand, res, nil
}

// spareRow keeps one empty row at the bottom so there is always room to
// start a new set.
func (w *Working) spareRow() {
	rows := w.Grid.Rows()
	if rows == 0 {
		w.Grid.Grow(1)
		return
	}
	for c := 0; c < w.Grid.Width; c++ {
		if w.Grid.Cells[(rows-1)*w.Grid.Width+c] != nil {
			w.Grid.Grow(1)
			return
		}
	}
}
