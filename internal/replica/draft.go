package replica

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/protocol"
	"github.com/jason-s-yu/tablehost/internal/rummy"
)

// Draft is a copy of the open rummy draft.
type Draft struct {
	Hand []models.Tile
	Grid rummy.Grid
}

// Draft returns the open draft, if it is our turn.
func (r *Replica) Draft() (Draft, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.working == nil {
		return Draft{}, false
	}
	return Draft{
		Hand: append([]models.Tile(nil), r.working.Hand...),
		Grid: r.working.Grid.Clone(),
	}, true
}

// Place moves a tile from the draft hand onto the grid.
func (r *Replica) Place(id uuid.UUID, row, col int) error {
	return r.edit(func(w *rummy.Working) error { return w.Place(id, row, col) })
}

// Lift returns a tile placed this turn to the draft hand.
func (r *Replica) Lift(row, col int) error {
	return r.edit(func(w *rummy.Working) error { return w.Lift(row, col) })
}

// Move relocates a tile on the grid.
func (r *Replica) Move(fromRow, fromCol, toRow, toCol int) error {
	return r.edit(func(w *rummy.Working) error { return w.Move(fromRow, fromCol, toRow, toCol) })
}

// ResetDraft undoes every edit this turn.
func (r *Replica) ResetDraft() error {
	return r.edit(func(w *rummy.Working) error { return w.Reset() })
}

// edit applies fn to the draft and projects the result to the authority.
func (r *Replica) edit(fn func(*rummy.Working) error) error {
	r.mu.Lock()
	if err := r.myTurn(models.GameRummy); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.working == nil {
		r.mu.Unlock()
		return ErrNoDraft
	}
	if err := fn(r.working); err != nil {
		r.mu.Unlock()
		return err
	}
	grid := r.working.Grid.Clone()
	r.mu.Unlock()
	return r.send(protocol.SyncWorking{WorkingGrid: &grid})
}

// Confirm commits the draft as this turn's play.
func (r *Replica) Confirm() error {
	r.mu.Lock()
	if err := r.myTurn(models.GameRummy); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.working == nil {
		r.mu.Unlock()
		return ErrNoDraft
	}
	me := r.state.Current()
	board, hand, _, err := r.working.Commit(me.IceBroken, r.state.Settings.IceThreshold)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.send(protocol.UpdateBoard{BoardSets: board, Hand: hand})
}

// Draw takes a tile and ends the turn. The draft must be untouched.
func (r *Replica) Draw() error {
	r.mu.Lock()
	err := r.myTurn(models.GameRummy)
	if err == nil && r.working != nil && !r.working.Pristine() {
		err = rummy.ErrHandChanged
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.send(protocol.Draw{})
}
