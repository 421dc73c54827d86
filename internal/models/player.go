// internal/models/player.go
package models

// HostID is the reserved identity of the authority's own seat.
const HostID = "host"

// Player is one seat at the table. Holdings are game specific: DiceHeld and
// DiceCount for the dice game, Hand for rummy. DiceCount and len(Hand) are the
// only truth for how many pieces a player has left.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsBot     bool   `json:"isBot"`
	Avatar    int    `json:"avatar"`
	Connected bool   `json:"connected"`

	// dice game
	DiceHeld  []int `json:"diceHeld,omitempty"`
	DiceCount int   `json:"diceCount,omitempty"`
	Health    int   `json:"health,omitempty"` // hearts variant only

	// rummy
	Hand      []Tile `json:"hand,omitempty"`
	IceBroken bool   `json:"iceBroken,omitempty"`

	Eliminated bool `json:"eliminated"`
}

// Clone returns a deep copy so snapshots never alias canonical slices.
func (p Player) Clone() Player {
	out := p
	if p.DiceHeld != nil {
		out.DiceHeld = append([]int(nil), p.DiceHeld...)
	}
	if p.Hand != nil {
		out.Hand = append([]Tile(nil), p.Hand...)
	}
	return out
}

// Active reports whether the player still takes turns.
func (p *Player) Active() bool {
	return p != nil && !p.Eliminated
}
