// Package dice holds the rules of the dice-bluffing game: rolling, bid
// ordering, wildcard counting and challenge resolution. Everything here is a
// pure function over player slices so the authority decides when state moves.
package dice

import (
	"math/rand"

	"github.com/jason-s-yu/tablehost/internal/models"
)

// Wild is the face that counts toward every other face.
const Wild = 1

var (
	ErrBadFace            = models.Illegal("face must be between 1 and 6")
	ErrBadQuantity        = models.Illegal("quantity must be at least 1")
	ErrBidTooLow          = models.Illegal("bid must raise the quantity, or keep it and raise the face")
	ErrBidExceedsPool     = models.Illegal("quantity is larger than the dice in play")
	ErrNothingToChallenge = models.Illegal("there is no bid to challenge")
)

// Roll returns count independent uniform draws in 1..6.
func Roll(r *rand.Rand, count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = r.Intn(6) + 1
	}
	return out
}

// IsValidBid reports whether (quantity, face) may follow current. With no
// current bid any quantity >= 1 and face 1..6 opens. Otherwise the new bid
// must be strictly greater under (quantity, face) ordering; ties never pass.
func IsValidBid(current *models.Bid, quantity, face int) bool {
	return CheckBid(current, quantity, face, 0) == nil
}

// CheckBid is IsValidBid with a reason. A positive ceiling also caps the
// quantity, for tables that forbid bidding past the dice in play.
func CheckBid(current *models.Bid, quantity, face, ceiling int) error {
	if face < 1 || face > 6 {
		return ErrBadFace
	}
	if quantity < 1 {
		return ErrBadQuantity
	}
	if ceiling > 0 && quantity > ceiling {
		return ErrBidExceedsPool
	}
	if current == nil {
		return nil
	}
	next := models.Bid{Quantity: quantity, Face: face}
	if !current.Less(next) {
		return ErrBidTooLow
	}
	return nil
}

// CountMatching counts dice showing face across every player. Ones are wild
// and count toward any other face; a bid on ones counts only ones.
func CountMatching(players []models.Player, face int) int {
	n := 0
	for _, p := range players {
		for _, d := range p.DiceHeld {
			if d == face || (face != Wild && d == Wild) {
				n++
			}
		}
	}
	return n
}

// Outcome is the result of a challenge.
type Outcome struct {
	Actual     int
	LoserID    string
	BidderLost bool
}

// ResolveChallenge settles a challenge against bid. If at least
// bid.Quantity dice match, the challenger loses; otherwise the bidder does.
func ResolveChallenge(players []models.Player, bid models.Bid, challengerID string) Outcome {
	actual := CountMatching(players, bid.Face)
	if actual >= bid.Quantity {
		return Outcome{Actual: actual, LoserID: challengerID}
	}
	return Outcome{Actual: actual, LoserID: bid.BidderID, BidderLost: true}
}

// ApplyLoss takes one die (classic) or one heart (hearts variant) from p and
// reports whether that eliminated them.
func ApplyLoss(p *models.Player, hearts bool) bool {
	if hearts {
		if p.Health > 0 {
			p.Health--
		}
		if p.Health == 0 {
			p.Eliminated = true
		}
	} else {
		if p.DiceCount > 0 {
			p.DiceCount--
		}
		if p.DiceCount == 0 {
			p.Eliminated = true
		}
	}
	if p.Eliminated {
		p.DiceHeld = nil
	}
	return p.Eliminated
}

// StartRound rerolls every surviving player's dice, sized to their current
// count, and returns the number of dice in play.
func StartRound(players []models.Player, r *rand.Rand) int {
	total := 0
	for i := range players {
		p := &players[i]
		if p.Eliminated {
			p.DiceHeld = nil
			continue
		}
		p.DiceHeld = Roll(r, p.DiceCount)
		total += p.DiceCount
	}
	return total
}

// Survivors returns the seat indexes of players still in the game.
func Survivors(players []models.Player) []int {
	var out []int
	for i, p := range players {
		if !p.Eliminated {
			out = append(out, i)
		}
	}
	return out
}

// NextStarter picks who opens the next round: the loser if they survived,
// otherwise the next surviving seat after them. Returns -1 if nobody is left.
func NextStarter(players []models.Player, loserIdx int) int {
	n := len(players)
	if n == 0 {
		return -1
	}
	if loserIdx >= 0 && loserIdx < n && !players[loserIdx].Eliminated {
		return loserIdx
	}
	for step := 1; step <= n; step++ {
		i := ((loserIdx+step)%n + n) % n
		if !players[i].Eliminated {
			return i
		}
	}
	return -1
}
