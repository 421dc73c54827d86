// Package bot chooses moves for computer-controlled seats. Every move it
// returns goes back through the authority's normal validation.
package bot

import (
	"sort"

	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/rummy"
)

// MoveKind is the shape of a rummy bot decision.
type MoveKind int

const (
	MoveDraw MoveKind = iota
	MovePlaySets
	MoveAddTile
)

func (k MoveKind) String() string {
	switch k {
	case MovePlaySets:
		return "play-sets"
	case MoveAddTile:
		return "add-tile"
	default:
		return "draw"
	}
}

// Move is a rummy decision.
type Move struct {
	Kind     MoveKind
	Sets     [][]models.Tile // MovePlaySets
	SetIndex int             // MoveAddTile: board set to extend
	Tile     models.Tile     // MoveAddTile
}

// Apply returns the board and hand that result from the move. Draw returns
// the inputs unchanged.
func (m Move) Apply(hand []models.Tile, board [][]models.Tile) ([][]models.Tile, []models.Tile) {
	newBoard := models.CloneSets(board)
	if newBoard == nil {
		newBoard = [][]models.Tile{}
	}
	played := make(map[models.Tile]bool)
	switch m.Kind {
	case MovePlaySets:
		for _, set := range m.Sets {
			newBoard = append(newBoard, append([]models.Tile(nil), set...))
			for _, t := range set {
				played[t] = true
			}
		}
	case MoveAddTile:
		if m.SetIndex >= 0 && m.SetIndex < len(newBoard) {
			newBoard[m.SetIndex] = append(newBoard[m.SetIndex], m.Tile)
			played[m.Tile] = true
		}
	}
	newHand := make([]models.Tile, 0, len(hand))
	for _, t := range hand {
		if !played[t] {
			newHand = append(newHand, t)
		}
	}
	return newBoard, newHand
}

// ChooseRummyMove picks a move for the player holding hand. Groups are
// preferred over runs and jokers complete either. Before the ice is broken
// the bot only plays when the sets it can build together reach threshold,
// and it never touches the board.
func ChooseRummyMove(hand []models.Tile, board [][]models.Tile, iceBroken bool, threshold int) Move {
	sets := assemble(hand)
	if len(sets) > 0 {
		if iceBroken {
			return Move{Kind: MovePlaySets, Sets: sets}
		}
		score := 0
		for _, s := range sets {
			score += rummy.CalculateSetScore(s)
		}
		if score >= threshold {
			return Move{Kind: MovePlaySets, Sets: sets}
		}
		return Move{Kind: MoveDraw}
	}
	if !iceBroken {
		return Move{Kind: MoveDraw}
	}
	for _, t := range hand {
		for i, set := range board {
			if rummy.IsValidSet(append(append([]models.Tile(nil), set...), t)) {
				return Move{Kind: MoveAddTile, SetIndex: i, Tile: t}
			}
		}
	}
	return Move{Kind: MoveDraw}
}

// assemble greedily pulls disjoint sets out of hand: the best group while
// any exists, then the best run.
func assemble(hand []models.Tile) [][]models.Tile {
	left := append([]models.Tile(nil), hand...)
	var out [][]models.Tile
	for {
		set := bestSet(bestGroups(left))
		if set == nil {
			set = bestSet(bestRuns(left))
		}
		if set == nil {
			return out
		}
		out = append(out, set)
		left = without(left, set)
	}
}

func bestSet(cands [][]models.Tile) []models.Tile {
	var best []models.Tile
	bestScore := 0
	for _, c := range cands {
		if !rummy.IsValidSet(c) {
			continue
		}
		if s := rummy.CalculateSetScore(c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func bestGroups(hand []models.Tile) [][]models.Tile {
	plain, jokers := split(hand)
	byValue := make(map[int][]models.Tile)
	for _, t := range plain {
		colors := byValue[t.Value]
		dup := false
		for _, c := range colors {
			if c.Color == t.Color {
				dup = true
				break
			}
		}
		if !dup && len(colors) < 4 {
			byValue[t.Value] = append(colors, t)
		}
	}
	var out [][]models.Tile
	for v := rummy.MaxValue; v >= 1; v-- {
		tiles := byValue[v]
		if len(tiles) == 0 {
			continue
		}
		set := append([]models.Tile(nil), tiles...)
		for j := 0; len(set) < 3 && j < len(jokers); j++ {
			set = append(set, jokers[j])
		}
		if len(set) >= 3 {
			out = append(out, set)
		}
	}
	return out
}

func bestRuns(hand []models.Tile) [][]models.Tile {
	plain, jokers := split(hand)
	byColor := make(map[models.Color]map[int]models.Tile)
	for _, t := range plain {
		if byColor[t.Color] == nil {
			byColor[t.Color] = make(map[int]models.Tile)
		}
		if _, ok := byColor[t.Color][t.Value]; !ok {
			byColor[t.Color][t.Value] = t
		}
	}
	var out [][]models.Tile
	for _, color := range models.Colors {
		values := byColor[color]
		starts := make([]int, 0, len(values))
		for v := range values {
			starts = append(starts, v)
		}
		sort.Ints(starts)
		for _, start := range starts {
			var set []models.Tile
			usedJokers := 0
			for v := start; v <= rummy.MaxValue; v++ {
				if t, ok := values[v]; ok {
					set = append(set, t)
					continue
				}
				if usedJokers == len(jokers) {
					break
				}
				set = append(set, jokers[usedJokers])
				usedJokers++
			}
			for len(set) > 0 && set[len(set)-1].IsJoker && len(set) > 3 {
				set = set[:len(set)-1]
				usedJokers--
			}
			for len(set) < 3 && usedJokers < len(jokers) {
				set = append(set, jokers[usedJokers])
				usedJokers++
			}
			if len(set) >= 3 {
				out = append(out, set)
			}
		}
	}
	return out
}

func split(hand []models.Tile) (plain, jokers []models.Tile) {
	for _, t := range hand {
		if t.IsJoker {
			jokers = append(jokers, t)
		} else {
			plain = append(plain, t)
		}
	}
	return plain, jokers
}

func without(hand, set []models.Tile) []models.Tile {
	used := make(map[models.Tile]bool, len(set))
	for _, t := range set {
		used[t] = true
	}
	out := make([]models.Tile, 0, len(hand))
	for _, t := range hand {
		if !used[t] {
			out = append(out, t)
		}
	}
	return out
}
