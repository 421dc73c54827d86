package authority

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tablehost/internal/bot"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/protocol"
	"github.com/jason-s-yu/tablehost/internal/rummy"
)

// rummyRules keeps the draw pool, which never leaves the authority.
type rummyRules struct {
	pool   []models.Tile
	passes int // consecutive draws against an empty pool
}

func (g *rummyRules) Setup(s *models.GameState, r *rand.Rand) {
	pool := rummy.GenerateDeck(r)
	for i := range s.Players {
		p := &s.Players[i]
		p.Hand, pool = rummy.Deal(pool, s.Settings.HandSize)
		rummy.SortByColor(p.Hand)
		p.IceBroken = false
		p.Eliminated = false
	}
	g.pool = pool
	g.passes = 0
	s.Rummy = &models.RummyState{Board: [][]models.Tile{}, PoolCount: len(pool)}
	s.CurrentPlayerIndex = 0
	s.Phase = models.PhasePlaying
}

func (g *rummyRules) OnJoin(*models.GameState, *models.Player) {}

// Validate replaces every submitted tile with the canonical tile of the same
// identity before checking the commit, so a guest cannot relabel tiles.
func (g *rummyRules) Validate(s *models.GameState, playerID string, msg protocol.Message) (protocol.Message, error) {
	switch m := msg.(type) {
	case protocol.Draw:
		return m, nil
	case protocol.UpdateBoard:
		p := s.Player(playerID)
		known := make(map[uuid.UUID]models.Tile)
		for _, t := range p.Hand {
			known[t.ID] = t
		}
		for _, set := range s.Rummy.Board {
			for _, t := range set {
				known[t.ID] = t
			}
		}
		canon := protocol.UpdateBoard{
			BoardSets: make([][]models.Tile, 0, len(m.BoardSets)),
			Hand:      make([]models.Tile, 0, len(m.Hand)),
		}
		for _, set := range m.BoardSets {
			if len(set) == 0 {
				continue
			}
			out := make([]models.Tile, 0, len(set))
			for _, t := range set {
				c, ok := known[t.ID]
				if !ok {
					return nil, rummy.ErrUnknownTile
				}
				out = append(out, c)
			}
			canon.BoardSets = append(canon.BoardSets, out)
		}
		for _, t := range m.Hand {
			c, ok := known[t.ID]
			if !ok {
				return nil, rummy.ErrUnknownTile
			}
			canon.Hand = append(canon.Hand, c)
		}
		if _, err := rummy.ValidateCommit(g.commit(s, p, canon)); err != nil {
			return nil, err
		}
		return canon, nil
	default:
		return nil, ErrWrongGame
	}
}

func (g *rummyRules) commit(s *models.GameState, p *models.Player, m protocol.UpdateBoard) rummy.Commit {
	return rummy.Commit{
		StartHand:  p.Hand,
		StartBoard: s.Rummy.Board,
		NewHand:    m.Hand,
		NewBoard:   m.BoardSets,
		IceBroken:  p.IceBroken,
		Threshold:  s.Settings.IceThreshold,
	}
}

func (g *rummyRules) Apply(s *models.GameState, playerID string, msg protocol.Message) Result {
	p := s.Player(playerID)
	var line string
	switch m := msg.(type) {
	case protocol.UpdateBoard:
		res, _ := rummy.ValidateCommit(g.commit(s, p, m))
		s.Rummy.Board = models.CloneSets(m.BoardSets)
		p.Hand = append([]models.Tile(nil), m.Hand...)
		g.passes = 0
		line = fmt.Sprintf("plays %d tile(s)", len(res.Played))
		if res.BreaksIce {
			p.IceBroken = true
			line = fmt.Sprintf("breaks the ice with %d points, playing %d tile(s)", res.IceScore, len(res.Played))
		}
	case protocol.Draw:
		if len(g.pool) == 0 {
			g.passes++
			line = "passes; the pool is empty"
			break
		}
		p.Hand = append(p.Hand, g.pool[0])
		g.pool = g.pool[1:]
		s.Rummy.PoolCount = len(g.pool)
		g.passes = 0
		line = "draws a tile"
	default:
		return Result{}
	}
	if len(p.Hand) > 0 {
		s.CurrentPlayerIndex = s.NextActive(s.CurrentPlayerIndex)
	}
	return Result{Log: []string{line}, TurnEnded: true}
}

func (g *rummyRules) Resolve(*models.GameState, *rand.Rand) Result { return Result{} }

// CheckTerminal ends the game when a hand is empty, or when every player has
// passed in a row against an empty pool. In the second case the lowest hand
// penalty wins.
func (g *rummyRules) CheckTerminal(s *models.GameState) bool {
	if s.Rummy == nil {
		return false
	}
	winner := -1
	for i, p := range s.Players {
		if !p.Eliminated && len(p.Hand) == 0 {
			winner = i
			break
		}
	}
	if winner < 0 {
		active := 0
		for _, p := range s.Players {
			if !p.Eliminated {
				active++
			}
		}
		if g.passes < active {
			return false
		}
		best := -1
		for i, p := range s.Players {
			if !p.Eliminated && (best < 0 || rummy.HandPenalty(p.Hand) < rummy.HandPenalty(s.Players[best].Hand)) {
				best = i
			}
		}
		winner = best
	}
	worst := -1
	for i, p := range s.Players {
		if i != winner && (worst < 0 || rummy.HandPenalty(p.Hand) > rummy.HandPenalty(s.Players[worst].Hand)) {
			worst = i
		}
	}
	if winner >= 0 {
		s.WinnerID = s.Players[winner].ID
	}
	if worst >= 0 {
		s.LoserID = s.Players[worst].ID
	}
	s.Phase = models.PhaseGameOver
	return true
}

func (g *rummyRules) AutoAction(*models.GameState, string) protocol.Message {
	return protocol.Draw{}
}

func (g *rummyRules) BotMove(_ context.Context, s *models.GameState, playerID string) protocol.Message {
	p := s.Player(playerID)
	if p == nil || s.Rummy == nil {
		return protocol.Draw{}
	}
	move := bot.ChooseRummyMove(p.Hand, s.Rummy.Board, p.IceBroken, s.Settings.IceThreshold)
	if move.Kind == bot.MoveDraw {
		return protocol.Draw{}
	}
	board, hand := move.Apply(p.Hand, s.Rummy.Board)
	return protocol.UpdateBoard{BoardSets: board, Hand: hand}
}

func (g *rummyRules) Reset(s *models.GameState) {
	s.Rummy = nil
	g.pool = nil
	g.passes = 0
	for i := range s.Players {
		s.Players[i].Hand = nil
		s.Players[i].IceBroken = false
		s.Players[i].Eliminated = false
	}
}
