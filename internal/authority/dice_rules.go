package authority

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jason-s-yu/tablehost/internal/bot"
	"github.com/jason-s-yu/tablehost/internal/dice"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/protocol"
	"github.com/sirupsen/logrus"
)

type botDeps struct {
	suggester bot.Suggester
	timeout   time.Duration
	logger    *logrus.Logger
}

type diceRules struct {
	bots botDeps
}

func (d *diceRules) Setup(s *models.GameState, r *rand.Rand) {
	for i := range s.Players {
		p := &s.Players[i]
		p.DiceCount = s.Settings.StartingDice
		p.Health = 0
		if s.Settings.Hearts {
			p.Health = s.Settings.StartingHealth
		}
		p.Eliminated = false
	}
	s.Dice = &models.DiceState{Round: 1, BidHistory: []models.Bid{}}
	s.Dice.TotalDice = dice.StartRound(s.Players, r)
	s.CurrentPlayerIndex = 0
	s.Phase = models.PhasePlaying
}

func (d *diceRules) OnJoin(s *models.GameState, p *models.Player) {
	p.DiceCount = s.Settings.StartingDice
}

func (d *diceRules) Validate(s *models.GameState, _ string, msg protocol.Message) (protocol.Message, error) {
	switch m := msg.(type) {
	case protocol.Bid:
		if err := dice.CheckBid(s.Dice.CurrentBid, m.Quantity, m.Face, s.BidCeiling()); err != nil {
			return nil, err
		}
		return m, nil
	case protocol.Challenge:
		if s.Dice.CurrentBid == nil {
			return nil, dice.ErrNothingToChallenge
		}
		return m, nil
	default:
		return nil, ErrWrongGame
	}
}

func (d *diceRules) Apply(s *models.GameState, playerID string, msg protocol.Message) Result {
	switch m := msg.(type) {
	case protocol.Bid:
		bid := models.Bid{BidderID: playerID, Quantity: m.Quantity, Face: m.Face}
		s.Dice.CurrentBid = &bid
		s.Dice.BidHistory = append(s.Dice.BidHistory, bid)
		s.CurrentPlayerIndex = s.NextActive(s.CurrentPlayerIndex)
		return Result{
			Log:       []string{fmt.Sprintf("bids %d × %d", bid.Quantity, bid.Face)},
			TurnEnded: true,
		}
	case protocol.Challenge:
		bid := *s.Dice.CurrentBid
		out := dice.ResolveChallenge(s.Players, bid, playerID)
		s.Dice.Reveal = &models.ChallengeReveal{
			Bid:          bid,
			ChallengerID: playerID,
			Actual:       out.Actual,
			LoserID:      out.LoserID,
		}
		s.Phase = models.PhaseRoundEnd
		return Result{
			Log: []string{fmt.Sprintf("challenges %s's bid of %d × %d: there are %d",
				nameOf(s, bid.BidderID), bid.Quantity, bid.Face, out.Actual)},
			TurnEnded: true,
		}
	}
	return Result{}
}

func (d *diceRules) Resolve(s *models.GameState, r *rand.Rand) Result {
	rev := s.Dice.Reveal
	if rev == nil {
		return Result{}
	}
	idx := s.PlayerIndex(rev.LoserID)
	var res Result
	if idx >= 0 {
		p := &s.Players[idx]
		if dice.ApplyLoss(p, s.Settings.Hearts) {
			res.Log = append(res.Log, fmt.Sprintf("%s is out", p.Name))
		} else if s.Settings.Hearts {
			res.Log = append(res.Log, fmt.Sprintf("%s loses a heart (%d left)", p.Name, p.Health))
		} else {
			res.Log = append(res.Log, fmt.Sprintf("%s loses a die (%d left)", p.Name, p.DiceCount))
		}
	}
	if len(dice.Survivors(s.Players)) <= 1 {
		return res
	}
	s.Dice.Round++
	s.Dice.CurrentBid = nil
	s.Dice.BidHistory = []models.Bid{}
	s.Dice.Reveal = nil
	s.Dice.TotalDice = dice.StartRound(s.Players, r)
	s.CurrentPlayerIndex = dice.NextStarter(s.Players, idx)
	s.Phase = models.PhasePlaying
	res.Log = append(res.Log, fmt.Sprintf("round %d begins with %d dice", s.Dice.Round, s.Dice.TotalDice))
	res.TurnEnded = true
	return res
}

func (d *diceRules) CheckTerminal(s *models.GameState) bool {
	if s.Dice == nil {
		return false
	}
	alive := dice.Survivors(s.Players)
	if len(alive) > 1 {
		return false
	}
	if len(alive) == 1 {
		s.WinnerID = s.Players[alive[0]].ID
	}
	if s.Dice.Reveal != nil {
		s.LoserID = s.Dice.Reveal.LoserID
	}
	s.Phase = models.PhaseGameOver
	return true
}

func (d *diceRules) AutoAction(s *models.GameState, playerID string) protocol.Message {
	return suggestionMessage(bot.Fallback(diceRequest(s, playerID)))
}

func (d *diceRules) BotMove(ctx context.Context, s *models.GameState, playerID string) protocol.Message {
	req := diceRequest(s, playerID)
	return suggestionMessage(bot.SuggestWithFallback(ctx, d.bots.suggester, req, d.bots.timeout, d.bots.logger))
}

func (d *diceRules) Reset(s *models.GameState) {
	s.Dice = nil
	for i := range s.Players {
		p := &s.Players[i]
		p.DiceHeld = nil
		p.DiceCount = s.Settings.StartingDice
		p.Health = 0
		p.Eliminated = false
	}
}

func diceRequest(s *models.GameState, playerID string) bot.Request {
	req := bot.Request{
		PlayerID:   playerID,
		Difficulty: s.Settings.Difficulty,
		Players:    len(dice.Survivors(s.Players)),
	}
	if p := s.Player(playerID); p != nil {
		req.OwnDice = append([]int(nil), p.DiceHeld...)
	}
	if s.Dice != nil {
		req.TotalDice = s.Dice.TotalDice
		req.BidHistory = append([]models.Bid(nil), s.Dice.BidHistory...)
		if s.Dice.CurrentBid != nil {
			b := *s.Dice.CurrentBid
			req.CurrentBid = &b
		}
	}
	return req
}

func suggestionMessage(s bot.Suggestion) protocol.Message {
	if s.Challenge {
		return protocol.Challenge{}
	}
	return protocol.Bid{Quantity: s.Quantity, Face: s.Face}
}

func nameOf(s *models.GameState, id string) string {
	if p := s.Player(id); p != nil {
		return p.Name
	}
	return id
}
