package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is what a guest keeps to reclaim its seat after a dropped link.
type Session struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
	Name     string `json:"name"`
}

// ResultPlayer is one seat in a finished game.
type ResultPlayer struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	IsBot    bool   `json:"isBot"`
	Won      bool   `json:"won"`
	// Remaining is dice or health left in the dice game, tiles left in hand in rummy.
	Remaining int `json:"remaining"`
}

// GameResult is the archived outcome of one game.
type GameResult struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"sessionId"`
	Game      GameKind       `json:"game"`
	Settings  Settings       `json:"settings"`
	WinnerID  string         `json:"winnerId"`
	LoserID   string         `json:"loserId,omitempty"`
	Rounds    int            `json:"rounds"`
	Players   []ResultPlayer `json:"players"`
	StartedAt time.Time      `json:"startedAt"`
	EndedAt   time.Time      `json:"endedAt"`
}

// NewGameResult summarizes a state that has reached GAME_OVER.
func NewGameResult(sessionID uuid.UUID, s *GameState, startedAt time.Time) GameResult {
	res := GameResult{
		ID:        uuid.New(),
		SessionID: sessionID,
		Game:      s.Settings.Game,
		Settings:  s.Settings,
		WinnerID:  s.WinnerID,
		LoserID:   s.LoserID,
		StartedAt: startedAt,
		EndedAt:   time.Now(),
	}
	if s.Dice != nil {
		res.Rounds = s.Dice.Round
	}
	for _, p := range s.Players {
		rp := ResultPlayer{PlayerID: p.ID, Name: p.Name, IsBot: p.IsBot, Won: p.ID == s.WinnerID}
		switch {
		case s.Settings.Game == GameRummy:
			rp.Remaining = len(p.Hand)
		case s.Settings.Hearts:
			rp.Remaining = p.Health
		default:
			rp.Remaining = p.DiceCount
		}
		res.Players = append(res.Players, rp)
	}
	return res
}
