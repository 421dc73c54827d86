// internal/models/settings.go
package models

import (
	"fmt"
	"time"
)

// GameKind selects which rule set a session runs.
type GameKind string

const (
	GameDice  GameKind = "dice"
	GameRummy GameKind = "rummy"
)

// Difficulty tunes bot play.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// Settings is the session configuration chosen in the lobby. The authority
// owns it; it is frozen once the session leaves the lobby and travels inside
// every full snapshot so late joiners converge without a handshake.
type Settings struct {
	Game       GameKind   `json:"game" yaml:"game"`
	MaxPlayers int        `json:"maxPlayers" yaml:"maxPlayers"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`

	// Hearts switches the dice game to health counters; dice count stays fixed.
	Hearts         bool `json:"hearts" yaml:"hearts"`
	StartingDice   int  `json:"startingDice" yaml:"startingDice"`
	StartingHealth int  `json:"startingHealth" yaml:"startingHealth"`
	// CapBids rejects bids above the number of dice in play.
	CapBids bool `json:"capBids" yaml:"capBids"`

	HandSize     int `json:"handSize" yaml:"handSize"`
	IceThreshold int `json:"iceThreshold" yaml:"iceThreshold"`
	GridWidth    int `json:"gridWidth" yaml:"gridWidth"`
	GridRows     int `json:"gridRows" yaml:"gridRows"`

	BotDelay        time.Duration `json:"botDelay" yaml:"botDelay"`
	RevealDelay     time.Duration `json:"revealDelay" yaml:"revealDelay"`
	DisconnectGrace time.Duration `json:"disconnectGrace" yaml:"disconnectGrace"`
}

// DefaultSettings returns the lobby defaults for a game kind.
func DefaultSettings(kind GameKind) Settings {
	s := Settings{
		Game:            kind,
		MaxPlayers:      6,
		Difficulty:      DifficultyNormal,
		StartingDice:    5,
		StartingHealth:  3,
		HandSize:        14,
		IceThreshold:    30,
		GridWidth:       20,
		GridRows:        8,
		BotDelay:        1500 * time.Millisecond,
		RevealDelay:     3 * time.Second,
		DisconnectGrace: 20 * time.Second,
	}
	if kind == GameRummy {
		s.MaxPlayers = 4
	}
	return s
}

// Validate checks that the settings describe a playable session.
func (s Settings) Validate() error {
	switch s.Game {
	case GameDice, GameRummy:
	default:
		return fmt.Errorf("unknown game %q", s.Game)
	}
	switch s.Difficulty {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
	default:
		return fmt.Errorf("unknown difficulty %q", s.Difficulty)
	}
	if s.MaxPlayers < 2 {
		return fmt.Errorf("maxPlayers must be at least 2, got %d", s.MaxPlayers)
	}
	if s.Game == GameDice {
		if s.StartingDice < 1 {
			return fmt.Errorf("startingDice must be positive, got %d", s.StartingDice)
		}
		if s.Hearts && s.StartingHealth < 1 {
			return fmt.Errorf("startingHealth must be positive in hearts mode, got %d", s.StartingHealth)
		}
	}
	if s.Game == GameRummy {
		if s.HandSize < 1 {
			return fmt.Errorf("handSize must be positive, got %d", s.HandSize)
		}
		if s.GridWidth < 13 {
			return fmt.Errorf("gridWidth must fit a full run (13), got %d", s.GridWidth)
		}
		if s.MaxPlayers*s.HandSize > 106 {
			return fmt.Errorf("%d players cannot each be dealt %d tiles", s.MaxPlayers, s.HandSize)
		}
	}
	return nil
}
