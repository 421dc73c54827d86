// internal/models/state.go
package models

import "time"

// Phase is the lifecycle stage of a session.
type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhasePlaying  Phase = "PLAYING"
	PhaseRoundEnd Phase = "ROUND_END" // dice only
	PhaseGameOver Phase = "GAME_OVER"
)

// LogKind classifies log entries.
type LogKind string

const (
	LogInfo   LogKind = "info"
	LogAction LogKind = "action"
	LogChat   LogKind = "chat"
	LogError  LogKind = "error"
)

// LogEntry is one line of the append-only session log.
type LogEntry struct {
	Seq      int       `json:"seq"`
	At       time.Time `json:"at"`
	Kind     LogKind   `json:"kind"`
	PlayerID string    `json:"playerId,omitempty"`
	Message  string    `json:"message"`
}

// ChallengeReveal is the public record of a challenge while dice are shown.
type ChallengeReveal struct {
	Bid          Bid    `json:"bid"`
	ChallengerID string `json:"challengerId"`
	Actual       int    `json:"actual"`
	LoserID      string `json:"loserId"`
}

// DiceState holds the dice game's per-round fields.
type DiceState struct {
	Round      int              `json:"round"`
	CurrentBid *Bid             `json:"currentBid,omitempty"`
	BidHistory []Bid            `json:"bidHistory"`
	TotalDice  int              `json:"totalDice"`
	Reveal     *ChallengeReveal `json:"reveal,omitempty"`
}

// Clone deep-copies the dice block.
func (d *DiceState) Clone() *DiceState {
	if d == nil {
		return nil
	}
	out := *d
	if d.CurrentBid != nil {
		b := *d.CurrentBid
		out.CurrentBid = &b
	}
	out.BidHistory = append([]Bid{}, d.BidHistory...)
	if d.Reveal != nil {
		r := *d.Reveal
		out.Reveal = &r
	}
	return &out
}

// RummyState holds the rummy board. The draw pool itself stays with the
// authority; only its size is public.
type RummyState struct {
	Board     [][]Tile `json:"board"`
	PoolCount int      `json:"poolCount"`
}

// Clone deep-copies the rummy block.
func (r *RummyState) Clone() *RummyState {
	if r == nil {
		return nil
	}
	out := *r
	out.Board = CloneSets(r.Board)
	if out.Board == nil {
		out.Board = [][]Tile{}
	}
	return &out
}

// GameState is the canonical session state. Only the authority mutates it;
// guests hold a best-effort mirror assembled from snapshots.
type GameState struct {
	Version            int         `json:"version"`
	Settings           Settings    `json:"settings"`
	Phase              Phase       `json:"phase"`
	Players            []Player    `json:"players"`
	CurrentPlayerIndex int         `json:"currentPlayerIndex"`
	Log                []LogEntry  `json:"log"`
	WinnerID           string      `json:"winnerId,omitempty"`
	LoserID            string      `json:"loserId,omitempty"`
	Dice               *DiceState  `json:"dice,omitempty"`
	Rummy              *RummyState `json:"rummy,omitempty"`
}

// Clone deep-copies the whole state.
func (s *GameState) Clone() GameState {
	out := *s
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		out.Players[i] = p.Clone()
	}
	out.Log = append([]LogEntry(nil), s.Log...)
	out.Dice = s.Dice.Clone()
	out.Rummy = s.Rummy.Clone()
	return out
}

// PlayerIndex returns the seat index of id, or -1.
func (s *GameState) PlayerIndex(id string) int {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// Player returns the player with id, or nil.
func (s *GameState) Player(id string) *Player {
	if i := s.PlayerIndex(id); i >= 0 {
		return &s.Players[i]
	}
	return nil
}

// Current returns the player holding the turn, or nil.
func (s *GameState) Current() *Player {
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return nil
	}
	return &s.Players[s.CurrentPlayerIndex]
}

// NextActive returns the first non-eliminated seat after from, wrapping
// around. It returns -1 when nobody is left.
func (s *GameState) NextActive(from int) int {
	n := len(s.Players)
	for step := 1; step <= n; step++ {
		i := ((from+step)%n + n) % n
		if !s.Players[i].Eliminated {
			return i
		}
	}
	return -1
}

// BidCeiling is the largest quantity a dice bid may name, or 0 for no limit.
func (s *GameState) BidCeiling() int {
	if s.Dice == nil || !s.Settings.CapBids {
		return 0
	}
	return s.Dice.TotalDice
}

// LastSeq returns the sequence number of the newest log entry.
func (s *GameState) LastSeq() int {
	if len(s.Log) == 0 {
		return 0
	}
	return s.Log[len(s.Log)-1].Seq
}
