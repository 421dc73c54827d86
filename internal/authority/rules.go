package authority

import (
	"context"
	"math/rand"

	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/protocol"
)

// Result is what applying an action did, beyond mutating state.
type Result struct {
	Log       []string // action log lines attributed to the actor
	TurnEnded bool
}

// Rules is one game's half of the state machine. Every method except
// BotMove runs with the authority lock held and may mutate s.
type Rules interface {
	// Setup deals a new game to the seated players and picks who starts.
	Setup(s *models.GameState, r *rand.Rand)
	// OnJoin prepares a newly seated player for the lobby.
	OnJoin(s *models.GameState, p *models.Player)
	// Validate checks msg from the current player and returns the canonical
	// form the authority should apply.
	Validate(s *models.GameState, playerID string, msg protocol.Message) (protocol.Message, error)
	// Apply mutates s for a validated action.
	Apply(s *models.GameState, playerID string, msg protocol.Message) Result
	// Resolve runs the deferred end of a ROUND_END phase.
	Resolve(s *models.GameState, r *rand.Rand) Result
	// CheckTerminal moves s to GAME_OVER when the game is decided.
	CheckTerminal(s *models.GameState) bool
	// AutoAction is the move played for an absent player.
	AutoAction(s *models.GameState, playerID string) protocol.Message
	// BotMove decides for a bot. It runs without the lock on a copy of the state.
	BotMove(ctx context.Context, s *models.GameState, playerID string) protocol.Message
	// Reset clears every per-game field.
	Reset(s *models.GameState)
}

func rulesFor(kind models.GameKind, d botDeps) Rules {
	if kind == models.GameRummy {
		return &rummyRules{}
	}
	return &diceRules{bots: d}
}
