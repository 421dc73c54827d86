package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jason-s-yu/tablehost/internal/dice"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/sirupsen/logrus"
)

// Request is what a dice suggester sees: the bot's own dice and the public table.
type Request struct {
	PlayerID   string            `json:"playerId"`
	Difficulty models.Difficulty `json:"difficulty"`
	OwnDice    []int             `json:"ownDice"`
	TotalDice  int               `json:"totalDice"`
	CurrentBid *models.Bid       `json:"currentBid,omitempty"`
	BidHistory []models.Bid      `json:"bidHistory"`
	Players    int               `json:"players"`
}

// Suggestion is a dice decision: either challenge, or bid Quantity x Face.
type Suggestion struct {
	Challenge bool
	Quantity  int
	Face      int
}

// Actions a remote suggester may answer with.
const (
	ActionBid       = "BID"
	ActionChallenge = "CHALLENGE"
)

// ErrUnknownAction is returned for a reply whose action is neither BID nor CHALLENGE.
var ErrUnknownAction = errors.New("unknown suggested action")

// Reply is the remote service's answer. Quantity and Face only matter for BID.
type Reply struct {
	Action   string `json:"action"`
	Quantity int    `json:"quantity,omitempty"`
	Face     int    `json:"face,omitempty"`
}

// Suggestion maps the reply onto a move.
func (r Reply) Suggestion() (Suggestion, error) {
	switch strings.ToUpper(strings.TrimSpace(r.Action)) {
	case ActionChallenge:
		return Suggestion{Challenge: true}, nil
	case ActionBid:
		return Suggestion{Quantity: r.Quantity, Face: r.Face}, nil
	default:
		return Suggestion{}, fmt.Errorf("%w %q", ErrUnknownAction, r.Action)
	}
}

// Suggester proposes a dice move.
type Suggester interface {
	Suggest(ctx context.Context, req Request) (Suggestion, error)
}

// Fallback is the move used whenever a suggester fails: challenge when there
// is something to challenge, otherwise open at one 1.
func Fallback(req Request) Suggestion {
	if req.CurrentBid != nil {
		return Suggestion{Challenge: true}
	}
	return Suggestion{Quantity: 1, Face: 1}
}

// Legal checks a suggestion against the table.
func Legal(req Request, s Suggestion) error {
	if s.Challenge {
		if req.CurrentBid == nil {
			return dice.ErrNothingToChallenge
		}
		return nil
	}
	return dice.CheckBid(req.CurrentBid, s.Quantity, s.Face, req.TotalDice)
}

// SuggestWithFallback asks s for a move under timeout. Errors, timeouts and
// illegal answers are logged and replaced by Fallback.
func SuggestWithFallback(ctx context.Context, s Suggester, req Request, timeout time.Duration, logger *logrus.Logger) Suggestion {
	if s == nil {
		return Fallback(req)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	log := logger.WithFields(logrus.Fields{"component": "bot", "player": req.PlayerID})

	out, err := s.Suggest(ctx, req)
	if err != nil {
		log.Warnf("suggester failed, using fallback: %v", err)
		return Fallback(req)
	}
	if err := Legal(req, out); err != nil {
		log.Warnf("suggester returned an illegal move %+v, using fallback: %v", out, err)
		return Fallback(req)
	}
	return out
}

// HTTPSuggester posts the request as JSON to a remote move service and
// expects a Reply back.
type HTTPSuggester struct {
	URL    string
	Client *http.Client
}

// NewHTTPSuggester returns a suggester for url using http.DefaultClient.
func NewHTTPSuggester(url string) *HTTPSuggester {
	return &HTTPSuggester{URL: url, Client: http.DefaultClient}
}

// Suggest calls the remote service.
func (h *HTTPSuggester) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Suggestion{}, fmt.Errorf("encode suggestion request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return Suggestion{}, fmt.Errorf("build suggestion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return Suggestion{}, fmt.Errorf("call suggester: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Suggestion{}, fmt.Errorf("suggester returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return Suggestion{}, fmt.Errorf("decode suggestion: %w", err)
	}
	return reply.Suggestion()
}

// Heuristic is a local suggester that compares each bid with the expected
// count of its face, given the bot's own dice and uniform unknown dice.
type Heuristic struct{}

// Suggest never fails.
func (Heuristic) Suggest(_ context.Context, req Request) (Suggestion, error) {
	margin := doubtMargin(req.Difficulty)
	if cur := req.CurrentBid; cur != nil {
		if float64(cur.Quantity) > expected(req, cur.Face)+margin {
			return Suggestion{Challenge: true}, nil
		}
		best, bestSlack := Suggestion{Challenge: true}, -margin
		for face := 1; face <= 6; face++ {
			q := cur.Quantity
			if face <= cur.Face {
				q++
			}
			if q > req.TotalDice {
				continue
			}
			if slack := expected(req, face) - float64(q); slack >= bestSlack {
				best, bestSlack = Suggestion{Quantity: q, Face: face}, slack
			}
		}
		return best, nil
	}

	face, bestExp := 2, -1.0
	for f := 2; f <= 6; f++ {
		if e := expected(req, f); e > bestExp {
			face, bestExp = f, e
		}
	}
	q := int(bestExp - margin)
	if q < 1 {
		q = 1
	}
	if req.TotalDice > 0 && q > req.TotalDice {
		q = req.TotalDice
	}
	return Suggestion{Quantity: q, Face: face}, nil
}

// expected is the mean count of face across the table from this bot's seat.
func expected(req Request, face int) float64 {
	own := 0
	for _, d := range req.OwnDice {
		if d == face || (face != dice.Wild && d == dice.Wild) {
			own++
		}
	}
	unknown := req.TotalDice - len(req.OwnDice)
	if unknown < 0 {
		unknown = 0
	}
	p := 1.0 / 3
	if face == dice.Wild {
		p = 1.0 / 6
	}
	return float64(own) + float64(unknown)*p
}

func doubtMargin(d models.Difficulty) float64 {
	switch d {
	case models.DifficultyEasy:
		return 2
	case models.DifficultyHard:
		return 0.5
	default:
		return 1
	}
}
