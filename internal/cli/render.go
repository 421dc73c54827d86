package cli

import (
	"fmt"
	"strings"

	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/replica"
)

// renderTable draws the mirror as text. Other players' dice and tiles are
// shown as counts only.
func renderTable(s models.GameState, self string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s · %s · v%d\n", s.Settings.Game, s.Phase, s.Version)

	for i, p := range s.Players {
		mark := "  "
		if i == s.CurrentPlayerIndex && s.Phase == models.PhasePlaying {
			mark = "> "
		}
		name := p.Name
		if p.ID == self {
			name += " (you)"
		}
		if p.IsBot {
			name += " [bot]"
		}
		if !p.Connected {
			name += " [away]"
		}
		fmt.Fprintf(&b, "%s%-24s %s\n", mark, name, holdings(s, p, p.ID == self))
	}

	switch {
	case s.Dice != nil:
		fmt.Fprintf(&b, "round %d, %d dice in play\n", s.Dice.Round, s.Dice.TotalDice)
		if bid := s.Dice.CurrentBid; bid != nil {
			fmt.Fprintf(&b, "bid: %d × %d by %s\n", bid.Quantity, bid.Face, nameIn(s, bid.BidderID))
		}
		if rev := s.Dice.Reveal; rev != nil {
			fmt.Fprintf(&b, "reveal: %d × %d called, %d found; %s loses\n",
				rev.Bid.Quantity, rev.Bid.Face, rev.Actual, nameIn(s, rev.LoserID))
		}
	case s.Rummy != nil:
		fmt.Fprintf(&b, "pool: %d tiles\n", s.Rummy.PoolCount)
		for i, set := range s.Rummy.Board {
			fmt.Fprintf(&b, "  set %d: %s\n", i+1, tiles(set))
		}
	}
	if s.Phase == models.PhaseGameOver && s.WinnerID != "" {
		fmt.Fprintf(&b, "%s wins\n", nameIn(s, s.WinnerID))
	}
	return b.String()
}

func holdings(s models.GameState, p models.Player, mine bool) string {
	switch {
	case s.Phase == models.PhaseLobby:
		return ""
	case p.Eliminated:
		return "out"
	case s.Dice != nil:
		out := fmt.Sprintf("%d dice", p.DiceCount)
		if s.Settings.Hearts {
			out = fmt.Sprintf("%d hearts", p.Health)
		}
		if mine || s.Phase == models.PhaseRoundEnd {
			out += fmt.Sprintf(" %v", p.DiceHeld)
		}
		return out
	case s.Rummy != nil:
		out := fmt.Sprintf("%d tiles", len(p.Hand))
		if p.IceBroken {
			out += ", ice broken"
		}
		return out
	}
	return ""
}

// renderDraft lists the draft hand by number and every non-empty grid row.
func renderDraft(d replica.Draft) string {
	var b strings.Builder
	b.WriteString("hand:")
	for i, t := range d.Hand {
		fmt.Fprintf(&b, " %d:%s", i+1, t)
	}
	b.WriteString("\n")
	for row := 0; row < d.Grid.Rows(); row++ {
		last := -1
		for col := 0; col < d.Grid.Width; col++ {
			if d.Grid.At(row, col) != nil {
				last = col
			}
		}
		if last < 0 {
			continue
		}
		var line strings.Builder
		for col := 0; col <= last; col++ {
			if t := d.Grid.At(row, col); t != nil {
				fmt.Fprintf(&line, "%-4s", t.String())
			} else {
				line.WriteString(".   ")
			}
		}
		fmt.Fprintf(&b, "%2d  %s\n", row, strings.TrimRight(line.String(), " "))
	}
	return b.String()
}

func renderLog(log []models.LogEntry) string {
	var b strings.Builder
	for _, e := range log {
		fmt.Fprintf(&b, "%4d  %s\n", e.Seq, e.Message)
	}
	return b.String()
}

func renderEntry(s models.GameState, e models.LogEntry) string {
	if e.Kind == models.LogChat {
		return fmt.Sprintf("<%s> %s\n", nameIn(s, e.PlayerID), e.Message)
	}
	return fmt.Sprintf("* %s\n", e.Message)
}

func tiles(set []models.Tile) string {
	parts := make([]string, len(set))
	for i, t := range set {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

func nameIn(s models.GameState, id string) string {
	if p := s.Player(id); p != nil {
		return p.Name
	}
	return id
}
