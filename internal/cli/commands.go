package cli

import (
	"fmt"
	"strings"

	"github.com/jason-s-yu/tablehost/internal/authority"
	"github.com/jason-s-yu/tablehost/internal/config"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/protocol"
	"github.com/jason-s-yu/tablehost/internal/replica"
)

// seat registers the player commands for r and prints what changes.
func (c *console) seat(r *replica.Replica) {
	c.add("state", "", 0, "show the table", func([]string) error {
		c.printf("%s", renderTable(r.View(), r.Self()))
		return nil
	})
	c.add("log", "", 0, "show the whole table log", func([]string) error {
		c.printf("%s", renderLog(r.View().Log))
		return nil
	})
	c.add("bid", "<quantity> <face>", 2, "raise the bid", func(args []string) error {
		n, err := atoi(args[:2]...)
		if err != nil {
			return err
		}
		return r.Bid(n[0], n[1])
	})
	c.add("challenge", "", 0, "call the current bid", func([]string) error {
		return r.Challenge()
	})
	c.add("hand", "", 0, "show your draft hand and board", func([]string) error {
		d, ok := r.Draft()
		if !ok {
			return replica.ErrNoDraft
		}
		c.printf("%s", renderDraft(d))
		return nil
	})
	c.add("place", "<tile#> <row> <col>", 3, "put a hand tile on the board", func(args []string) error {
		n, err := atoi(args[:3]...)
		if err != nil {
			return err
		}
		d, ok := r.Draft()
		if !ok {
			return replica.ErrNoDraft
		}
		if n[0] < 1 || n[0] > len(d.Hand) {
			return fmt.Errorf("tile %d is not in your hand (1-%d)", n[0], len(d.Hand))
		}
		return r.Place(d.Hand[n[0]-1].ID, n[1], n[2])
	})
	c.add("lift", "<row> <col>", 2, "take back a tile placed this turn", func(args []string) error {
		n, err := atoi(args[:2]...)
		if err != nil {
			return err
		}
		return r.Lift(n[0], n[1])
	})
	c.add("move", "<row> <col> <row> <col>", 4, "move a tile on the board", func(args []string) error {
		n, err := atoi(args[:4]...)
		if err != nil {
			return err
		}
		return r.Move(n[0], n[1], n[2], n[3])
	})
	c.add("reset", "", 0, "undo every edit this turn", func([]string) error {
		return r.ResetDraft()
	})
	c.add("confirm", "", 0, "play the board as arranged", func([]string) error {
		return r.Confirm()
	})
	c.add("draw", "", 0, "draw a tile and end your turn", func([]string) error {
		return r.Draw()
	})
	c.add("chat", "<message>", 1, "say something to the table", func(args []string) error {
		return r.Chat(strings.Join(args, " "))
	})
	c.add("emote", "<emoji>", 1, "react", func(args []string) error {
		return r.Emote(args[0])
	})

	r.OnChange(func(s models.GameState) { c.announce(s, r.Self()) })
	r.OnEmote(func(e protocol.Emote) {
		c.printf("%s reacts %s\n", nameIn(r.View(), e.PlayerID), e.Emoji)
	})
}

// admin registers the host-only commands.
func (c *console) admin(a *authority.Authority) {
	c.add("start", "", 0, "deal the first game", func([]string) error {
		return a.Start()
	})
	c.add("restart", "", 0, "deal a new game with the same seats", func([]string) error {
		return a.Restart()
	})
	c.add("lobby", "", 0, "return everyone to the lobby", func([]string) error {
		return a.ReturnToLobby()
	})
	c.add("addbot", "[name]", 0, "seat a bot", func(args []string) error {
		id, err := a.AddBot(strings.Join(args, " "))
		if err == nil {
			c.printf("seated %s\n", id)
		}
		return err
	})
	c.add("kick", "<player id>", 1, "remove a seat in the lobby", func(args []string) error {
		return a.Kick(args[0])
	})
	c.add("game", "<dice|rummy>", 1, "switch game with default settings", func(args []string) error {
		return a.UpdateSettings(models.DefaultSettings(models.GameKind(args[0])))
	})
	c.add("settings", "<file.yaml>", 1, "load lobby settings from YAML", func(args []string) error {
		s, err := config.LoadSettings(args[0], a.View().Settings.Game)
		if err != nil {
			return err
		}
		return a.UpdateSettings(s)
	})
}

// announce prints log entries that arrived since the last call.
func (c *console) announce(s models.GameState, self string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.LastSeq() < c.lastSeq {
		c.lastSeq = 0
	}
	for _, e := range models.LogSince(s.Log, c.lastSeq) {
		fmt.Fprint(c.out, renderEntry(s, e))
	}
	c.lastSeq = s.LastSeq()
	cur := s.Current()
	mine := cur != nil && cur.ID == self && s.Phase == models.PhasePlaying
	if mine && !c.myTurn {
		fmt.Fprintln(c.out, "your turn")
	}
	c.myTurn = mine
}
