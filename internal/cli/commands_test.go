package cli

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/jason-s-yu/tablehost/internal/authority"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/replica"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noTimer struct{}

func (noTimer) Stop() bool { return true }

type manualScheduler struct{}

func (manualScheduler) AfterFunc(time.Duration, func()) authority.Timer { return noTimer{} }

func hostConsole(t *testing.T, kind models.GameKind) (*authority.Authority, *replica.Replica, *console, *bytes.Buffer) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	a, err := authority.New(authority.Options{
		Settings:  models.DefaultSettings(kind),
		HostName:  "Host",
		Logger:    logger,
		Rand:      rand.New(rand.NewSource(5)),
		Scheduler: manualScheduler{},
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	seat := replica.New(replica.Options{Name: "Host", Logger: logger})
	seat.Attach(a.LocalLink(seat.HandleEvent))

	var out bytes.Buffer
	con := newConsole(&out)
	con.seat(seat)
	con.admin(a)
	return a, seat, con, &out
}

func TestHostDiceCommands(t *testing.T) {
	a, seat, con, out := hostConsole(t, models.GameDice)

	require.NoError(t, con.exec("addbot Robo"))
	assert.Contains(t, out.String(), "seated bot-")
	require.NoError(t, con.exec("start"))
	assert.Contains(t, out.String(), "* game started with 2 players")
	assert.Contains(t, out.String(), "your turn")

	require.NoError(t, con.exec("bid 2 x"))
	assert.Contains(t, out.String(), `bid: "x" is not a number`)
	require.NoError(t, con.exec("bid 1 5"))
	require.NotNil(t, a.View().Dice.CurrentBid)
	assert.Equal(t, 5, a.View().Dice.CurrentBid.Face)
	assert.Contains(t, out.String(), "* Host bids 1 × 5")

	require.NoError(t, con.exec("challenge"))
	assert.Contains(t, out.String(), "challenge: illegal move: it is not your turn")

	out.Reset()
	require.NoError(t, con.exec("state"))
	assert.Contains(t, out.String(), "Host (you)")
	assert.Contains(t, out.String(), "Robo [bot]")
	assert.Contains(t, out.String(), "bid: 1 × 5 by Host")
	assert.Equal(t, seat.View().Version, a.View().Version)

	require.NoError(t, con.exec("chat good luck"))
	assert.Contains(t, out.String(), "<Host> good luck")
}

func TestHostLobbyCommands(t *testing.T) {
	a, _, con, out := hostConsole(t, models.GameDice)

	require.NoError(t, con.exec("start"))
	assert.Contains(t, out.String(), "start: at least two players are needed")

	require.NoError(t, con.exec("game rummy"))
	assert.Equal(t, models.GameRummy, a.View().Settings.Game)
	require.NoError(t, con.exec("game poker"))
	assert.Contains(t, out.String(), `unknown game "poker"`)

	require.NoError(t, con.exec("addbot"))
	require.Len(t, a.View().Players, 2)
	require.NoError(t, con.exec("kick "+a.View().Players[1].ID))
	assert.Len(t, a.View().Players, 1)
}

func TestHostRummyDraftCommands(t *testing.T) {
	a, seat, con, out := hostConsole(t, models.GameRummy)
	require.NoError(t, con.exec("addbot"))
	require.NoError(t, con.exec("start"))

	out.Reset()
	require.NoError(t, con.exec("hand"))
	assert.Contains(t, out.String(), "hand: 1:")

	require.NoError(t, con.exec("place 99 0 0"))
	assert.Contains(t, out.String(), "tile 99 is not in your hand (1-14)")

	require.NoError(t, con.exec("place 1 0 0"))
	d, ok := seat.Draft()
	require.True(t, ok)
	assert.Len(t, d.Hand, 13)
	w, ok := a.Working()
	require.True(t, ok)
	assert.Equal(t, models.HostID, w.PlayerID)

	require.NoError(t, con.exec("draw"))
	assert.Contains(t, out.String(), "draw: illegal move: put your tiles back before drawing")

	require.NoError(t, con.exec("reset"))
	require.NoError(t, con.exec("draw"))
	v := a.View()
	assert.Len(t, v.Player(models.HostID).Hand, 15)
	_, ok = seat.Draft()
	assert.False(t, ok)
}
