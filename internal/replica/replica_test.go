package replica

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jason-s-yu/tablehost/internal/auth"
	"github.com/jason-s-yu/tablehost/internal/authority"
	"github.com/jason-s-yu/tablehost/internal/dice"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/protocol"
	"github.com/jason-s-yu/tablehost/internal/rummy"
	"github.com/jason-s-yu/tablehost/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

// idleScheduler never fires; these tests drive every turn by hand.
type idleScheduler struct{}

func (idleScheduler) AfterFunc(time.Duration, func()) authority.Timer { return idleTimer{} }

type harness struct {
	host   *authority.Authority
	net    *transport.Loopback
	logger *logrus.Logger
	peers  map[string]*transport.LoopbackPeer
}

func newHarness(t *testing.T, kind models.GameKind) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()
	signer, err := auth.NewSigner(0)
	require.NoError(t, err)
	a, err := authority.New(authority.Options{
		Settings:  models.DefaultSettings(kind),
		HostName:  "Host",
		Logger:    logger,
		Rand:      rand.New(rand.NewSource(11)),
		Scheduler: idleScheduler{},
		Signer:    signer,
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	net := transport.NewLoopback()
	a.Attach(net)
	net.Attach(a.HandleEvent)
	return &harness{host: a, net: net, logger: logger, peers: map[string]*transport.LoopbackPeer{}}
}

func (h *harness) dial(ctx context.Context, peerID string, handler transport.Handler) (transport.Sender, error) {
	p, err := h.net.Connect(peerID, handler)
	if err != nil {
		return nil, err
	}
	h.peers[peerID] = p
	return p, nil
}

func (h *harness) connect(t *testing.T, name string, store SessionStore) (*Replica, *transport.LoopbackPeer) {
	t.Helper()
	return h.connectKey(t, name, store, "loopback")
}

func (h *harness) connectKey(t *testing.T, name string, store SessionStore, key string) (*Replica, *transport.LoopbackPeer) {
	t.Helper()
	r, err := Connect(context.Background(), h.dial, Options{Name: name, Logger: h.logger, Store: store, Key: key})
	require.NoError(t, err)
	require.NotEmpty(t, r.Self())
	return r, h.peers[r.Self()]
}

func TestConnectMirrorsAuthority(t *testing.T) {
	h := newHarness(t, models.GameDice)
	store := NewMemoryStore()
	r, _ := h.connect(t, "Alice", store)

	assert.True(t, r.Online())
	got, want := r.View(), h.host.View()
	assert.Equal(t, want.Version, got.Version)
	require.Len(t, got.Players, 2)
	assert.Equal(t, "Alice", got.Player(r.Self()).Name)

	sess, ok, err := store.Load(context.Background(), "loopback")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r.Self(), sess.PlayerID)
	assert.NotEmpty(t, sess.Token)
}

func TestConnectResyncsSavedSeat(t *testing.T) {
	h := newHarness(t, models.GameDice)
	store := NewMemoryStore()
	r, _ := h.connect(t, "Alice", store)
	self := r.Self()
	require.NoError(t, h.host.Start())
	mine := r.View()
	held := mine.Player(self).DiceHeld
	require.Len(t, held, 5)

	h.net.Disconnect(self)
	assert.False(t, r.Online())
	hv := h.host.View()
	assert.False(t, hv.Player(self).Connected)

	back, _ := h.connect(t, "Alice", store)
	assert.Equal(t, self, back.Self())
	v := back.View()
	assert.Equal(t, models.PhasePlaying, v.Phase)
	assert.Equal(t, held, v.Player(self).DiceHeld)
	hv = h.host.View()
	assert.True(t, hv.Player(self).Connected)
	assert.Len(t, hv.Players, 2)
}

func TestConnectRetriesOnIDCollision(t *testing.T) {
	h := newHarness(t, models.GameDice)
	_, err := h.net.Connect("taken", nil)
	require.NoError(t, err)

	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "loopback", models.Session{PlayerID: "taken", Token: "stale"}))

	r, _ := h.connect(t, "Alice", store)
	assert.NotEqual(t, "taken", r.Self())
	assert.Len(t, h.host.View().Players, 2)
}

func TestGuestsSharingAStoreKeepTheirSeats(t *testing.T) {
	h := newHarness(t, models.GameDice)
	store := NewMemoryStore()
	alice, _ := h.connectKey(t, "Alice", store, SessionKey("loopback", "Alice"))
	bob, _ := h.connectKey(t, "Bob", store, SessionKey("loopback", "Bob"))
	assert.NotEqual(t, alice.Self(), bob.Self())

	seats := map[string]*Replica{"Alice": alice, "Bob": bob}
	for name, r := range seats {
		sess, ok, err := store.Load(context.Background(), SessionKey("loopback", name))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, r.Self(), sess.PlayerID)
	}
	v := h.host.View()
	assert.Len(t, v.Players, 3)
}

func TestSharedKeyNeverClaimsALiveSeat(t *testing.T) {
	h := newHarness(t, models.GameDice)
	store := NewMemoryStore()
	alice, _ := h.connect(t, "Alice", store)
	bob, _ := h.connect(t, "Bob", store)
	assert.NotEqual(t, alice.Self(), bob.Self())

	v := h.host.View()
	require.Len(t, v.Players, 3)
	assert.True(t, v.Player(alice.Self()).Connected)
	assert.Equal(t, "Alice", v.Player(alice.Self()).Name)
	assert.Equal(t, "Bob", v.Player(bob.Self()).Name)

	require.NoError(t, alice.Chat("still here"))
	v = h.host.View()
	last := v.Log[len(v.Log)-1]
	assert.Equal(t, alice.Self(), last.PlayerID)
	assert.Equal(t, "still here", last.Message)
}

func TestRestartedGuestResyncsFromFile(t *testing.T) {
	h := newHarness(t, models.GameDice)
	path := filepath.Join(t.TempDir(), "sessions.json")
	key := SessionKey("loopback", "Alice")

	r, _ := h.connectKey(t, "Alice", NewFileStore(path), key)
	self := r.Self()
	require.NoError(t, h.host.Start())
	mine := r.View()
	held := mine.Player(self).DiceHeld
	require.Len(t, held, 5)

	h.net.Disconnect(self)

	// A fresh store over the same file stands in for a new process.
	back, _ := h.connectKey(t, "Alice", NewFileStore(path), key)
	assert.Equal(t, self, back.Self())
	v := back.View()
	assert.Equal(t, models.PhasePlaying, v.Phase)
	assert.Equal(t, held, v.Player(self).DiceHeld)
	hv := h.host.View()
	assert.Len(t, hv.Players, 2)
	assert.True(t, hv.Player(self).Connected)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.json")
	s := NewFileStore(path)

	_, ok, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "a", models.Session{PlayerID: "p1", Token: "t1", Name: "Alice"}))
	require.NoError(t, s.Save(ctx, "b", models.Session{PlayerID: "p2", Token: "t2"}))

	got, ok, err := NewFileStore(path).Load(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.Session{PlayerID: "p1", Token: "t1", Name: "Alice"}, got)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, _, err = s.Load(ctx, "a")
	assert.ErrorContains(t, err, "decode sessions")
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "ws://h/peer|alice", SessionKey("ws://h/peer", " Alice "))
	assert.Equal(t, "ws://h/peer|guest", SessionKey("ws://h/peer", ""))
	assert.NotEqual(t, SessionKey("ws://h/peer", "Alice"), SessionKey("ws://h/peer", "Bob"))
}

func TestDiceIntentsCheckedLocally(t *testing.T) {
	h := newHarness(t, models.GameDice)
	r, peer := h.connect(t, "Alice", nil)
	capped := models.DefaultSettings(models.GameDice)
	capped.CapBids = true
	require.NoError(t, h.host.UpdateSettings(capped))
	require.True(t, r.View().Settings.CapBids)

	sent := len(peer.Sent())
	assert.ErrorIs(t, r.Bid(1, 2), models.ErrWrongPhase)

	require.NoError(t, h.host.Start())
	assert.ErrorIs(t, r.Bid(1, 2), models.ErrNotYourTurn)
	assert.ErrorIs(t, r.Challenge(), models.ErrNotYourTurn)
	assert.Len(t, peer.Sent(), sent)

	require.NoError(t, h.host.Submit(models.HostID, protocol.Bid{Quantity: 1, Face: 2}))
	assert.ErrorIs(t, r.Bid(1, 2), dice.ErrBidTooLow)
	assert.ErrorIs(t, r.Bid(11, 6), dice.ErrBidExceedsPool)
	assert.ErrorIs(t, r.Bid(2, 7), dice.ErrBadFace)
	assert.Len(t, peer.Sent(), sent)

	require.NoError(t, r.Bid(1, 3))
	assert.Len(t, peer.Sent(), sent+1)
	v := h.host.View()
	require.NotNil(t, v.Dice.CurrentBid)
	assert.Equal(t, r.Self(), v.Dice.CurrentBid.BidderID)
	assert.Equal(t, v.Version, r.View().Version)

	require.NoError(t, h.host.Submit(models.HostID, protocol.Bid{Quantity: 2, Face: 3}))
	require.NoError(t, r.Challenge())
	assert.Equal(t, models.PhaseRoundEnd, h.host.View().Phase)
	assert.Equal(t, models.PhaseRoundEnd, r.View().Phase)
}

func TestChatAndEmote(t *testing.T) {
	h := newHarness(t, models.GameDice)
	var hostEmotes []protocol.Emote
	h.host.OnEmote(func(e protocol.Emote) { hostEmotes = append(hostEmotes, e) })
	alice, _ := h.connect(t, "Alice", nil)
	bob, _ := h.connect(t, "Bob", nil)
	var bobEmotes []protocol.Emote
	bob.OnEmote(func(e protocol.Emote) { bobEmotes = append(bobEmotes, e) })

	require.NoError(t, alice.Chat("gl"))
	v := bob.View()
	last := v.Log[len(v.Log)-1]
	assert.Equal(t, "gl", last.Message)
	assert.Equal(t, alice.Self(), last.PlayerID)
	require.Len(t, bob.View().Players, 3)

	require.NoError(t, alice.Emote("👍"))
	require.Len(t, bobEmotes, 1)
	assert.Equal(t, alice.Self(), bobEmotes[0].PlayerID)
	require.Len(t, hostEmotes, 1)
}

func TestDraftFollowsTurn(t *testing.T) {
	h := newHarness(t, models.GameRummy)
	r, peer := h.connect(t, "Alice", nil)
	require.NoError(t, h.host.Start())

	_, ok := r.Draft()
	assert.False(t, ok)
	mine := r.View()
	assert.ErrorIs(t, r.Place(mine.Player(r.Self()).Hand[0].ID, 0, 0), models.ErrNotYourTurn)

	require.NoError(t, h.host.Submit(models.HostID, protocol.Draw{}))
	d, ok := r.Draft()
	require.True(t, ok)
	require.Len(t, d.Hand, 14)
	assert.Empty(t, d.Grid.Tiles())

	sent := len(peer.Sent())
	require.NoError(t, r.Place(d.Hand[0].ID, 0, 0))
	assert.Len(t, peer.Sent(), sent+1)
	w, ok := h.host.Working()
	require.True(t, ok)
	assert.Equal(t, r.Self(), w.PlayerID)
	require.NotNil(t, w.WorkingGrid.At(0, 0))
	assert.Equal(t, d.Hand[0].ID, w.WorkingGrid.At(0, 0).ID)

	sent = len(peer.Sent())
	assert.ErrorIs(t, r.Draw(), rummy.ErrHandChanged)
	assert.ErrorIs(t, r.Confirm(), rummy.ErrInvalidSet)
	assert.Len(t, peer.Sent(), sent)

	require.NoError(t, r.Move(0, 0, 1, 4))
	require.NoError(t, r.Lift(1, 4))
	d, _ = r.Draft()
	assert.Len(t, d.Hand, 14)

	require.NoError(t, r.Draw())
	_, ok = r.Draft()
	assert.False(t, ok)
	_, ok = h.host.Working()
	assert.False(t, ok)
	v := r.View()
	assert.Len(t, v.Player(r.Self()).Hand, 15)
	assert.Equal(t, models.HostID, v.Current().ID)
}

func TestProjectionClearedWhenTurnPasses(t *testing.T) {
	h := newHarness(t, models.GameRummy)
	r, _ := h.connect(t, "Alice", nil)
	var seen []protocol.SyncWorking
	r.OnWorking(func(m protocol.SyncWorking) { seen = append(seen, m) })
	require.NoError(t, h.host.Start())

	grid := rummy.NewGrid(20, 8)
	require.NoError(t, h.host.Submit(models.HostID, protocol.SyncWorking{WorkingGrid: &grid}))
	p, ok := r.Projection()
	require.True(t, ok)
	assert.Equal(t, models.HostID, p.PlayerID)
	assert.Len(t, seen, 1)

	require.NoError(t, h.host.Submit(models.HostID, protocol.Draw{}))
	_, ok = r.Projection()
	assert.False(t, ok)
}

func TestHostSeatOverLocalLink(t *testing.T) {
	h := newHarness(t, models.GameDice)
	host := New(Options{Name: "Host", Logger: h.logger})
	host.Attach(h.host.LocalLink(host.HandleEvent))
	assert.Equal(t, models.HostID, host.Self())

	guest, _ := h.connect(t, "Alice", nil)
	require.Len(t, host.View().Players, 2)
	require.NoError(t, h.host.Start())

	assert.ErrorIs(t, guest.Bid(1, 2), models.ErrNotYourTurn)
	require.NoError(t, host.Bid(1, 2))
	assert.ErrorIs(t, host.Bid(2, 2), models.ErrNotYourTurn)
	require.NoError(t, guest.Challenge())

	hv, gv := host.View(), guest.View()
	assert.Equal(t, models.PhaseRoundEnd, hv.Phase)
	assert.Equal(t, hv.Version, gv.Version)
	assert.Equal(t, h.host.View().Dice.Reveal, hv.Dice.Reveal)
}

func TestIntentsNeedLink(t *testing.T) {
	r := New(Options{Name: "offline"})
	assert.ErrorIs(t, r.Chat("hi"), ErrNotConnected)
	assert.ErrorIs(t, r.Bid(1, 2), ErrNotConnected)
	_, ok := r.Draft()
	assert.False(t, ok)
}
