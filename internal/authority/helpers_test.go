package authority

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/tablehost/internal/auth"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/protocol"
	"github.com/jason-s-yu/tablehost/internal/transport"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	at      time.Duration
	f       func()
	fired   bool
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.fired && !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler runs callbacks when the test advances its clock.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Advance fires every due callback in deadline order, including ones
// scheduled by earlier callbacks.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	for {
		s.mu.Lock()
		var next *fakeTimer
		for _, t := range s.timers {
			if !t.fired && !t.stopped && t.at <= target && (next == nil || t.at < next.at) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		next.fired = true
		s.now = next.at
		s.mu.Unlock()
		next.f()
	}
}

type table struct {
	a     *Authority
	net   *transport.Loopback
	sched *fakeScheduler
	hook  *test.Hook
}

func testSettings(kind models.GameKind) models.Settings {
	s := models.DefaultSettings(kind)
	s.BotDelay = time.Second
	s.RevealDelay = 3 * time.Second
	s.DisconnectGrace = 5 * time.Second
	return s
}

func newTable(t *testing.T, s models.Settings, opts ...func(*Options)) *table {
	t.Helper()
	logger, hook := test.NewNullLogger()
	signer, err := auth.NewSigner(0)
	require.NoError(t, err)
	sched := &fakeScheduler{}
	o := Options{
		Settings:  s,
		HostName:  "Host",
		Logger:    logger,
		Rand:      rand.New(rand.NewSource(7)),
		Scheduler: sched,
		Signer:    signer,
	}
	for _, fn := range opts {
		fn(&o)
	}
	a, err := New(o)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	net := transport.NewLoopback()
	a.Attach(net)
	net.Attach(a.HandleEvent)
	return &table{a: a, net: net, sched: sched, hook: hook}
}

// join connects a raw guest and sends JOIN.
func (tb *table) join(t *testing.T, peerID, name, token string) *transport.LoopbackPeer {
	t.Helper()
	p, err := tb.net.Connect(peerID, nil)
	require.NoError(t, err)
	send(t, p, protocol.Join{Player: models.Player{ID: peerID, Name: name}, Token: token})
	return p
}

func send(t *testing.T, p *transport.LoopbackPeer, msg protocol.Message) {
	t.Helper()
	require.NoError(t, p.Send(protocol.MustEncode(msg)))
}

// received decodes everything a peer has been sent.
func received(t *testing.T, p *transport.LoopbackPeer) []protocol.Message {
	t.Helper()
	var out []protocol.Message
	for _, data := range p.Received() {
		msg, err := protocol.Decode(data)
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func welcomeOf(t *testing.T, p *transport.LoopbackPeer) (protocol.Welcome, bool) {
	t.Helper()
	for _, m := range received(t, p) {
		if w, ok := m.(protocol.Welcome); ok {
			return w, true
		}
	}
	return protocol.Welcome{}, false
}

func lastMessage(t *testing.T, p *transport.LoopbackPeer) protocol.Message {
	t.Helper()
	msgs := received(t, p)
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

// mirror folds every snapshot a peer received, the way a guest would.
func mirror(t *testing.T, p *transport.LoopbackPeer) models.GameState {
	t.Helper()
	var s models.GameState
	for _, m := range received(t, p) {
		if snap, ok := m.(protocol.Sync); ok {
			s.Merge(snap.State)
		}
	}
	return s
}

// edit mutates canonical state under the lock.
func (tb *table) edit(fn func(s *models.GameState)) {
	tb.a.mu.Lock()
	defer tb.a.mu.Unlock()
	fn(tb.a.state)
}

func (tb *table) rummy() *rummyRules {
	tb.a.mu.Lock()
	defer tb.a.mu.Unlock()
	return tb.a.rules.(*rummyRules)
}
