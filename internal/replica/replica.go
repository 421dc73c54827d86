// Package replica is the guest side of a session: a read-only mirror of the
// authority's state, plus the local draft a rummy player edits during their
// turn. Intents are checked locally and only sent when they would pass.
package replica

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tablehost/internal/dice"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/protocol"
	"github.com/jason-s-yu/tablehost/internal/rummy"
	"github.com/jason-s-yu/tablehost/internal/transport"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected means there is no link to the authority.
var ErrNotConnected = errors.New("not connected to the host")

// ErrNoDraft means there is no open draft to edit.
var ErrNoDraft = models.Illegal("there is no draft open; wait for your turn")

// Options configures a Replica.
type Options struct {
	Name   string
	Avatar int
	Logger *logrus.Logger
	Store  SessionStore // nil keeps no reconnection hint
	Key    string       // store key, see SessionKey
}

// Replica mirrors one session for one guest.
type Replica struct {
	mu sync.Mutex

	name   string
	avatar int
	self   string
	token  string
	conn   transport.Sender
	online bool
	store  SessionStore
	key    string
	log    *logrus.Entry

	state      models.GameState
	working    *rummy.Working
	projection *protocol.SyncWorking

	onChange  func(models.GameState)
	onEmote   func(protocol.Emote)
	onWorking func(protocol.SyncWorking)
}

// New returns an unconnected replica.
func New(opts Options) *Replica {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Replica{
		name:   opts.Name,
		avatar: opts.Avatar,
		store:  opts.Store,
		key:    opts.Key,
		log:    logger.WithField("component", "replica"),
	}
}

// DialFunc opens a transport link as peerID, delivering events to h.
type DialFunc func(ctx context.Context, peerID string, h transport.Handler) (transport.Sender, error)

// Connect dials the authority and asks for a seat. A saved session is reused
// so the authority treats the join as a resync. If the transport reports an
// id collision the dial is retried once with a fresh identity, and the saved
// session is dropped: its seat belongs to a peer that is still connected.
func Connect(ctx context.Context, dial DialFunc, opts Options) (*Replica, error) {
	r := New(opts)

	var sess models.Session
	if r.store != nil {
		saved, ok, err := r.store.Load(ctx, r.key)
		if err != nil {
			r.log.Warnf("loading saved session: %v", err)
		} else if ok {
			sess = saved
		}
	}

	peerID := sess.PlayerID
	if peerID == "" {
		peerID = uuid.NewString()
	}
	conn, err := dial(ctx, peerID, r.HandleEvent)
	if errors.Is(err, transport.ErrIDCollision) {
		r.log.Warnf("peer id %s is taken, retrying with a new one", peerID)
		sess = models.Session{}
		peerID = uuid.NewString()
		conn, err = dial(ctx, peerID, r.HandleEvent)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to host: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.online = true
	r.log = r.log.WithField("peer", peerID)
	r.mu.Unlock()

	claimed := peerID
	if sess.PlayerID != "" {
		claimed = sess.PlayerID
	}
	join := protocol.Join{
		Player: models.Player{ID: claimed, Name: r.name, Avatar: r.avatar},
		Token:  sess.Token,
	}
	if err := r.send(join); err != nil {
		return nil, err
	}
	return r, nil
}

// Attach sets the link used for intents, for callers that dial themselves.
func (r *Replica) Attach(conn transport.Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn = conn
	r.online = conn != nil
}

// OnChange registers a callback run after every merged snapshot.
func (r *Replica) OnChange(fn func(models.GameState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// OnEmote registers a callback for emotes from other players.
func (r *Replica) OnEmote(fn func(protocol.Emote)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEmote = fn
}

// OnWorking registers a callback for another player's draft projection.
func (r *Replica) OnWorking(fn func(protocol.SyncWorking)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onWorking = fn
}

// Self is the player id the authority assigned, empty until welcomed.
func (r *Replica) Self() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.self
}

// Online reports whether the link to the authority is up.
func (r *Replica) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

// View returns a copy of the mirror.
func (r *Replica) View() models.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Projection returns the current player's relayed draft, if any.
func (r *Replica) Projection() (protocol.SyncWorking, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.projection == nil {
		return protocol.SyncWorking{}, false
	}
	return *r.projection, true
}

// HandleEvent is the transport.Handler for the guest side.
func (r *Replica) HandleEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventMessage:
		r.receive(ev.Data)
	case transport.EventPeerDisconnected:
		r.mu.Lock()
		r.online = false
		r.mu.Unlock()
		r.log.Warn("lost the link to the host")
	case transport.EventError:
		r.log.Warnf("transport error: %v", ev.Err)
	}
}

func (r *Replica) receive(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		r.log.Warnf("dropping message: %v", err)
		return
	}
	switch m := msg.(type) {
	case protocol.Welcome:
		r.welcomed(m)
	case protocol.Sync:
		r.apply(m.State)
	case protocol.SyncWorking:
		r.mu.Lock()
		cur := r.state.Current()
		if cur == nil || cur.ID != m.PlayerID || m.PlayerID == r.self {
			r.mu.Unlock()
			return
		}
		r.projection = &m
		fn := r.onWorking
		r.mu.Unlock()
		if fn != nil {
			fn(m)
		}
	case protocol.Emote:
		r.mu.Lock()
		fn := r.onEmote
		r.mu.Unlock()
		if fn != nil {
			fn(m)
		}
	default:
		r.log.Warnf("dropping unexpected %s from host", msg.Kind())
	}
}

func (r *Replica) welcomed(w protocol.Welcome) {
	r.mu.Lock()
	r.self = w.PlayerID
	r.token = w.Token
	r.log = r.log.WithField("player", w.PlayerID)
	store, key, name := r.store, r.key, r.name
	r.mu.Unlock()

	if store == nil {
		return
	}
	sess := models.Session{PlayerID: w.PlayerID, Token: w.Token, Name: name}
	if err := store.Save(context.Background(), key, sess); err != nil {
		r.log.Warnf("saving session: %v", err)
	}
}

// apply merges a snapshot and reconciles the draft with it.
func (r *Replica) apply(snap models.Snapshot) {
	r.mu.Lock()
	if !r.state.Merge(snap) {
		r.mu.Unlock()
		return
	}
	r.reconcile()
	view := r.state.Clone()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn(view)
	}
}

// reconcile opens the draft when the turn becomes ours, drops it when the
// turn ends, and rebuilds it if the canonical hand or board moved under it.
// Lock held.
func (r *Replica) reconcile() {
	s := &r.state
	cur := s.Current()
	if r.projection != nil && (cur == nil || cur.ID != r.projection.PlayerID || s.Phase != models.PhasePlaying) {
		r.projection = nil
	}

	mine := s.Settings.Game == models.GameRummy && s.Phase == models.PhasePlaying &&
		s.Rummy != nil && cur != nil && cur.ID == r.self && r.self != ""
	if !mine {
		r.working = nil
		return
	}
	if r.working != nil && rummy.SameTiles(r.working.StartHand, cur.Hand) && sameBoard(r.working.StartBoard, s.Rummy.Board) {
		return
	}
	w, err := rummy.NewWorking(cur.Hand, s.Rummy.Board, s.Settings.GridWidth, s.Settings.GridRows)
	if err != nil {
		r.log.Errorf("opening draft: %v", err)
		r.working = nil
		return
	}
	r.working = w
}

func sameBoard(a, b [][]models.Tile) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j].ID != b[i][j].ID {
				return false
			}
		}
	}
	return true
}

// myTurn checks that an intent may be sent now. Lock held.
func (r *Replica) myTurn(game models.GameKind) error {
	if r.conn == nil || !r.online {
		return ErrNotConnected
	}
	if r.state.Settings.Game != game {
		return models.ErrWrongGame
	}
	if r.state.Phase != models.PhasePlaying {
		return models.ErrWrongPhase
	}
	if cur := r.state.Current(); cur == nil || cur.ID != r.self {
		return models.ErrNotYourTurn
	}
	return nil
}

func (r *Replica) send(msg protocol.Message) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := conn.Send(data); err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind(), err)
	}
	return nil
}

// Bid raises the dice bid.
func (r *Replica) Bid(quantity, face int) error {
	r.mu.Lock()
	err := r.myTurn(models.GameDice)
	if err == nil {
		err = dice.CheckBid(r.state.Dice.CurrentBid, quantity, face, r.state.BidCeiling())
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.send(protocol.Bid{Quantity: quantity, Face: face})
}

// Challenge calls the current bid.
func (r *Replica) Challenge() error {
	r.mu.Lock()
	err := r.myTurn(models.GameDice)
	if err == nil && r.state.Dice.CurrentBid == nil {
		err = dice.ErrNothingToChallenge
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.send(protocol.Challenge{})
}

// Chat posts a table message.
func (r *Replica) Chat(text string) error {
	return r.send(protocol.Chat{Message: text})
}

// Emote sends a transient reaction.
func (r *Replica) Emote(emoji string) error {
	return r.send(protocol.Emote{Emoji: emoji})
}
