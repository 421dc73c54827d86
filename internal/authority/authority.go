// Package authority runs the host side of a session: it owns the canonical
// game state, validates every action against the game rules and pushes
// snapshots to the guests.
package authority

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tablehost/internal/auth"
	"github.com/jason-s-yu/tablehost/internal/bot"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/protocol"
	"github.com/jason-s-yu/tablehost/internal/transport"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotYourTurn = models.ErrNotYourTurn
	ErrWrongPhase  = models.ErrWrongPhase
	ErrWrongGame   = models.ErrWrongGame

	ErrNotInLobby       = errors.New("only allowed in the lobby")
	ErrTableFull        = errors.New("the table is full")
	ErrNotEnoughPlayers = errors.New("at least two players are needed")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrKickHost         = errors.New("the host cannot be removed")
)

const (
	maxNameLen = 24
	maxChatLen = 280
	sinkBuffer = 256
)

// EventSink receives every log entry, in order, with the game the table was
// running when it was written.
type EventSink interface {
	Publish(ctx context.Context, sessionID uuid.UUID, game models.GameKind, entry models.LogEntry) error
}

type sinkEvent struct {
	game  models.GameKind
	entry models.LogEntry
}

// ResultSink receives every finished game.
type ResultSink interface {
	Archive(ctx context.Context, res models.GameResult) error
}

// Options configures an Authority. Only Settings is required.
type Options struct {
	Settings models.Settings
	HostName string

	Logger    *logrus.Logger
	Rand      *rand.Rand
	Scheduler Scheduler
	Signer    *auth.Signer // nil resyncs returning guests by id alone

	Suggester      bot.Suggester
	SuggestTimeout time.Duration

	Events  EventSink
	Results ResultSink
}

// Authority is the single writer of a session's GameState. Every entry point
// takes mu, so transport events, timers and local intents are serialized.
type Authority struct {
	mu sync.Mutex

	id        uuid.UUID
	state     *models.GameState
	rules     Rules
	peers     transport.Peers
	logger    *logrus.Logger
	log       *logrus.Entry
	rng       *rand.Rand
	sched     Scheduler
	signer    *auth.Signer
	bots      botDeps
	startedAt time.Time

	// turn changes whenever the turn holder's window closes; timers carry
	// the value they were scheduled under and do nothing if it moved on.
	turn    int
	sentSeq int

	peerPlayer map[string]string
	playerPeer map[string]string
	working    *protocol.SyncWorking
	local      transport.Handler

	events  chan sinkEvent
	sink    EventSink
	results ResultSink
	closed  bool

	onChange  func(models.GameState)
	onEmote   func(protocol.Emote)
	onWorking func(protocol.SyncWorking)
}

// New opens a table in the lobby with the host seated.
func New(opts Options) (*Authority, error) {
	if err := opts.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = clockScheduler{}
	}
	name := cleanName(opts.HostName)
	if name == "" {
		name = "Host"
	}

	a := &Authority{
		id:         uuid.New(),
		logger:     logger,
		rng:        rng,
		sched:      sched,
		signer:     opts.Signer,
		bots:       botDeps{suggester: opts.Suggester, timeout: opts.SuggestTimeout, logger: logger},
		peerPlayer: make(map[string]string),
		playerPeer: make(map[string]string),
		sink:       opts.Events,
		results:    opts.Results,
	}
	a.log = logger.WithFields(logrus.Fields{"component": "authority", "session": a.id})
	a.rules = rulesFor(opts.Settings.Game, a.bots)
	a.state = &models.GameState{
		Settings: opts.Settings,
		Phase:    models.PhaseLobby,
		Players:  []models.Player{},
		Log:      []models.LogEntry{},
	}
	host := models.Player{ID: models.HostID, Name: name, Connected: true}
	a.rules.OnJoin(a.state, &host)
	a.state.Players = append(a.state.Players, host)

	if a.sink != nil {
		a.events = make(chan sinkEvent, sinkBuffer)
		go a.drainEvents(a.events)
	}
	a.appendLog(models.LogInfo, models.HostID, fmt.Sprintf("%s opened a %s table", name, opts.Settings.Game))
	return a, nil
}

// ID identifies this session in logs, events and the archive.
func (a *Authority) ID() uuid.UUID { return a.id }

// Attach sets the transport used to reach guests.
func (a *Authority) Attach(peers transport.Peers) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.peers = peers
}

// OnChange registers the host's local view. It receives a copy of exactly
// the state each broadcast was built from.
func (a *Authority) OnChange(fn func(models.GameState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = fn
}

// OnEmote registers a callback for relayed emotes.
func (a *Authority) OnEmote(fn func(protocol.Emote)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onEmote = fn
}

// OnWorking registers a callback for the current player's draft projection.
func (a *Authority) OnWorking(fn func(protocol.SyncWorking)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onWorking = fn
}

// View returns a copy of the canonical state.
func (a *Authority) View() models.GameState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// Close stops the event sink worker. Pending timers become no-ops.
func (a *Authority) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	a.turn++
	if a.events != nil {
		close(a.events)
	}
}

// HandleEvent is the transport.Handler for the host side.
func (a *Authority) HandleEvent(ev transport.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	switch ev.Kind {
	case transport.EventOpened:
		a.log.Info("listening for guests")
	case transport.EventPeerConnected:
		a.log.WithField("peer", ev.PeerID).Debug("peer connected; waiting for JOIN")
	case transport.EventPeerDisconnected:
		a.peerLeft(ev.PeerID)
	case transport.EventError:
		a.log.WithField("peer", ev.PeerID).Warnf("transport error: %v", ev.Err)
	case transport.EventMessage:
		a.receive(ev.PeerID, ev.Data)
	}
}

func (a *Authority) receive(peerID string, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		a.log.WithField("peer", peerID).Warnf("dropping message: %v", err)
		return
	}
	if join, ok := msg.(protocol.Join); ok {
		a.join(peerID, join)
		return
	}
	playerID, ok := a.peerPlayer[peerID]
	if !ok {
		a.log.WithField("peer", peerID).Warnf("dropping %s from a peer without a seat", msg.Kind())
		return
	}
	err = a.dispatch(playerID, msg)
	switch {
	case err == nil:
	case outOfTurn(err):
		// In-flight traffic from a guest whose turn just ended. The snapshot
		// that ended it is already on the way.
		a.log.WithField("player", playerID).Debugf("dropping %s: %v", msg.Kind(), err)
	case errors.Is(err, models.ErrIllegalMove):
		// The guest checks locally first, so a rejection means its mirror is
		// stale. Resend everything.
		a.log.WithField("player", playerID).Warnf("rejected %s: %v", msg.Kind(), err)
		a.sendTo(peerID, protocol.Sync{State: models.FullSnapshot(a.state)})
	default:
		a.log.WithField("player", playerID).Warnf("dropping %s: %v", msg.Kind(), err)
	}
}

// outOfTurn reports errors that are protocol noise rather than a rule breach.
func outOfTurn(err error) bool {
	return errors.Is(err, ErrNotYourTurn) || errors.Is(err, ErrWrongPhase) || errors.Is(err, ErrWrongGame)
}

// Submit applies a message on behalf of a local player: the host, or a test.
// Illegal moves come back as errors matching models.ErrIllegalMove.
func (a *Authority) Submit(playerID string, msg protocol.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return transport.ErrClosed
	}
	if a.state.Player(playerID) == nil {
		return ErrUnknownPlayer
	}
	return a.dispatch(playerID, msg)
}

func (a *Authority) dispatch(playerID string, msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.Chat:
		a.chat(playerID, m.Message)
		return nil
	case protocol.Emote:
		a.emote(playerID, m.Emoji)
		return nil
	case protocol.SyncWorking:
		return a.relayWorking(playerID, m)
	case protocol.Bid, protocol.Challenge, protocol.UpdateBoard, protocol.Draw:
		return a.act(playerID, msg)
	default:
		return fmt.Errorf("%w: %s is not accepted by the host", protocol.ErrProtocolViolation, msg.Kind())
	}
}

// act runs a turn action through the rules. Lock held.
func (a *Authority) act(playerID string, msg protocol.Message) error {
	if a.state.Phase != models.PhasePlaying {
		return ErrWrongPhase
	}
	cur := a.state.Current()
	if cur == nil || cur.ID != playerID {
		return ErrNotYourTurn
	}
	canon, err := a.rules.Validate(a.state, playerID, msg)
	if err != nil {
		return err
	}
	res := a.rules.Apply(a.state, playerID, canon)
	for _, line := range res.Log {
		a.appendLog(models.LogAction, playerID, cur.Name+" "+line)
	}
	a.afterTurn(res.TurnEnded)
	return nil
}

// afterTurn checks for a decided game, hands over the turn and publishes.
// Lock held.
func (a *Authority) afterTurn(turnEnded bool) {
	over := a.state.Phase != models.PhaseGameOver && a.rules.CheckTerminal(a.state)
	if over {
		a.finish()
	}
	if turnEnded || over {
		a.newTurn()
	}
	a.publish(false)
}

func (a *Authority) finish() {
	if w := a.state.Player(a.state.WinnerID); w != nil {
		a.appendLog(models.LogInfo, w.ID, w.Name+" wins")
	} else {
		a.appendLog(models.LogInfo, "", "game over")
	}
	a.log.WithFields(logrus.Fields{"winner": a.state.WinnerID, "loser": a.state.LoserID}).Info("game over")
	if a.results == nil {
		return
	}
	res := models.NewGameResult(a.id, a.state, a.startedAt)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.results.Archive(ctx, res); err != nil {
			a.log.Warnf("archiving result failed: %v", err)
		}
	}()
}

// newTurn invalidates timers from the previous turn and schedules whatever
// the new turn needs. Lock held.
func (a *Authority) newTurn() {
	a.turn++
	a.working = nil
	turn := a.turn
	s := a.state.Settings

	switch a.state.Phase {
	case models.PhaseRoundEnd:
		a.sched.AfterFunc(s.RevealDelay, func() { a.resolveRound(turn) })
	case models.PhasePlaying:
		cur := a.state.Current()
		if cur == nil {
			return
		}
		switch {
		case cur.IsBot:
			id := cur.ID
			a.sched.AfterFunc(s.BotDelay, func() { a.runBot(turn, id) })
		case !cur.Connected:
			a.scheduleGrace(cur.ID)
		}
	}
}

func (a *Authority) scheduleGrace(playerID string) {
	turn := a.turn
	a.sched.AfterFunc(a.state.Settings.DisconnectGrace, func() { a.autoPlay(turn, playerID) })
}

// holds reports whether playerID still has the turn scheduled under turn.
// Lock held.
func (a *Authority) holds(turn int, playerID string) bool {
	if a.closed || a.turn != turn || a.state.Phase != models.PhasePlaying {
		return false
	}
	cur := a.state.Current()
	return cur != nil && cur.ID == playerID
}

func (a *Authority) resolveRound(turn int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.turn != turn || a.state.Phase != models.PhaseRoundEnd {
		return
	}
	res := a.rules.Resolve(a.state, a.rng)
	for _, line := range res.Log {
		a.appendLog(models.LogInfo, "", line)
	}
	a.afterTurn(true)
}

func (a *Authority) runBot(turn int, botID string) {
	a.mu.Lock()
	if !a.holds(turn, botID) {
		a.mu.Unlock()
		return
	}
	view := a.state.Clone()
	rules := a.rules
	a.mu.Unlock()

	msg := rules.BotMove(context.Background(), &view, botID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.holds(turn, botID) {
		return
	}
	if err := a.act(botID, msg); err != nil {
		a.log.WithField("player", botID).Warnf("bot move %s rejected, playing default: %v", msg.Kind(), err)
		if err := a.act(botID, a.rules.AutoAction(a.state, botID)); err != nil {
			a.log.WithField("player", botID).Errorf("bot default move rejected: %v", err)
		}
	}
}

func (a *Authority) autoPlay(turn int, playerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.holds(turn, playerID) {
		return
	}
	p := a.state.Player(playerID)
	if p.Connected {
		return
	}
	a.appendLog(models.LogInfo, playerID, p.Name+" is away; playing for them")
	if err := a.act(playerID, a.rules.AutoAction(a.state, playerID)); err != nil {
		a.log.WithField("player", playerID).Errorf("default move rejected: %v", err)
	}
}

func (a *Authority) chat(playerID, text string) {
	text = truncate(strings.TrimSpace(text), maxChatLen)
	if text == "" {
		return
	}
	a.appendLog(models.LogChat, playerID, text)
	a.state.Version++
	a.push(models.LogSnapshot(a.state, a.sentSeq))
}

func (a *Authority) emote(playerID, emoji string) {
	if emoji == "" {
		return
	}
	e := protocol.Emote{PlayerID: playerID, Emoji: emoji}
	a.broadcast(e, a.playerPeer[playerID])
	if a.onEmote != nil {
		a.onEmote(e)
	}
}

// relayWorking forwards the current player's draft to everyone else. It is
// never stored in canonical state.
func (a *Authority) relayWorking(playerID string, m protocol.SyncWorking) error {
	if a.state.Settings.Game != models.GameRummy {
		return ErrWrongGame
	}
	if a.state.Phase != models.PhasePlaying {
		return ErrWrongPhase
	}
	if cur := a.state.Current(); cur == nil || cur.ID != playerID {
		return ErrNotYourTurn
	}
	m.PlayerID = playerID
	a.working = &m
	a.broadcast(m, a.playerPeer[playerID])
	if a.onWorking != nil {
		a.onWorking(m)
	}
	return nil
}

// Working returns the last relayed draft of the current turn, if any.
func (a *Authority) Working() (protocol.SyncWorking, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.working == nil {
		return protocol.SyncWorking{}, false
	}
	return *a.working, true
}

// appendLog adds an entry to the canonical log. Lock held.
func (a *Authority) appendLog(kind models.LogKind, playerID, message string) {
	e := models.LogEntry{
		Seq:      a.state.LastSeq() + 1,
		At:       time.Now(),
		Kind:     kind,
		PlayerID: playerID,
		Message:  message,
	}
	a.state.Log = append(a.state.Log, e)
	if a.events != nil && !a.closed {
		select {
		case a.events <- sinkEvent{game: a.state.Settings.Game, entry: e}:
		default:
			a.log.Warnf("event sink backlog full, dropping log entry %d", e.Seq)
		}
	}
}

func (a *Authority) drainEvents(ch <-chan sinkEvent) {
	for e := range ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.sink.Publish(ctx, a.id, e.game, e.entry); err != nil {
			a.log.Warnf("publishing log entry %d failed: %v", e.entry.Seq, err)
		}
		cancel()
	}
}

// publish bumps the version and pushes the change to every guest and to the
// local view. Lock held.
func (a *Authority) publish(full bool) {
	a.state.Version++
	if full {
		a.push(models.FullSnapshot(a.state))
		return
	}
	a.push(models.StateSnapshot(a.state, a.sentSeq))
}

func (a *Authority) push(snap models.Snapshot) {
	a.sentSeq = a.state.LastSeq()
	a.broadcast(protocol.Sync{State: snap})
	if a.onChange != nil {
		a.onChange(a.state.Clone())
	}
}

func (a *Authority) broadcast(msg protocol.Message, except ...string) {
	if a.peers == nil && a.local == nil {
		return
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		a.log.Errorf("encoding %s: %v", msg.Kind(), err)
		return
	}
	if a.peers != nil {
		a.peers.Broadcast(data, except...)
	}
	if a.local != nil && !slices.Contains(except, transport.HostPeerID) {
		a.local(transport.Event{Kind: transport.EventMessage, PeerID: transport.HostPeerID, Data: data})
	}
}

func (a *Authority) sendTo(peerID string, msg protocol.Message) {
	if peerID == "" {
		return
	}
	local := peerID == transport.HostPeerID && a.local != nil
	if !local && a.peers == nil {
		return
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		a.log.Errorf("encoding %s: %v", msg.Kind(), err)
		return
	}
	if local {
		a.local(transport.Event{Kind: transport.EventMessage, PeerID: transport.HostPeerID, Data: data})
		return
	}
	if err := a.peers.Send(peerID, data); err != nil {
		a.log.WithField("peer", peerID).Warnf("send %s: %v", msg.Kind(), err)
	}
}

func cleanName(s string) string {
	return truncate(strings.TrimSpace(s), maxNameLen)
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
