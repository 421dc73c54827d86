package authority

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/protocol"
	"github.com/sirupsen/logrus"
)

// disconnecter is implemented by transports that can drop a peer.
type disconnecter interface {
	Disconnect(peerID string)
}

// join seats a new guest in the lobby, or resyncs a known one at any phase.
// Lock held.
func (a *Authority) join(peerID string, m protocol.Join) {
	log := a.log.WithField("peer", peerID)

	if playerID, ok := a.known(peerID, m); ok {
		a.resync(peerID, playerID)
		return
	}
	if a.state.Phase != models.PhaseLobby {
		log.Info("refusing join: game in progress")
		a.drop(peerID)
		return
	}
	if len(a.state.Players) >= a.state.Settings.MaxPlayers {
		log.Info("refusing join: table full")
		a.drop(peerID)
		return
	}
	if a.state.Player(peerID) != nil {
		log.Info("refusing join: id already seated")
		a.drop(peerID)
		return
	}

	name := cleanName(m.Player.Name)
	if name == "" {
		name = fmt.Sprintf("Guest %d", len(a.state.Players))
	}
	p := models.Player{ID: peerID, Name: name, Avatar: m.Player.Avatar, Connected: true}
	a.rules.OnJoin(a.state, &p)
	a.state.Players = append(a.state.Players, p)
	a.bind(peerID, p.ID)

	a.welcome(peerID, p.ID)
	a.appendLog(models.LogInfo, p.ID, name+" joined")
	log.WithField("player", p.ID).Info("guest seated")

	a.state.Version++
	snap := models.StateSnapshot(a.state, a.sentSeq)
	a.sendTo(peerID, protocol.Sync{State: models.FullSnapshot(a.state)})
	a.sentSeq = a.state.LastSeq()
	a.broadcast(protocol.Sync{State: snap}, peerID)
	if a.onChange != nil {
		a.onChange(a.state.Clone())
	}
}

// known resolves a JOIN to an existing seat: by reconnection token when a
// signer is configured, otherwise by the claimed id.
func (a *Authority) known(peerID string, m protocol.Join) (string, bool) {
	if id, ok := a.peerPlayer[peerID]; ok {
		return id, true
	}
	if a.signer != nil {
		if m.Token == "" {
			return "", false
		}
		id, err := a.signer.Verify(m.Token)
		if err != nil {
			a.log.WithField("peer", peerID).Infof("ignoring reconnection token: %v", err)
			return "", false
		}
		p := a.state.Player(id)
		return id, p != nil && !p.IsBot && id != models.HostID
	}
	p := a.state.Player(m.Player.ID)
	return m.Player.ID, p != nil && !p.IsBot && p.ID != models.HostID
}

// resync reattaches a returning guest to its seat, keeping its holdings.
func (a *Authority) resync(peerID, playerID string) {
	if old, ok := a.playerPeer[playerID]; ok && old != peerID {
		delete(a.peerPlayer, old)
	}
	a.bind(peerID, playerID)
	p := a.state.Player(playerID)
	p.Connected = true

	a.welcome(peerID, playerID)
	a.appendLog(models.LogInfo, playerID, p.Name+" reconnected")
	a.log.WithFields(logrus.Fields{"peer": peerID, "player": playerID}).Info("guest resynced")

	a.state.Version++
	snap := models.StateSnapshot(a.state, a.sentSeq)
	a.sendTo(peerID, protocol.Sync{State: models.FullSnapshot(a.state)})
	a.sentSeq = a.state.LastSeq()
	a.broadcast(protocol.Sync{State: snap}, peerID)
	if a.onChange != nil {
		a.onChange(a.state.Clone())
	}
	if a.working != nil && a.playerPeer[a.working.PlayerID] != peerID {
		a.sendTo(peerID, *a.working)
	}
}

func (a *Authority) welcome(peerID, playerID string) {
	w := protocol.Welcome{PlayerID: playerID}
	if a.signer != nil {
		tok, err := a.signer.Issue(playerID)
		if err != nil {
			a.log.WithField("player", playerID).Errorf("issuing reconnection token: %v", err)
		}
		w.Token = tok
	}
	a.sendTo(peerID, w)
}

func (a *Authority) bind(peerID, playerID string) {
	a.peerPlayer[peerID] = playerID
	a.playerPeer[playerID] = peerID
}

func (a *Authority) unbind(peerID string) string {
	playerID, ok := a.peerPlayer[peerID]
	if !ok {
		return ""
	}
	delete(a.peerPlayer, peerID)
	if a.playerPeer[playerID] == peerID {
		delete(a.playerPeer, playerID)
	}
	return playerID
}

func (a *Authority) drop(peerID string) {
	if d, ok := a.peers.(disconnecter); ok {
		go d.Disconnect(peerID)
	}
}

// peerLeft handles a dropped link. In the lobby the seat is freed; in a game
// the seat stays and the turn is played for them after the grace period.
func (a *Authority) peerLeft(peerID string) {
	playerID := a.unbind(peerID)
	if playerID == "" {
		return
	}
	idx := a.state.PlayerIndex(playerID)
	if idx < 0 {
		return
	}
	p := &a.state.Players[idx]
	a.log.WithFields(logrus.Fields{"peer": peerID, "player": playerID}).Info("guest disconnected")

	if a.state.Phase == models.PhaseLobby {
		a.appendLog(models.LogInfo, playerID, p.Name+" left")
		a.removeSeat(idx)
		a.publish(false)
		return
	}
	p.Connected = false
	a.appendLog(models.LogInfo, playerID, p.Name+" disconnected")
	if a.state.Phase == models.PhasePlaying && a.state.CurrentPlayerIndex == idx {
		a.scheduleGrace(playerID)
	}
	a.publish(false)
}

func (a *Authority) removeSeat(idx int) {
	a.state.Players = append(a.state.Players[:idx], a.state.Players[idx+1:]...)
	if a.state.CurrentPlayerIndex >= len(a.state.Players) {
		a.state.CurrentPlayerIndex = 0
	}
}

// AddBot seats a computer player in the lobby and returns its id.
func (a *Authority) AddBot(name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Phase != models.PhaseLobby {
		return "", ErrNotInLobby
	}
	if len(a.state.Players) >= a.state.Settings.MaxPlayers {
		return "", ErrTableFull
	}
	name = cleanName(name)
	if name == "" {
		name = fmt.Sprintf("Bot %d", len(a.state.Players))
	}
	p := models.Player{
		ID:        "bot-" + uuid.NewString()[:8],
		Name:      name,
		IsBot:     true,
		Avatar:    a.rng.Intn(8),
		Connected: true,
	}
	a.rules.OnJoin(a.state, &p)
	a.state.Players = append(a.state.Players, p)
	a.appendLog(models.LogInfo, p.ID, name+" (bot) joined")
	a.publish(false)
	return p.ID, nil
}

// Kick removes a seat in the lobby and drops its peer.
func (a *Authority) Kick(playerID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if playerID == models.HostID {
		return ErrKickHost
	}
	if a.state.Phase != models.PhaseLobby {
		return ErrNotInLobby
	}
	idx := a.state.PlayerIndex(playerID)
	if idx < 0 {
		return ErrUnknownPlayer
	}
	name := a.state.Players[idx].Name
	if peerID, ok := a.playerPeer[playerID]; ok {
		a.unbind(peerID)
		a.drop(peerID)
	}
	a.removeSeat(idx)
	a.appendLog(models.LogInfo, playerID, name+" was removed")
	a.publish(false)
	return nil
}

// UpdateSettings replaces the lobby settings. Switching game kind swaps the
// rules.
func (a *Authority) UpdateSettings(s models.Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Phase != models.PhaseLobby {
		return ErrNotInLobby
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if len(a.state.Players) > s.MaxPlayers {
		return fmt.Errorf("%w: %d seated, limit %d", ErrTableFull, len(a.state.Players), s.MaxPlayers)
	}
	if s.Game != a.state.Settings.Game {
		a.rules.Reset(a.state)
		a.rules = rulesFor(s.Game, a.bots)
		for i := range a.state.Players {
			clearHoldings(&a.state.Players[i])
		}
	}
	a.state.Settings = s
	for i := range a.state.Players {
		a.rules.OnJoin(a.state, &a.state.Players[i])
	}
	a.appendLog(models.LogInfo, models.HostID, "settings updated")
	a.publish(false)
	return nil
}

// Start deals the first game from the lobby.
func (a *Authority) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Phase != models.PhaseLobby {
		return ErrNotInLobby
	}
	if len(a.state.Players) < 2 {
		return ErrNotEnoughPlayers
	}
	a.deal()
	return nil
}

// Restart deals a new game with the same seats from any in-game phase.
func (a *Authority) Restart() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Phase == models.PhaseLobby {
		return ErrWrongPhase
	}
	if len(a.state.Players) < 2 {
		return ErrNotEnoughPlayers
	}
	a.rules.Reset(a.state)
	a.deal()
	return nil
}

func (a *Authority) deal() {
	a.state.WinnerID = ""
	a.state.LoserID = ""
	a.rules.Setup(a.state, a.rng)
	a.startedAt = time.Now()
	a.appendLog(models.LogInfo, models.HostID, fmt.Sprintf("game started with %d players", len(a.state.Players)))
	a.log.WithField("players", len(a.state.Players)).Info("game started")
	a.newTurn()
	a.publish(true)
}

// ReturnToLobby abandons or closes the current game and reopens the lobby.
// Seats whose guests are gone are freed.
func (a *Authority) ReturnToLobby() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Phase == models.PhaseLobby {
		return nil
	}
	a.rules.Reset(a.state)
	kept := a.state.Players[:0]
	for _, p := range a.state.Players {
		if p.Connected {
			kept = append(kept, p)
		}
	}
	a.state.Players = kept
	a.state.Phase = models.PhaseLobby
	a.state.CurrentPlayerIndex = 0
	a.state.WinnerID = ""
	a.state.LoserID = ""
	a.turn++
	a.working = nil
	a.appendLog(models.LogInfo, models.HostID, "back to the lobby")
	a.publish(true)
	return nil
}

func clearHoldings(p *models.Player) {
	p.DiceHeld = nil
	p.DiceCount = 0
	p.Health = 0
	p.Hand = nil
	p.IceBroken = false
	p.Eliminated = false
}
