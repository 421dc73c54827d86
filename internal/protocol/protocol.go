// Package protocol defines the messages exchanged between the authority and
// its guests. Every message is one of a closed set of types; anything else
// on the wire is a protocol violation.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/rummy"
)

// ErrProtocolViolation marks malformed, unknown or out-of-place messages.
// The authority drops them without touching state.
var ErrProtocolViolation = errors.New("protocol violation")

// Kind is the wire tag of a message.
type Kind string

const (
	KindJoin        Kind = "JOIN"
	KindWelcome     Kind = "WELCOME"
	KindSync        Kind = "SYNC"
	KindBid         Kind = "BID"
	KindChallenge   Kind = "CHALLENGE"
	KindUpdateBoard Kind = "RUMMIKUB_UPDATE_BOARD"
	KindSyncWorking Kind = "RUMMIKUB_SYNC_WORKING"
	KindDraw        Kind = "RUMMIKUB_DRAW"
	KindChat        Kind = "CHAT"
	KindEmote       Kind = "EMOTE"
)

// Message is implemented only by the types in this package.
type Message interface {
	Kind() Kind
	isMessage()
}

// Join asks for a seat, or a resync when Token identifies a known player.
type Join struct {
	Player models.Player `json:"player"`
	Token  string        `json:"token,omitempty"`
}

// Welcome tells a guest which identity it holds and how to reclaim it.
type Welcome struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token,omitempty"`
}

// Sync carries a full or partial snapshot.
type Sync struct {
	State models.Snapshot `json:"state"`
}

// Bid raises the current dice bid on behalf of the sender.
type Bid struct {
	Quantity int `json:"quantity"`
	Face     int `json:"face"`
}

// Challenge calls the current dice bid.
type Challenge struct{}

// UpdateBoard commits a rummy turn.
type UpdateBoard struct {
	BoardSets [][]models.Tile `json:"boardSets"`
	Hand      []models.Tile   `json:"hand"`
}

// SyncWorking is a best-effort projection of the active player's draft
// board. It is never canonical. A nil grid clears the projection.
type SyncWorking struct {
	PlayerID    string      `json:"playerId,omitempty"`
	WorkingGrid *rummy.Grid `json:"workingGrid"`
}

// Draw takes one tile from the pool and ends the turn.
type Draw struct{}

// Chat is a table message.
type Chat struct {
	PlayerID string `json:"playerId,omitempty"`
	Message  string `json:"message"`
}

// Emote is a transient reaction.
type Emote struct {
	PlayerID string `json:"playerId,omitempty"`
	Emoji    string `json:"emoji"`
}

func (Join) Kind() Kind        { return KindJoin }
func (Welcome) Kind() Kind     { return KindWelcome }
func (Sync) Kind() Kind        { return KindSync }
func (Bid) Kind() Kind         { return KindBid }
func (Challenge) Kind() Kind   { return KindChallenge }
func (UpdateBoard) Kind() Kind { return KindUpdateBoard }
func (SyncWorking) Kind() Kind { return KindSyncWorking }
func (Draw) Kind() Kind        { return KindDraw }
func (Chat) Kind() Kind        { return KindChat }
func (Emote) Kind() Kind       { return KindEmote }

func (Join) isMessage()        {}
func (Welcome) isMessage()     {}
func (Sync) isMessage()        {}
func (Bid) isMessage()         {}
func (Challenge) isMessage()   {}
func (UpdateBoard) isMessage() {}
func (SyncWorking) isMessage() {}
func (Draw) isMessage()        {}
func (Chat) isMessage()        {}
func (Emote) isMessage()       {}

type envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode serializes m inside its tagged envelope.
func Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", m.Kind(), err)
	}
	return json.Marshal(envelope{Type: m.Kind(), Payload: payload})
}

// MustEncode is Encode for messages that cannot fail to marshal.
func MustEncode(m Message) []byte {
	data, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode parses a tagged envelope. Unknown tags and malformed payloads
// return an error wrapping ErrProtocolViolation.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	switch env.Type {
	case KindJoin:
		return decode[Join](env.Payload)
	case KindWelcome:
		return decode[Welcome](env.Payload)
	case KindSync:
		return decode[Sync](env.Payload)
	case KindBid:
		return decode[Bid](env.Payload)
	case KindChallenge:
		return decode[Challenge](env.Payload)
	case KindUpdateBoard:
		return decode[UpdateBoard](env.Payload)
	case KindSyncWorking:
		return decode[SyncWorking](env.Payload)
	case KindDraw:
		return decode[Draw](env.Payload)
	case KindChat:
		return decode[Chat](env.Payload)
	case KindEmote:
		return decode[Emote](env.Payload)
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrProtocolViolation, env.Type)
	}
}

func decode[T Message](payload json.RawMessage) (Message, error) {
	var v T
	if len(payload) == 0 || string(payload) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrProtocolViolation, v.Kind(), err)
	}
	return v, nil
}
