// Package transport moves opaque message bytes between the authority and its
// guests. The game layers above only see Events and a fire-and-forget Send.
package transport

import "errors"

// Subprotocol is the websocket subprotocol both ends must speak.
const Subprotocol = "tablehost"

// HostPeerID is the peer id guests see for the authority.
const HostPeerID = "host"

var (
	// ErrIDCollision means another peer already holds the requested id.
	ErrIDCollision = errors.New("peer id already in use")
	// ErrUnknownPeer means the target peer is not connected.
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrBacklog means the peer's outbound queue is full and the message was dropped.
	ErrBacklog = errors.New("peer outbound queue full")
	// ErrClosed means the connection is gone.
	ErrClosed = errors.New("connection closed")
)

// EventKind enumerates what a transport reports.
type EventKind int

const (
	EventOpened EventKind = iota
	EventPeerConnected
	EventMessage
	EventPeerDisconnected
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventPeerConnected:
		return "peer-connected"
	case EventMessage:
		return "message"
	case EventPeerDisconnected:
		return "peer-disconnected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one transport notification.
type Event struct {
	Kind   EventKind
	PeerID string
	Data   []byte
	Err    error
}

// Handler receives events. Implementations must not block for long.
type Handler func(Event)

// Peers is the authority's view of its connected guests.
type Peers interface {
	Send(peerID string, data []byte) error
	Broadcast(data []byte, except ...string)
}

// Sender is a guest's single connection to the authority.
type Sender interface {
	Send(data []byte) error
}
