package transport

import (
	"fmt"
	"sync"
)

// Loopback is an in-memory Peers implementation. Delivery is synchronous in
// both directions so tests observe effects as soon as a send returns.
type Loopback struct {
	mu    sync.Mutex
	host  Handler
	peers map[string]*LoopbackPeer
	order []string
}

// NewLoopback returns an empty loopback network.
func NewLoopback() *Loopback {
	return &Loopback{peers: make(map[string]*LoopbackPeer)}
}

// Attach sets the host-side handler and reports EventOpened to it.
func (l *Loopback) Attach(h Handler) {
	l.mu.Lock()
	l.host = h
	l.mu.Unlock()
	h(Event{Kind: EventOpened, PeerID: HostPeerID})
}

// Connect adds a guest peer. The guest handler may be nil.
func (l *Loopback) Connect(peerID string, h Handler) (*LoopbackPeer, error) {
	l.mu.Lock()
	if _, ok := l.peers[peerID]; ok || peerID == HostPeerID {
		l.mu.Unlock()
		return nil, ErrIDCollision
	}
	p := &LoopbackPeer{id: peerID, net: l, handler: h}
	l.peers[peerID] = p
	l.order = append(l.order, peerID)
	host := l.host
	l.mu.Unlock()

	if h != nil {
		h(Event{Kind: EventOpened, PeerID: peerID})
		h(Event{Kind: EventPeerConnected, PeerID: HostPeerID})
	}
	if host != nil {
		host(Event{Kind: EventPeerConnected, PeerID: peerID})
	}
	return p, nil
}

// Peer returns a connected peer by id.
func (l *Loopback) Peer(peerID string) (*LoopbackPeer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.peers[peerID]
	return p, ok
}

// Send delivers data to one guest.
func (l *Loopback) Send(peerID string, data []byte) error {
	l.mu.Lock()
	p, ok := l.peers[peerID]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peerID)
	}
	p.deliver(data)
	return nil
}

// Broadcast delivers data to every guest not listed in except, in connection order.
func (l *Loopback) Broadcast(data []byte, except ...string) {
	l.mu.Lock()
	targets := make([]*LoopbackPeer, 0, len(l.order))
	for _, id := range l.order {
		if !contains(except, id) {
			targets = append(targets, l.peers[id])
		}
	}
	l.mu.Unlock()
	for _, p := range targets {
		p.deliver(data)
	}
}

// Disconnect drops a guest as though its link failed.
func (l *Loopback) Disconnect(peerID string) {
	l.mu.Lock()
	p, ok := l.peers[peerID]
	if ok {
		delete(l.peers, peerID)
		for i, id := range l.order {
			if id == peerID {
				l.order = append(l.order[:i], l.order[i+1:]...)
				break
			}
		}
	}
	host := l.host
	l.mu.Unlock()
	if !ok {
		return
	}
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h(Event{Kind: EventPeerDisconnected, PeerID: HostPeerID})
	}
	if host != nil {
		host(Event{Kind: EventPeerDisconnected, PeerID: peerID})
	}
}

// LoopbackPeer is one guest on a Loopback network.
type LoopbackPeer struct {
	id      string
	net     *Loopback
	handler Handler

	mu       sync.Mutex
	sent     [][]byte
	received [][]byte
}

// ID returns the peer id.
func (p *LoopbackPeer) ID() string { return p.id }

// Send delivers data to the host.
func (p *LoopbackPeer) Send(data []byte) error {
	p.net.mu.Lock()
	_, live := p.net.peers[p.id]
	host := p.net.host
	p.net.mu.Unlock()
	if !live {
		return ErrClosed
	}
	p.mu.Lock()
	p.sent = append(p.sent, data)
	p.mu.Unlock()
	if host != nil {
		host(Event{Kind: EventMessage, PeerID: p.id, Data: data})
	}
	return nil
}

// Close disconnects the peer.
func (p *LoopbackPeer) Close() error {
	p.net.Disconnect(p.id)
	return nil
}

// Sent returns copies of everything this peer sent to the host.
func (p *LoopbackPeer) Sent() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.sent...)
}

// Received returns copies of everything the host delivered to this peer.
func (p *LoopbackPeer) Received() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.received...)
}

// SetHandler replaces the guest-side handler.
func (p *LoopbackPeer) SetHandler(h Handler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

func (p *LoopbackPeer) deliver(data []byte) {
	p.mu.Lock()
	p.received = append(p.received, data)
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h(Event{Kind: EventMessage, PeerID: HostPeerID, Data: data})
	}
}
