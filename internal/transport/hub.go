package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/tablehost/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	outboundBuffer = 64
	writeTimeout   = 3 * time.Second
)

type hubPeer struct {
	id     string
	conn   *websocket.Conn
	out    chan []byte
	cancel context.CancelFunc
}

// Hub accepts guest websocket connections on behalf of the authority.
// Peers identify themselves with the "id" query parameter.
type Hub struct {
	logger  *logrus.Logger
	handler Handler

	mu    sync.Mutex
	peers map[string]*hubPeer
}

// NewHub returns a hub that reports events to handler.
func NewHub(logger *logrus.Logger, handler Handler) *Hub {
	return &Hub{
		logger:  logger,
		handler: handler,
		peers:   make(map[string]*hubPeer),
	}
}

// Listen serves the hub on addr until ctx is done. EventOpened fires once
// the listener is up.
func (h *Hub) Listen(ctx context.Context, addr string, mux *http.ServeMux) error {
	if mux == nil {
		mux = http.NewServeMux()
	}
	mux.Handle("/peer", middleware.LogMiddleware(h.logger)(h))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	h.handler(Event{Kind: EventOpened, PeerID: HostPeerID})

	select {
	case <-ctx.Done():
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		h.handler(Event{Kind: EventError, PeerID: HostPeerID, Err: err})
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
}

// ServeHTTP upgrades one guest connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" || id == HostPeerID {
		http.Error(w, "missing or reserved peer id", http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	_, taken := h.peers[id]
	h.mu.Unlock()
	if taken {
		http.Error(w, ErrIDCollision.Error(), http.StatusConflict)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warnf("websocket accept error for peer %s: %v", id, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")
	if c.Subprotocol() != Subprotocol {
		c.Close(websocket.StatusPolicyViolation, "client must speak the "+Subprotocol+" subprotocol")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	p := &hubPeer{id: id, conn: c, out: make(chan []byte, outboundBuffer), cancel: cancel}

	h.mu.Lock()
	if _, taken := h.peers[id]; taken {
		h.mu.Unlock()
		c.Close(websocket.StatusPolicyViolation, ErrIDCollision.Error())
		return
	}
	h.peers[id] = p
	h.mu.Unlock()

	middleware.LogWebSocketConnect(h.logger, r.RemoteAddr, id)
	h.handler(Event{Kind: EventPeerConnected, PeerID: id})

	go writePump(ctx, c, p.out, h.logger.WithField("peer", id))
	err = readPump(ctx, c, id, h.handler)

	h.mu.Lock()
	if h.peers[id] == p {
		delete(h.peers, id)
	}
	h.mu.Unlock()
	middleware.LogWebSocketDisconnect(h.logger, r.RemoteAddr, id, err)
	h.handler(Event{Kind: EventPeerDisconnected, PeerID: id, Err: err})
}

// Send queues data for one peer without blocking.
func (h *Hub) Send(peerID string, data []byte) error {
	h.mu.Lock()
	p, ok := h.peers[peerID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peerID)
	}
	return enqueue(p.out, data)
}

// Broadcast queues data for every peer not listed in except.
func (h *Hub) Broadcast(data []byte, except ...string) {
	h.mu.Lock()
	targets := make([]*hubPeer, 0, len(h.peers))
	for id, p := range h.peers {
		if !contains(except, id) {
			targets = append(targets, p)
		}
	}
	h.mu.Unlock()
	for _, p := range targets {
		if err := enqueue(p.out, data); err != nil {
			h.logger.Warnf("dropping broadcast to peer %s: %v", p.id, err)
		}
	}
}

// Disconnect drops one peer.
func (h *Hub) Disconnect(peerID string) {
	h.mu.Lock()
	p, ok := h.peers[peerID]
	h.mu.Unlock()
	if ok {
		p.conn.Close(websocket.StatusNormalClosure, "removed by host")
		p.cancel()
	}
}

// Close drops every peer.
func (h *Hub) Close() {
	h.mu.Lock()
	peers := make([]*hubPeer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		p.conn.Close(websocket.StatusGoingAway, "host closing")
		p.cancel()
	}
}

// PeerIDs lists connected peers.
func (h *Hub) PeerIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	return ids
}

func enqueue(out chan []byte, data []byte) error {
	select {
	case out <- data:
		return nil
	default:
		return ErrBacklog
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// readPump forwards text frames to the handler until the connection ends.
func readPump(ctx context.Context, c *websocket.Conn, peerID string, handler Handler) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		handler(Event{Kind: EventMessage, PeerID: peerID, Data: data})
	}
}

// writePump drains out onto the connection until ctx is done.
func writePump(ctx context.Context, c *websocket.Conn, out <-chan []byte, log *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Warnf("websocket write failed: %v", err)
				return
			}
		}
	}
}
