package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Client is a guest's connection to a Hub.
type Client struct {
	id      string
	conn    *websocket.Conn
	out     chan []byte
	handler Handler
	logger  *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// Dial connects to the hub at rawURL as peerID. It returns ErrIDCollision when
// the hub already has a peer with that id. The handler sees EventOpened and
// EventPeerConnected for the host before Dial returns.
func Dial(ctx context.Context, rawURL, peerID string, handler Handler, logger *logrus.Logger) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse hub url: %w", err)
	}
	q := u.Query()
	q.Set("id", peerID)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, ErrIDCollision
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		id:      peerID,
		conn:    conn,
		out:     make(chan []byte, outboundBuffer),
		handler: handler,
		logger:  logger.WithField("peer", peerID),
		ctx:     cctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	handler(Event{Kind: EventOpened, PeerID: peerID})
	handler(Event{Kind: EventPeerConnected, PeerID: HostPeerID})

	go writePump(cctx, conn, c.out, c.logger)
	go c.run()
	return c, nil
}

func (c *Client) run() {
	defer close(c.done)
	err := readPump(c.ctx, c.conn, HostPeerID, c.handler)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warnf("connection to host lost: %v", err)
		c.handler(Event{Kind: EventError, PeerID: HostPeerID, Err: err})
	}
	c.handler(Event{Kind: EventPeerDisconnected, PeerID: HostPeerID, Err: err})
	c.cancel()
}

// ID is the peer id this client registered with.
func (c *Client) ID() string { return c.id }

// Send queues data for the host without blocking.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}
	return enqueue(c.out, data)
}

// Done is closed once the connection has ended.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close ends the connection.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		err = c.conn.Close(websocket.StatusNormalClosure, "guest leaving")
		c.cancel()
	})
	return err
}
