package authority

import (
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/jason-s-yu/tablehost/internal/protocol"
	"github.com/jason-s-yu/tablehost/internal/transport"
)

// LocalLink seats an in-process client, usually a replica, as the host. It
// receives the same messages a guest would, starting with WELCOME and a full
// snapshot, and delivery happens while the authority lock is held, so h must
// not call back into the Authority. Sends on the returned link run as the
// host and report rule violations directly.
func (a *Authority) LocalLink(h transport.Handler) transport.Sender {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.local = h
	a.bind(transport.HostPeerID, models.HostID)
	h(transport.Event{Kind: transport.EventOpened, PeerID: transport.HostPeerID})
	a.sendTo(transport.HostPeerID, protocol.Welcome{PlayerID: models.HostID})
	a.sendTo(transport.HostPeerID, protocol.Sync{State: models.FullSnapshot(a.state)})
	return localLink{a: a}
}

type localLink struct {
	a *Authority
}

func (l localLink) Send(data []byte) error {
	msg, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	if _, ok := msg.(protocol.Join); ok {
		return nil
	}
	return l.a.Submit(models.HostID, msg)
}
