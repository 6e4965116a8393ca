package broadcast

import (
	"time"

	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/pkg/wire"
)

// envelope pairs a message with its declared sender, as it would arrive
// off the wire.
type envelope struct {
	from party.ID
	msg  wire.RBCMessage
}

// MemNetwork is an in-process fan-out used by simulations and tests: every
// registered party gets a buffered inbox, and SendAll/Send fan a message
// out to the recipients' inboxes directly, without touching the unicast
// cipher/MAC layer. It stands in for point-to-point asynchronous links
// when the test cares about RBC's agreement/FIFO properties rather than
// the transport's confidentiality.
type MemNetwork struct {
	inboxes map[party.ID]chan envelope
}

// NewMemNetwork creates a fully-connected in-memory network for the given
// parties.
func NewMemNetwork(parties party.IDSlice) *MemNetwork {
	n := &MemNetwork{inboxes: make(map[party.ID]chan envelope, len(parties))}
	for _, p := range parties {
		n.inboxes[p] = make(chan envelope, 4096)
	}
	return n
}

// For returns a Transport bound to self's inbox, able to send to any
// registered peer.
func (n *MemNetwork) For(self party.ID) Transport {
	return &memTransport{net: n, self: self}
}

type memTransport struct {
	net  *MemNetwork
	self party.ID
}

func (t *memTransport) Send(to party.ID, msg wire.RBCMessage, timeout time.Duration) error {
	inbox, ok := t.net.inboxes[to]
	if !ok {
		return errs.New(errs.InvalidArgument, "broadcast: unknown peer %s", to)
	}
	select {
	case inbox <- envelope{from: t.self, msg: msg}:
		return nil
	case <-time.After(timeout):
		return errs.New(errs.Transient, "broadcast: send to %s timed out", to)
	}
}

func (t *memTransport) SendAll(peers party.IDSlice, msg wire.RBCMessage, timeout time.Duration) error {
	for _, p := range peers {
		if p == t.self {
			continue
		}
		if err := t.Send(p, msg, timeout); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTransport) Receive(timeout time.Duration) (wire.RBCMessage, party.ID, error) {
	inbox := t.net.inboxes[t.self]
	select {
	case e := <-inbox:
		return e.msg, e.from, nil
	case <-time.After(timeout):
		return wire.RBCMessage{}, "", ErrTimeout
	}
}
