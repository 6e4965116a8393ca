package broadcast

import (
	"time"

	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/pkg/wire"
)

// Transport is what a Channel needs from the link layer below it: send one
// RBC message to one peer, and poll for the next inbound one. RBC is
// layered over this interface rather than any concrete transport, so the
// same Channel logic runs either over transport/unicast (production) or
// over an in-memory fan-out (tests, simulations).
type Transport interface {
	Send(to party.ID, msg wire.RBCMessage, timeout time.Duration) error
	SendAll(peers party.IDSlice, msg wire.RBCMessage, timeout time.Duration) error
	Receive(timeout time.Duration) (wire.RBCMessage, party.ID, error)
}

// ErrTimeout is returned by Receive when no message arrives before the
// deadline.
var ErrTimeout = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string { return "broadcast: receive timed out" }
