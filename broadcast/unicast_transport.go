package broadcast

import (
	"math/big"
	"time"

	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/pkg/wire"
	"github.com/libtmcg/tmcg/transport/unicast"
)

// fieldBound is the bit-length bound passed to unicast's encode/decode for
// every RBC message field. RBC tags, sequence numbers, and action codes
// are small; the payload is whatever the caller broadcasts, so the bound
// here must cover the largest Z_q element the session can ever carry.
const fieldBound = 8192

// UnicastTransport layers an RBC Channel over the authenticated,
// confidentiality-providing unicast transport. A message is packed as
// five sequential bignum sends, one per wire.RBCMessage field, so no new
// wire format is needed beyond transport/unicast's own framing.
type UnicastTransport struct {
	ch   *unicast.Channel
	poll unicast.Scheduler
}

// NewUnicastTransport wraps an already-established unicast.Channel. poll
// selects which peer Receive checks first when no sender is yet known;
// RoundRobin or Random are both reasonable choices.
func NewUnicastTransport(ch *unicast.Channel, poll unicast.Scheduler) *UnicastTransport {
	return &UnicastTransport{ch: ch, poll: poll}
}

func (t *UnicastTransport) Send(to party.ID, msg wire.RBCMessage, timeout time.Duration) error {
	fields := []*big.Int{
		msg.ID, msg.From, msg.Seq, big.NewInt(int64(msg.Action)), msg.Payload,
	}
	for _, f := range fields {
		if err := t.ch.Send(timeout, to, f, fieldBound); err != nil {
			return err
		}
	}
	return nil
}

func (t *UnicastTransport) SendAll(peers party.IDSlice, msg wire.RBCMessage, timeout time.Duration) error {
	for _, p := range peers {
		if err := t.Send(p, msg, timeout); err != nil {
			return err
		}
	}
	return nil
}

// Receive reads the ID field from whichever peer the scheduler turns up
// first, then pins the remaining four fields to that same sender with
// Direct, so a message is never reassembled from two different peers'
// interleaved frames.
func (t *UnicastTransport) Receive(timeout time.Duration) (wire.RBCMessage, party.ID, error) {
	deadline := time.Now().Add(timeout)

	id, from, err := t.ch.Receive(time.Until(deadline), t.poll, fieldBound)
	if err != nil {
		return wire.RBCMessage{}, "", err
	}

	values := make([]*big.Int, 4)
	for i := range values {
		v, _, err := t.ch.Receive(time.Until(deadline), unicast.Direct(from), fieldBound)
		if err != nil {
			return wire.RBCMessage{}, from, err
		}
		values[i] = v
	}

	msg := wire.RBCMessage{
		ID:      id,
		From:    values[0],
		Seq:     values[1],
		Action:  wire.RBCAction(values[2].Int64()),
		Payload: values[3],
	}
	return msg, from, nil
}
