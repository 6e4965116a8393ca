// Package broadcast implements the Cachin-Kursawe-Petzold-Shoup
// optimised-Bracha Reliable Broadcast protocol: FIFO-ordered,
// Byzantine-tolerant broadcast over point-to-point asynchronous links,
// with up to t < n/3 faulty parties.
package broadcast

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/hash"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/pkg/wire"
)

// tag is the per-(ID, sender, sequence) identifier shash(ID, j, s) that
// indexes all RBC state.
type tag string

func makeTag(q *big.Int, id []byte, j int, s uint64) tag {
	return tag(hex.EncodeToString(hash.Tag(q, id, j, s)))
}

// acks is the bookkeeping for one tag: candidate value/hash, the
// once-only acknowledgement flags per peer, and the vouch counts keyed by
// the hash they vouch for.
type acks struct {
	mbar *big.Int // m̄[tag]
	dbar *big.Int // d̄[tag]

	send, echo, ready, request, answer map[party.ID]bool
	eD, rD                             map[string]int // e_d[tag][d], r_d[tag][d], keyed by d.Text(10)

	requesters []party.ID
	delivered  bool
}

func newAcks() *acks {
	return &acks{
		send: map[party.ID]bool{}, echo: map[party.ID]bool{},
		ready: map[party.ID]bool{}, request: map[party.ID]bool{}, answer: map[party.ID]bool{},
		eD: map[string]int{}, rD: map[string]int{},
	}
}

// pending is a value confirmed deliverable (hash matches, count reached)
// but not yet FIFO-eligible.
type pending struct {
	from party.ID
	seq  uint64
	val  *big.Int
}

// idStack is the setID/unsetID nesting frame.
type idStack struct {
	id        []byte
	s         uint64
	deliverS  map[party.ID]uint64
}

// Channel is one party's view of a Reliable Broadcast session.
type Channel struct {
	n, t  int
	self  party.ID
	parties party.IDSlice
	q     *big.Int // Z_q modulus used by shash for tags
	tp    Transport

	mu sync.Mutex

	id       []byte
	s        uint64
	deliverS map[party.ID]uint64

	state       map[tag]*acks
	deliverBuf  []pending

	stack []idStack
}

// New creates an RBC channel. It warns (via the warn argument, when
// non-nil) but does not fail if 3t >= n, the protocol's fault bound.
func New(self party.ID, parties party.IDSlice, t int, q *big.Int, tp Transport, warn *errs.Warnings) (*Channel, error) {
	n := len(parties)
	if n < 2 {
		return nil, errs.New(errs.InvalidArgument, "broadcast: n must be >= 2, got %d", n)
	}
	if 3*t >= n && warn != nil {
		warn.Add("", "broadcast: 3t >= n (t=%d, n=%d): Byzantine agreement is not guaranteed", t, n)
	}
	ch := &Channel{
		n: n, t: t, self: self, parties: parties.Sort(), q: q, tp: tp,
		id:       []byte("RBC-root"),
		deliverS: make(map[party.ID]uint64, n),
		state:    make(map[tag]*acks),
	}
	for _, p := range ch.parties {
		ch.deliverS[p] = 1
	}
	return ch, nil
}

func (ch *Channel) ackState(t tag) *acks {
	a, ok := ch.state[t]
	if !ok {
		a = newAcks()
		ch.state[t] = a
	}
	return a
}

// SetID switches to a nested tag space for a sub-protocol: computes
// ID' = shash(...), stacks the previous (ID, s, deliver_s) for
// restoration by unsetID, and resets all sequence counters. This lets
// nested sub-protocols reuse the channel without tag collisions against
// the outer call's messages.
func (ch *Channel) SetID(label string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	frame := idStack{id: ch.id, s: ch.s, deliverS: ch.deliverS}
	ch.stack = append(ch.stack, frame)

	digest := hash.Shash(fmt.Sprintf("RBC called from [%s] with last ID = %s", label, hex.EncodeToString(ch.id)), ch.q)
	ch.id = digest.Bytes()
	ch.s = 0
	ch.deliverS = make(map[party.ID]uint64, len(ch.parties))
	for _, p := range ch.parties {
		ch.deliverS[p] = 1
	}
}

// UnsetID restores the previous tag space pushed by the matching SetID.
func (ch *Channel) UnsetID() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.stack) == 0 {
		return errs.New(errs.ProtocolViolation, "broadcast: unsetID without matching setID")
	}
	top := ch.stack[len(ch.stack)-1]
	ch.stack = ch.stack[:len(ch.stack)-1]
	ch.id, ch.s, ch.deliverS = top.id, top.s, top.deliverS
	return nil
}

// Broadcast sends m to every party as a fresh r-send, non-suspending
// beyond the underlying Send calls.
func (ch *Channel) Broadcast(m *big.Int, timeout time.Duration) error {
	ch.mu.Lock()
	ch.s++
	s := ch.s
	id := append([]byte(nil), ch.id...)
	ch.mu.Unlock()

	idNum := new(big.Int).SetBytes(id)
	msg := wire.RBCMessage{ID: idNum, From: big.NewInt(int64(ch.indexOf(ch.self))), Seq: big.NewInt(int64(s)), Action: wire.ActionSend, Payload: m}
	return ch.tp.SendAll(ch.parties, msg, timeout)
}

func (ch *Channel) indexOf(p party.ID) int {
	return ch.parties.Index(p)
}

func (ch *Channel) partyAt(i int) (party.ID, bool) {
	if i < 0 || i >= len(ch.parties) {
		return "", false
	}
	return ch.parties[i], true
}

// hashOf computes H(m) used as the RBC candidate digest d.
func (ch *Channel) hashOf(m *big.Int) *big.Int {
	return hash.Shash("RBC-digest", ch.q, hash.Big(m))
}

// Deliver processes inbound messages and returns the next FIFO-eligible
// (sender, sequence, value) once available, or times out. It first drains
// deliverBuf, the buffer of values already confirmed deliverable but not
// yet FIFO-eligible.
func (ch *Channel) Deliver(timeout time.Duration) (party.ID, uint64, *big.Int, error) {
	deadline := time.Now().Add(timeout)
	for {
		if from, seq, val, ok := ch.popDeliverable(); ok {
			return from, seq, val, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", 0, nil, errs.New(errs.Transient, "broadcast: deliver timed out after %s", timeout)
		}
		msg, from, err := ch.tp.Receive(remaining)
		if err != nil {
			if err == ErrTimeout {
				continue
			}
			return "", 0, nil, err
		}
		ch.handle(msg, from)
	}
}

// DeliverFrom loops Deliver until an entry from `from` with the current
// tag space is available.
func (ch *Channel) DeliverFrom(from party.ID, timeout time.Duration) (uint64, *big.Int, error) {
	deadline := time.Now().Add(timeout)
	for {
		// A value re-buffered below already advanced deliverS, so it is
		// recognised by seq < deliverS and handed out here first.
		ch.mu.Lock()
		for i, e := range ch.deliverBuf {
			if e.from == from && e.seq < ch.deliverS[from] {
				ch.deliverBuf = append(ch.deliverBuf[:i], ch.deliverBuf[i+1:]...)
				ch.mu.Unlock()
				return e.seq, e.val, nil
			}
		}
		ch.mu.Unlock()
		p, seq, val, err := ch.Deliver(time.Until(deadline))
		if err != nil {
			return 0, nil, err
		}
		if p == from {
			return seq, val, nil
		}
		// not the sender we're waiting for: re-buffer for a later caller.
		ch.mu.Lock()
		ch.deliverBuf = append(ch.deliverBuf, pending{from: p, seq: seq, val: val})
		ch.mu.Unlock()
	}
}

func (ch *Channel) popDeliverable() (party.ID, uint64, *big.Int, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	for i, p := range ch.deliverBuf {
		if ch.deliverS[p.from] == p.seq {
			ch.deliverS[p.from]++
			ch.deliverBuf = append(ch.deliverBuf[:i], ch.deliverBuf[i+1:]...)
			return p.from, p.seq, p.val, true
		}
	}
	return "", 0, nil, false
}

func (ch *Channel) enqueueDeliverable(from party.ID, seq uint64, val *big.Int) {
	ch.mu.Lock()
	ch.deliverBuf = append(ch.deliverBuf, pending{from: from, seq: seq, val: val})
	ch.mu.Unlock()
}

// handle processes one inbound RBC message per the Bracha state machine.
func (ch *Channel) handle(msg wire.RBCMessage, from party.ID) {
	ch.mu.Lock()
	id := ch.id
	ch.mu.Unlock()
	if new(big.Int).SetBytes(id).Cmp(msg.ID) != 0 {
		return // different tag space (nested sub-protocol); discard silently
	}
	senderIdx := int(msg.From.Int64())
	sender, ok := ch.partyAt(senderIdx)
	if !ok {
		return
	}
	s := msg.Seq.Uint64()
	t := makeTag(ch.q, id, senderIdx, s)

	ch.mu.Lock()
	a := ch.ackState(t)
	ch.mu.Unlock()

	switch msg.Action {
	case wire.ActionSend:
		if sender != from || a.send[from] {
			return // declared sender must match actual sender; no dup
		}
		a.send[from] = true
		a.mbar = msg.Payload
		d := ch.hashOf(msg.Payload)
		idNum := new(big.Int).SetBytes(id)
		echoMsg := wire.RBCMessage{ID: idNum, From: msg.From, Seq: msg.Seq, Action: wire.ActionEcho, Payload: d}
		_ = ch.tp.SendAll(ch.parties, echoMsg, time.Second)

	case wire.ActionEcho:
		if a.echo[from] {
			return
		}
		a.echo[from] = true
		d := msg.Payload.Text(10)
		a.eD[d]++
		if a.eD[d] == ch.n-ch.t && a.rD[d] <= ch.t {
			ch.sendReady(id, msg.From, msg.Seq, msg.Payload)
		}

	case wire.ActionReady:
		if a.ready[from] {
			return
		}
		a.ready[from] = true
		d := msg.Payload.Text(10)
		a.rD[d]++
		threshold := 2*ch.t + 1
		degenerate := ch.t == 0 && a.rD[d] == 1 // t=0 degenerate case: a single ready is already a threshold
		if a.rD[d] == ch.t+1 && a.eD[d] < ch.n-ch.t {
			ch.sendReady(id, msg.From, msg.Seq, msg.Payload) // amplify
		}
		if a.rD[d] == threshold || degenerate {
			a.dbar = msg.Payload
			if a.mbar != nil && ch.hashOf(a.mbar).Cmp(a.dbar) == 0 {
				ch.deliverValue(sender, s, a)
			} else {
				ch.requestValue(id, msg.From, msg.Seq, a)
			}
		}

	case wire.ActionRequest:
		if a.request[from] {
			return
		}
		a.request[from] = true
		if a.mbar != nil {
			idNum := new(big.Int).SetBytes(id)
			answer := wire.RBCMessage{ID: idNum, From: msg.From, Seq: msg.Seq, Action: wire.ActionAnswer, Payload: a.mbar}
			_ = ch.tp.Send(from, answer, time.Second)
		}

	case wire.ActionAnswer:
		if a.answer[from] || a.dbar == nil {
			return
		}
		a.answer[from] = true
		if ch.hashOf(msg.Payload).Cmp(a.dbar) != 0 {
			return // mismatched answer, discard
		}
		a.mbar = msg.Payload
		ch.deliverValue(sender, s, a)
	}
}

func (ch *Channel) sendReady(id []byte, from, seq, d *big.Int) {
	idNum := new(big.Int).SetBytes(id)
	msg := wire.RBCMessage{ID: idNum, From: from, Seq: seq, Action: wire.ActionReady, Payload: d}
	_ = ch.tp.SendAll(ch.parties, msg, time.Second)
}

func (ch *Channel) requestValue(id []byte, from, seq *big.Int, a *acks) {
	idNum := new(big.Int).SetBytes(id)
	msg := wire.RBCMessage{ID: idNum, From: from, Seq: seq, Action: wire.ActionRequest, Payload: big.NewInt(0)}
	target := 2*ch.t + 1
	for i, p := range ch.parties {
		if i >= target {
			break
		}
		_ = ch.tp.Send(p, msg, time.Second)
	}
}

func (ch *Channel) deliverValue(from party.ID, seq uint64, a *acks) {
	if a.delivered {
		return
	}
	a.delivered = true
	ch.enqueueDeliverable(from, seq, a.mbar)
}

// Sync performs approximate clock agreement: each party broadcasts its
// remaining timeout, collects n-t values (its own plus n-t-1 delivered), and
// adjusts its local timeout to the median. It fails if the last
// adjustment still exceeds one slice of timeout/10.
func (ch *Channel) Sync(timeout time.Duration) (time.Duration, error) {
	if err := ch.Broadcast(big.NewInt(int64(timeout)), timeout); err != nil {
		return 0, err
	}
	samples := []int64{int64(timeout)}
	need := ch.n - ch.t
	for len(samples) < need {
		_, _, val, err := ch.Deliver(timeout)
		if err != nil {
			return 0, err
		}
		samples = append(samples, val.Int64())
	}
	median := medianInt64(samples)
	delta := median - int64(timeout)
	if delta < 0 {
		delta = -delta
	}
	if time.Duration(delta) > timeout/10 {
		return time.Duration(median), errs.New(errs.Transient, "broadcast: sync did not converge within timeout/10")
	}
	return time.Duration(median), nil
}

func medianInt64(xs []int64) int64 {
	sorted := append([]int64(nil), xs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted[len(sorted)/2]
}
