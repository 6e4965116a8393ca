// Package unicast implements an authenticated, encrypted point-to-point
// transport: one bignum at a time between two parties, confidential and
// sender-authenticated, with per-peer sequence numbers recovered from
// byte streams that may deliver partial data.
package unicast

import (
	"bufio"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/party"
)

// Direction distinguishes the two independently-sequenced halves of a
// peer-pair channel.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

// Mode selects the block-cipher mode: Stream prefixes a random IV once per
// connection (CFB); Chunked derives the CTR nonce deterministically from
// the pre-shared key and the current year|month, XORed with a counter; the
// counter is the frame's sequence number and is not transmitted.
type Mode int

const (
	Stream Mode = iota
	Chunked
)

const macSize = sha256.Size

// peerKeys holds the per-direction, per-peer key schedule. Encryption and
// MAC keys are derived from a single shared pre-key via HKDF
// (golang.org/x/crypto/hkdf) so that one raw secret never does double
// duty as both a cipher key and a MAC key.
type peerKeys struct {
	encKey [32]byte
	macKey [32]byte
}

func derivePeerKeys(preKey []byte, self, peer party.ID) (peerKeys, error) {
	info := []byte(fmt.Sprintf("tmcg-unicast|%s|%s", self, peer))
	r := hkdf.New(sha256.New, preKey, nil, info)
	var out peerKeys
	if _, err := io.ReadFull(r, out.encKey[:]); err != nil {
		return peerKeys{}, err
	}
	if _, err := io.ReadFull(r, out.macKey[:]); err != nil {
		return peerKeys{}, err
	}
	return out, nil
}

// conn is one directed byte-stream endpoint: a peer's socket, pipe, or any
// io.Reader/io.Writer the caller supplies (tests use net.Pipe or
// io.Pipe; production callers supply a net.Conn).
type conn struct {
	w  io.Writer
	r  *bufio.Reader
	mu sync.Mutex
}

// Peer holds the per-peer encrypted session state in one direction of a
// Channel: sequence number, key schedule, and whether the stream prologue
// (IV, in Stream mode) has been sent/consumed yet.
type peerState struct {
	keys        peerKeys
	outSeq      uint64
	inSeq       uint64
	ivSent      bool
	ivConsumed  bool
	iv          []byte
	mode        Mode
	blockSize   int
	unusable    bool // set once a MAC fails at sqn > 1; fatal for the peer
}

// Channel is the authenticated unicast transport for one local party
// talking to n-1 peers.
type Channel struct {
	self  party.ID
	mode  Mode
	conns map[party.ID]*conn
	state map[party.ID]*peerState
	mu    sync.Mutex
}

// NewChannel builds a channel for self, with one conn per peer and a
// shared pre-key used to derive every peer's key schedule. In production
// the pre-key itself would come from a prior key-exchange; this package
// only consumes it and leaves key-exchange bootstrapping out of scope.
func NewChannel(self party.ID, mode Mode, preKey []byte, peers map[party.ID]io.ReadWriter) (*Channel, error) {
	c := &Channel{
		self:  self,
		mode:  mode,
		conns: make(map[party.ID]*conn, len(peers)),
		state: make(map[party.ID]*peerState, len(peers)),
	}
	for id, rw := range peers {
		keys, err := derivePeerKeys(preKey, self, id)
		if err != nil {
			return nil, err
		}
		c.conns[id] = &conn{w: rw, r: bufio.NewReader(rw)}
		c.state[id] = &peerState{keys: keys, outSeq: 1, inSeq: 1, mode: mode, blockSize: aes.BlockSize}
	}
	return c, nil
}

// encode maps a plaintext value m into m + 2^c to hide small values before
// encryption, where c is the bit length of the maximum valid plaintext
// bound passed by the caller.
func encode(m *big.Int, c uint) *big.Int {
	shift := new(big.Int).Lsh(big.NewInt(1), c)
	return new(big.Int).Add(m, shift)
}

func decode(m *big.Int, c uint) *big.Int {
	shift := new(big.Int).Lsh(big.NewInt(1), c)
	return new(big.Int).Sub(m, shift)
}

// Send encodes, encrypts, authenticates, and writes m to peer `to`. c
// bounds the plaintext (see encode). ctxTimeout is not applied: the call
// blocks until the underlying writer accepts the frame.
func (ch *Channel) Send(ctxTimeout time.Duration, to party.ID, m *big.Int, c uint) error {
	ch.mu.Lock()
	st, ok := ch.state[to]
	cn := ch.conns[to]
	ch.mu.Unlock()
	if !ok {
		return errs.New(errs.InvalidArgument, "unicast: unknown peer %s", to)
	}
	if st.unusable {
		return errs.ForPeer(errs.ProtocolViolation, string(to), "unicast: peer disabled after prior MAC failure")
	}

	encoded := encode(m, c)
	plaintext := encoded.Bytes()

	cn.mu.Lock()
	defer cn.mu.Unlock()

	if st.mode == Stream && !st.ivSent {
		iv := make([]byte, st.blockSize)
		if _, err := randRead(iv); err != nil {
			return err
		}
		st.iv = iv
		if _, err := cn.w.Write(iv); err != nil {
			return errs.Wrap(errs.Transient, err, "unicast: writing IV prologue")
		}
		st.ivSent = true
	}

	stream, err := outboundStream(st, to)
	if err != nil {
		return err
	}
	ciphertext := make([]byte, len(plaintext))
	stream.XORKeyStream(ciphertext, plaintext)

	mac := macOver(st.keys.macKey, ciphertext, st.outSeq)

	line := "+" + new(big.Int).SetBytes(ciphertext).Text(10)
	if _, err := fmt.Fprintf(cn.w, "%s\n%x\n", line, mac); err != nil {
		return errs.Wrap(errs.Transient, err, "unicast: writing frame")
	}
	st.outSeq++
	return nil
}

// Reset resets the sequence number of one direction to 1; both ends must
// reset in lockstep or the next frame fails its MAC check permanently.
func (ch *Channel) Reset(peer party.ID, dir Direction) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	st, ok := ch.state[peer]
	if !ok {
		return errs.New(errs.InvalidArgument, "unicast: unknown peer %s", peer)
	}
	switch dir {
	case Outbound:
		st.outSeq = 1
	case Inbound:
		st.inSeq = 1
	}
	return nil
}

func macOver(key [32]byte, ciphertext []byte, seq uint64) []byte {
	h := hmac.New(sha256.New, key[:])
	h.Write(ciphertext)
	h.Write([]byte(strconv.FormatUint(seq, 10)))
	return h.Sum(nil)
}

func outboundStream(st *peerState, peer party.ID) (cipher.Stream, error) {
	block, err := aes.NewCipher(st.keys.encKey[:16])
	if err != nil {
		return nil, err
	}
	switch st.mode {
	case Chunked:
		nonce := chunkedNonce(st.keys.encKey[:], st.outSeq)
		return cipher.NewCTR(block, nonce), nil
	default:
		return cipher.NewCFBEncrypter(block, st.iv), nil
	}
}

func inboundStream(st *peerState, seq uint64) (cipher.Stream, error) {
	block, err := aes.NewCipher(st.keys.encKey[:16])
	if err != nil {
		return nil, err
	}
	switch st.mode {
	case Chunked:
		nonce := chunkedNonce(st.keys.encKey[:], seq)
		return cipher.NewCTR(block, nonce), nil
	default:
		return cipher.NewCFBDecrypter(block, st.iv), nil
	}
}

// chunkedNonce derives the CTR nonce deterministically from the pre-shared
// key and the current year|month, XORing in the per-message counter. Here
// the counter is simply the sequence number, which is already transmitted
// implicitly (both ends track it in lockstep).
func chunkedNonce(key []byte, counter uint64) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(time.Now().Format("2006|01")))
	sum := h.Sum(nil)
	nonce := make([]byte, aes.BlockSize)
	copy(nonce, sum[:aes.BlockSize])
	var ctrBytes [8]byte
	for i := 0; i < 8; i++ {
		ctrBytes[i] = byte(counter >> (8 * (7 - i)))
	}
	for i := 0; i < 8; i++ {
		nonce[aes.BlockSize-8+i] ^= ctrBytes[i]
	}
	return nonce
}

// Scheduler selects which peer Receive should poll next.
type Scheduler interface {
	next(order []party.ID) []party.ID
}

type roundRobin struct{ mu sync.Mutex; pos int }

func (s *roundRobin) next(order []party.ID) []party.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(order)
	if n == 0 {
		return order
	}
	out := make([]party.ID, n)
	for i := 0; i < n; i++ {
		out[i] = order[(s.pos+i)%n]
	}
	s.pos = (s.pos + 1) % n
	return out
}

// RoundRobin cycles through peers in a fixed rotation across calls.
func RoundRobin() Scheduler { return &roundRobin{} }

type random struct{}

func (random) next(order []party.ID) []party.ID {
	out := append([]party.ID(nil), order...)
	for i := len(out) - 1; i > 0; i-- {
		j := secureIntn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Random polls peers in a freshly shuffled order each call.
func Random() Scheduler { return random{} }

type direct struct{ id party.ID }

func (d direct) next(order []party.ID) []party.ID { return []party.ID{d.id} }

// Direct polls only the named peer.
func Direct(id party.ID) Scheduler { return direct{id} }

// Receive polls peers per scheduler until a complete frame arrives or the
// timeout elapses, returning the decoded value and its sender. Each read
// on a peer's stream blocks until that stream yields data or fails; the
// timeout is checked only between polling rounds, so a peer that sends
// nothing can hold the call past its timeout.
func (ch *Channel) Receive(timeout time.Duration, sched Scheduler, c uint) (*big.Int, party.ID, error) {
	ch.mu.Lock()
	order := make([]party.ID, 0, len(ch.conns))
	for id := range ch.conns {
		order = append(order, id)
	}
	ch.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		for _, id := range sched.next(order) {
			v, err := ch.tryReceiveFrom(id, c)
			if err == errNoData {
				continue
			}
			if err != nil {
				return nil, id, err
			}
			if v != nil {
				return v, id, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, "", errs.New(errs.Transient, "unicast: receive timed out after %s", timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

var errNoData = fmt.Errorf("unicast: no data ready")

func (ch *Channel) tryReceiveFrom(id party.ID, c uint) (*big.Int, error) {
	ch.mu.Lock()
	st := ch.state[id]
	cn := ch.conns[id]
	ch.mu.Unlock()
	if st.unusable {
		return nil, errs.ForPeer(errs.ProtocolViolation, string(id), "unicast: peer disabled after prior MAC failure")
	}

	cn.mu.Lock()
	defer cn.mu.Unlock()

	if st.mode == Stream && !st.ivConsumed {
		iv := make([]byte, st.blockSize)
		if _, err := io.ReadFull(cn.r, iv); err != nil {
			return nil, errNoData
		}
		st.iv = iv
		st.ivConsumed = true
	}

	line, err := cn.r.ReadString('\n')
	if err != nil {
		return nil, errNoData
	}
	macLine, err := cn.r.ReadString('\n')
	if err != nil {
		return nil, errNoData
	}

	line = strings.TrimSuffix(strings.TrimSpace(line), "\n")
	if !strings.HasPrefix(line, "+") {
		return nil, errs.ForPeer(errs.ProtocolViolation, string(id), "unicast: missing '+' frame prefix")
	}
	ctByte, ok := new(big.Int).SetString(line[1:], 10)
	if !ok {
		return nil, errs.ForPeer(errs.ProtocolViolation, string(id), "unicast: malformed ciphertext")
	}
	ciphertext := ctByte.Bytes()

	var mac []byte
	if _, err := fmt.Sscanf(strings.TrimSpace(macLine), "%x", &mac); err != nil {
		return nil, errs.ForPeer(errs.ProtocolViolation, string(id), "unicast: malformed MAC")
	}

	expected := macOver(st.keys.macKey, ciphertext, st.inSeq)
	if !hmac.Equal(mac, expected) {
		if st.inSeq == 1 {
			// sqn = 1 may be discarded on MAC failure: treat as a
			// handshake resync attempt rather than a fatal error.
			return nil, errNoData
		}
		st.unusable = true
		return nil, errs.ForPeer(errs.ProtocolViolation, string(id), "unicast: MAC mismatch at sqn %d", st.inSeq)
	}

	stream, err := inboundStream(st, st.inSeq)
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	stream.XORKeyStream(plaintext, ciphertext)
	st.inSeq++

	return decode(new(big.Int).SetBytes(plaintext), c), nil
}
