// Package wire implements the two on-the-wire encodings this module
// uses: a literal ASCII decimal, newline-delimited bignum stream for
// domain parameters, ciphertexts, proofs, RBC messages, and unicast
// frames; and a CBOR encoding for the richer persisted DKG Config
// container.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// WriteBignums writes each value as its ASCII decimal representation
// followed by a newline, in order: one bignum per line, delimited by
// \n.
func WriteBignums(w io.Writer, values ...*big.Int) error {
	for _, v := range values {
		if _, err := fmt.Fprintf(w, "%s\n", v.Text(10)); err != nil {
			return fmt.Errorf("wire: writing bignum: %w", err)
		}
	}
	return nil
}

// ReadBignums reads exactly n newline-delimited ASCII decimal bignums.
func ReadBignums(r io.Reader, n int) ([]*big.Int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	out := make([]*big.Int, 0, n)
	for i := 0; i < n; i++ {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("wire: reading bignum %d: %w", i, err)
			}
			return nil, fmt.Errorf("wire: stream ended after %d of %d bignums", i, n)
		}
		line := strings.TrimSpace(sc.Text())
		v, ok := new(big.Int).SetString(line, 10)
		if !ok {
			return nil, fmt.Errorf("wire: malformed bignum on line %d: %q", i, line)
		}
		out = append(out, v)
	}
	return out, nil
}

// Domain is the external ASCII encoding of a group domain: p, q, g, h.
type Domain struct {
	P, Q, G, H *big.Int
}

// WriteDomain writes the domain in the fixed (p, q, g, h) order.
func WriteDomain(w io.Writer, d Domain) error {
	return WriteBignums(w, d.P, d.Q, d.G, d.H)
}

// ReadDomain reads a domain in the fixed (p, q, g, h) order.
func ReadDomain(r io.Reader) (Domain, error) {
	vals, err := ReadBignums(r, 4)
	if err != nil {
		return Domain{}, err
	}
	return Domain{P: vals[0], Q: vals[1], G: vals[2], H: vals[3]}, nil
}

// Ciphertext is the external encoding of an ElGamal ciphertext: c1, c2.
type Ciphertext struct {
	C1, C2 *big.Int
}

// WriteCiphertext writes (c1, c2), two lines.
func WriteCiphertext(w io.Writer, c Ciphertext) error {
	return WriteBignums(w, c.C1, c.C2)
}

// ReadCiphertext reads (c1, c2).
func ReadCiphertext(r io.Reader) (Ciphertext, error) {
	vals, err := ReadBignums(r, 2)
	if err != nil {
		return Ciphertext{}, err
	}
	return Ciphertext{C1: vals[0], C2: vals[1]}, nil
}

// RBCAction is the wire action code for an RBC message, 1..5 for
// {r-send, r-echo, r-ready, r-request, r-answer}.
type RBCAction int

const (
	ActionSend RBCAction = iota + 1
	ActionEcho
	ActionReady
	ActionRequest
	ActionAnswer
)

// Valid reports whether a is one of the five defined action codes.
func (a RBCAction) Valid() bool { return a >= ActionSend && a <= ActionAnswer }

// RBCMessage is the external encoding: (ID, j, s, action, payload), five
// bignums.
type RBCMessage struct {
	ID      *big.Int
	From    *big.Int
	Seq     *big.Int
	Action  RBCAction
	Payload *big.Int
}

// WriteRBCMessage writes the five-bignum RBC message.
func WriteRBCMessage(w io.Writer, m RBCMessage) error {
	payload := m.Payload
	if payload == nil {
		payload = big.NewInt(0)
	}
	return WriteBignums(w, m.ID, m.From, m.Seq, big.NewInt(int64(m.Action)), payload)
}

// ReadRBCMessage reads a five-bignum RBC message.
func ReadRBCMessage(r io.Reader) (RBCMessage, error) {
	vals, err := ReadBignums(r, 5)
	if err != nil {
		return RBCMessage{}, err
	}
	action := RBCAction(vals[3].Int64())
	if !action.Valid() {
		return RBCMessage{}, fmt.Errorf("wire: invalid RBC action code %d", vals[3].Int64())
	}
	return RBCMessage{ID: vals[0], From: vals[1], Seq: vals[2], Action: action, Payload: vals[4]}, nil
}
