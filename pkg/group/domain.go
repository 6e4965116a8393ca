// Package group implements the shared domain (p, q, g, h) and the element/
// scalar arithmetic of G = QR_p, the order-q subgroup of Z_p^*.
package group

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/hash"
)

// Domain holds the shared group parameters. It is created once per
// session and never mutated afterward.
type Domain struct {
	P *big.Int // safe prime, p = 2q+1
	Q *big.Int // Sophie-Germain prime, the subgroup order
	G *big.Int // generator of G = QR_p
	H *big.Int // joint public key slot; NewDomain sets it to 1
}

var (
	two   = big.NewInt(2)
	one   = big.NewInt(1)
	eight = big.NewInt(8)
	seven = big.NewInt(7)
)

// NewDomain generates fresh domain parameters with p of the given bit
// length. G is initialized to g = 2, which generates QR_p whenever
// p ≡ 7 (mod 8). H starts at 1; vtmf key generation accumulates the
// joint key in its own VTMF.H and does not write it back here.
func NewDomain(bits int) (*Domain, error) {
	p, q, err := bign.GenerateSafePrime(bits)
	if err != nil {
		return nil, fmt.Errorf("group: generating safe prime: %w", err)
	}
	return &Domain{P: p, Q: q, G: new(big.Int).Set(two), H: new(big.Int).Set(one)}, nil
}

// CanonicalGenerator re-derives a verifiable generator of G from a
// transcript label by repeated hash-to-group, per [KK04]'s verifiable
// generator construction. It returns the first hash output that both
// lies in [2, p-2] and is a quadratic residue.
func (d *Domain) CanonicalGenerator(label string) *big.Int {
	for ctr := uint64(0); ; ctr++ {
		digest := hash.Shash(label, d.P, hash.Uint64(ctr))
		cand := new(big.Int).Mod(digest, new(big.Int).Sub(d.P, two))
		cand.Add(cand, two)
		if IsQuadraticResidue(cand, d.P) {
			return cand
		}
	}
}

// CheckGroup verifies primality, form, congruence, and subgroup membership
// of g (and, if label is non-empty, re-derives g canonically and
// compares). It must return true for any freshly generated domain and
// false for any tampered p, q, g, or h.
func (d *Domain) CheckGroup(canonicalLabel string) bool {
	if d.P == nil || d.Q == nil || d.G == nil || d.H == nil {
		return false
	}
	if !bign.ProbablyPrime(d.P) || !bign.ProbablyPrime(d.Q) {
		return false
	}
	// p = 2q + 1
	want := new(big.Int).Lsh(d.Q, 1)
	want.Add(want, one)
	if want.Cmp(d.P) != 0 {
		return false
	}
	// p ≡ 7 (mod 8), required for g = 2 to generate QR_p.
	if new(big.Int).Mod(d.P, eight).Cmp(seven) != 0 {
		return false
	}
	if d.G.Cmp(one) <= 0 || d.G.Cmp(new(big.Int).Sub(d.P, one)) >= 0 {
		return false
	}
	if !IsQuadraticResidue(d.G, d.P) {
		return false
	}
	if d.H.Cmp(one) <= 0 || d.H.Cmp(new(big.Int).Sub(d.P, one)) >= 0 {
		return false
	}
	if !IsQuadraticResidue(d.H, d.P) {
		return false
	}
	if canonicalLabel != "" {
		if d.CanonicalGenerator(canonicalLabel).Cmp(d.G) != 0 {
			return false
		}
	}
	return true
}

// IsQuadraticResidue reports whether a is a quadratic residue mod the safe
// prime p, equivalently a^q ≡ 1 (mod p) where q = (p-1)/2. This is
// membership in the subgroup G = QR_p.
func IsQuadraticResidue(a, p *big.Int) bool {
	if a.Sign() <= 0 || a.Cmp(p) >= 0 {
		return false
	}
	q := new(big.Int).Rsh(new(big.Int).Sub(p, one), 1)
	r := new(big.Int).Exp(a, q, p)
	return r.Cmp(one) == 0
}

// ElementSize returns the byte length needed to encode elements of this
// domain, used by transport framing and canonical encodings.
func (d *Domain) ElementSize() int {
	return (d.P.BitLen() + 7) / 8
}

// Fingerprint returns a short, stable identifier of the domain, suitable
// as part of a hashed session tag.
func (d *Domain) Fingerprint() []byte {
	h := sha256.New()
	h.Write(d.P.Bytes())
	h.Write(d.Q.Bytes())
	h.Write(d.G.Bytes())
	return h.Sum(nil)
}
