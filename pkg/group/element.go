package group

import (
	"math/big"

	"github.com/libtmcg/tmcg/pkg/bign"
)

// Element is a value of G = QR_p, represented in its natural encoding.
type Element struct {
	d   *Domain
	val *big.Int
}

// NewElement wraps a raw value as an element of d without subgroup
// validation; callers that accept elements from the network must call
// Valid() before using the result.
func NewElement(d *Domain, v *big.Int) *Element {
	return &Element{d: d, val: new(big.Int).Mod(v, d.P)}
}

// Identity returns the group identity (1).
func Identity(d *Domain) *Element { return NewElement(d, big.NewInt(1)) }

// Generator returns g as an element.
func Generator(d *Domain) *Element { return NewElement(d, d.G) }

// PublicKey returns the joint key h as an element.
func PublicKey(d *Domain) *Element { return NewElement(d, d.H) }

// Big returns the element's raw value.
func (e *Element) Big() *big.Int { return new(big.Int).Set(e.val) }

// Valid reports whether the element lies in G = QR_p. Subgroup membership
// is an invariant every received element must satisfy before use.
func (e *Element) Valid() bool {
	return IsQuadraticResidue(e.val, e.d.P)
}

// Mul returns e*other mod p. Both operands are public (group elements are
// never secret by themselves), so this uses plain math/big arithmetic.
func (e *Element) Mul(other *Element) *Element {
	r := new(big.Int).Mul(e.val, other.val)
	r.Mod(r, e.d.P)
	return &Element{d: e.d, val: r}
}

// Inv returns e^-1 mod p.
func (e *Element) Inv() *Element {
	r := new(big.Int).ModInverse(e.val, e.d.P)
	return &Element{d: e.d, val: r}
}

// Equal reports whether e and other carry the same value.
func (e *Element) Equal(other *Element) bool {
	return e.val.Cmp(other.val) == 0
}

// ExpPublic raises e to a public exponent (proof verification, public
// re-derivation). Fast, non-constant-time modexp is acceptable here
// because s carries no secret.
func (e *Element) ExpPublic(s *big.Int) *Element {
	r := new(big.Int).Exp(e.val, s, e.d.P)
	return &Element{d: e.d, val: r}
}

// ExpSecret raises e to a secret exponent s using constant-time modular
// exponentiation: every modular exponentiation whose exponent carries
// secret information must go through this path, never ExpPublic.
func (e *Element) ExpSecret(s *Scalar) *Element {
	base := bign.FromBig(e.val)
	exp := bign.FromBig(s.val)
	m := bign.ModulusFromBig(e.d.P)
	r := bign.Spowm(base, exp, m)
	return &Element{d: e.d, val: bign.ToBig(r)}
}

// Bytes encodes the element as a fixed-width big-endian byte string sized
// to the domain's element size.
func (e *Element) Bytes() []byte {
	b := e.val.Bytes()
	out := make([]byte, e.d.ElementSize())
	copy(out[len(out)-len(b):], b)
	return out
}
