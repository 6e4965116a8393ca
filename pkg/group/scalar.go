package group

import (
	"math/big"

	"github.com/libtmcg/tmcg/pkg/bign"
)

// Scalar is a value of Z_q, the exponent field. Scalars are frequently
// secret (key shares, proof nonces, polynomial coefficients), so all
// arithmetic here is on math/big but every *exponentiation using a Scalar*
// as the exponent of a group Element is required to route through
// Element.ExpSecret, which is constant time.
type Scalar struct {
	d   *Domain
	val *big.Int
}

// NewScalar reduces v modulo q and wraps it.
func NewScalar(d *Domain, v *big.Int) *Scalar {
	r := new(big.Int).Mod(v, d.Q)
	return &Scalar{d: d, val: r}
}

// ScalarZero returns the zero scalar.
func ScalarZero(d *Domain) *Scalar { return NewScalar(d, big.NewInt(0)) }

// ScalarOne returns the one scalar.
func ScalarOne(d *Domain) *Scalar { return NewScalar(d, big.NewInt(1)) }

// ScalarFromUint64 builds a scalar from a small integer, used for
// evaluation points (i+1) and polynomial powers.
func ScalarFromUint64(d *Domain, v uint64) *Scalar {
	return NewScalar(d, new(big.Int).SetUint64(v))
}

// RandomScalar draws a uniform scalar in [0, q) under the given
// randomness policy.
func RandomScalar(d *Domain, policy bign.RandPolicy) (*Scalar, error) {
	n, err := bign.RandomNat(policy, bign.FromBig(d.Q))
	if err != nil {
		return nil, err
	}
	return &Scalar{d: d, val: bign.ToBig(n)}, nil
}

// Big returns the scalar's raw value.
func (s *Scalar) Big() *big.Int { return new(big.Int).Set(s.val) }

// Add returns s+other mod q.
func (s *Scalar) Add(other *Scalar) *Scalar {
	r := new(big.Int).Add(s.val, other.val)
	r.Mod(r, s.d.Q)
	return &Scalar{d: s.d, val: r}
}

// Sub returns s-other mod q.
func (s *Scalar) Sub(other *Scalar) *Scalar {
	r := new(big.Int).Sub(s.val, other.val)
	r.Mod(r, s.d.Q)
	return &Scalar{d: s.d, val: r}
}

// Mul returns s*other mod q.
func (s *Scalar) Mul(other *Scalar) *Scalar {
	r := new(big.Int).Mul(s.val, other.val)
	r.Mod(r, s.d.Q)
	return &Scalar{d: s.d, val: r}
}

// Neg returns -s mod q.
func (s *Scalar) Neg() *Scalar {
	r := new(big.Int).Neg(s.val)
	r.Mod(r, s.d.Q)
	return &Scalar{d: s.d, val: r}
}

// Inv returns s^-1 mod q. Panics if s is zero.
func (s *Scalar) Inv() *Scalar {
	r := new(big.Int).ModInverse(s.val, s.d.Q)
	if r == nil {
		panic("group: scalar has no inverse (zero)")
	}
	return &Scalar{d: s.d, val: r}
}

// Equal reports whether s and other carry the same value.
func (s *Scalar) Equal(other *Scalar) bool {
	return s.val.Cmp(other.val) == 0
}

// IsZero reports whether s is the zero scalar.
func (s *Scalar) IsZero() bool {
	return s.val.Sign() == 0
}

// ActOnBase returns g^s, using the constant-time path since s is typically
// secret (a key share or polynomial evaluation).
func (s *Scalar) ActOnBase() *Element {
	return Generator(s.d).ExpSecret(s)
}

// Bytes encodes the scalar as a fixed-width big-endian byte string sized
// to q's bit length.
func (s *Scalar) Bytes() []byte {
	size := (s.d.Q.BitLen() + 7) / 8
	b := s.val.Bytes()
	out := make([]byte, size)
	copy(out[len(out)-len(b):], b)
	return out
}
