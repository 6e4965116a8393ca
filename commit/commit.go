// Package commit implements Pedersen vector commitments and the trapdoor
// variant, over the shared group G = QR_p.
package commit

import (
	"math/big"

	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/hash"
)

// Generators holds the public generators g_1..g_n and h a vector
// Pedersen commitment is taken against.
type Generators struct {
	G []*group.Element
	H *group.Element
}

// SetupGeneratorsPublicCoin derives h, g_1..g_n from a public coin a by
// iterated hashing into G, rejecting weak values 0, 1, p-1. The coin a
// itself is obtained by either a call-site-provided value or a
// distributed coin flip.
func SetupGeneratorsPublicCoin(d *group.Domain, a *big.Int, n int) Generators {
	gens := make([]*group.Element, n)
	ctr := uint64(0)
	next := func() *group.Element {
		for {
			v := hash.Shash("commit-setup", d.P, hash.Big(a), hash.Uint64(ctr))
			ctr++
			if v.Sign() == 0 || v.Cmp(big.NewInt(1)) == 0 {
				continue
			}
			pMinus1 := new(big.Int).Sub(d.P, big.NewInt(1))
			if v.Cmp(pMinus1) == 0 {
				continue
			}
			if !group.IsQuadraticResidue(v, d.P) {
				continue
			}
			return group.NewElement(d, v)
		}
	}
	for i := range gens {
		gens[i] = next()
	}
	return Generators{G: gens, H: next()}
}

// Commit computes c = g_1^m_1 * ... * g_n^m_n * h^r mod p for a freshly
// sampled blinding factor r, returning (c, r).
func Commit(d *group.Domain, gens Generators, messages []*group.Scalar, policy bign.RandPolicy) (*group.Element, *group.Scalar, error) {
	if len(messages) != len(gens.G) {
		return nil, nil, errs.New(errs.InvalidArgument, "commit: expected %d messages, got %d", len(gens.G), len(messages))
	}
	r, err := group.RandomScalar(d, policy)
	if err != nil {
		return nil, nil, errs.Wrap(errs.CryptoFailure, err, "commit: sampling blinding factor")
	}
	c := CommitWithRandomness(d, gens, messages, r)
	return c, r, nil
}

// CommitWithRandomness computes the commitment for an explicitly supplied
// blinding factor, used both by Commit and by VSS when the dealer must
// commit using shared polynomial coefficients as the randomness.
func CommitWithRandomness(d *group.Domain, gens Generators, messages []*group.Scalar, r *group.Scalar) *group.Element {
	acc := gens.H.ExpSecret(r)
	for i, m := range messages {
		acc = acc.Mul(gens.G[i].ExpSecret(m))
	}
	return acc
}

// Verify recomputes the commitment and compares, rejecting r >= q or c
// outside [1, p-1].
func Verify(d *group.Domain, gens Generators, c *group.Element, r *group.Scalar, messages []*group.Scalar) bool {
	if r.Big().Cmp(d.Q) >= 0 {
		return false
	}
	cBig := c.Big()
	if cBig.Sign() <= 0 || cBig.Cmp(new(big.Int).Sub(d.P, big.NewInt(1))) > 0 {
		return false
	}
	if len(messages) != len(gens.G) {
		return false
	}
	recomputed := CommitWithRandomness(d, gens, messages, r)
	return recomputed.Equal(c)
}

// Trapdoor is a Pedersen commitment scheme whose h = g^sigma is known only
// to the party that generated it, letting simulation proofs ([JL00],
// Groth) equivocate.
type Trapdoor struct {
	d     *group.Domain
	G     *group.Element
	H     *group.Element
	sigma *group.Scalar
}

// NewTrapdoor samples sigma and derives h = g^sigma.
func NewTrapdoor(d *group.Domain, policy bign.RandPolicy) (*Trapdoor, error) {
	sigma, err := group.RandomScalar(d, policy)
	if err != nil {
		return nil, errs.Wrap(errs.CryptoFailure, err, "commit: sampling trapdoor")
	}
	return &Trapdoor{d: d, G: group.Generator(d), H: group.Generator(d).ExpSecret(sigma), sigma: sigma}, nil
}

// Commit binds to H(m) rather than m directly: c = g^(H(m) mod q) * h^r.
func (t *Trapdoor) Commit(m []byte, policy bign.RandPolicy) (*group.Element, *group.Scalar, error) {
	r, err := group.RandomScalar(t.d, policy)
	if err != nil {
		return nil, nil, errs.Wrap(errs.CryptoFailure, err, "commit: sampling trapdoor blinding factor")
	}
	hm := hashToScalar(t.d, m)
	c := t.G.ExpSecret(hm).Mul(t.H.ExpSecret(r))
	return c, r, nil
}

// CommitWithRandomness computes g^(H(m) mod q) * h^r for an explicitly
// supplied blinding factor, letting a verifier recompute a trapdoor
// commitment's opening without access to sigma.
func (t *Trapdoor) CommitWithRandomness(m []byte, r *group.Scalar) *group.Element {
	hm := hashToScalar(t.d, m)
	return t.G.ExpSecret(hm).Mul(t.H.ExpSecret(r))
}

// Open recomputes a commitment's opening for a chosen message using the
// trapdoor, the equivocation step simulation proofs rely on: given the
// original (m, r), find r' such that Commit(m', policy) with randomness
// r' opens to the same c for a different m'.
func (t *Trapdoor) Open(origM []byte, origR *group.Scalar, newM []byte) *group.Scalar {
	origHM := hashToScalar(t.d, origM)
	newHM := hashToScalar(t.d, newM)
	delta := origHM.Sub(newHM)
	// c = g^origHM * h^origR = g^newHM * h^r'  =>  r' = origR + delta/sigma
	return origR.Add(delta.Mul(t.sigma.Inv()))
}

func hashToScalar(d *group.Domain, m []byte) *group.Scalar {
	v := hash.Shash("commit-trapdoor", d.Q, hash.Bytes(m))
	return group.NewScalar(d, v)
}
