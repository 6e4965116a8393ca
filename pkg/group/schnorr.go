package group

import (
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/hash"
)

// SchnorrProof is a non-interactive proof of knowledge of x such that
// y = g^x, the standard key-generation proof of knowledge.
type SchnorrProof struct {
	T *Element // commitment g^v
	R *Scalar  // response v - c*x mod q
}

// ProveSchnorr produces a Schnorr PoK of x for y = g^x, binding the
// challenge to label, g, y, and the commitment t via shash.
func ProveSchnorr(d *Domain, label string, x *Scalar, policy bign.RandPolicy) (*SchnorrProof, *Element, error) {
	v, err := RandomScalar(d, policy)
	if err != nil {
		return nil, nil, err
	}
	t := v.ActOnBase()
	y := x.ActOnBase()
	c := schnorrChallenge(d, label, y, t)
	r := v.Sub(c.Mul(x))
	return &SchnorrProof{T: t, R: r}, y, nil
}

// VerifySchnorr checks a Schnorr PoK that y = g^x for some known x.
func VerifySchnorr(d *Domain, label string, y *Element, pf *SchnorrProof) bool {
	c := schnorrChallenge(d, label, y, pf.T)
	// t' = g^r * y^c
	tPrime := pf.R.ActOnBase().Mul(y.ExpPublic(c.Big()))
	return tPrime.Equal(pf.T)
}

func schnorrChallenge(d *Domain, label string, y, t *Element) *Scalar {
	c := hash.Shash(label, d.Q, hash.Big(d.G), hash.Big(y.Big()), hash.Big(t.Big()))
	return NewScalar(d, c)
}

// ChaumPedersenProof is a non-interactive proof that log_g1(y1) =
// log_g2(y2), the building block for VTMF's Mask/Remask/Decrypt proofs.
type ChaumPedersenProof struct {
	T1 *Element
	T2 *Element
	R  *Scalar
}

// ProveChaumPedersen proves log_g1(y1) = log_g2(y2) = x.
func ProveChaumPedersen(d *Domain, label string, g1, g2 *Element, x *Scalar, policy bign.RandPolicy) (*ChaumPedersenProof, error) {
	v, err := RandomScalar(d, policy)
	if err != nil {
		return nil, err
	}
	t1 := g1.ExpSecret(v)
	t2 := g2.ExpSecret(v)
	y1 := g1.ExpSecret(x)
	y2 := g2.ExpSecret(x)
	c := cpChallenge(d, label, g1, g2, y1, y2, t1, t2)
	r := v.Sub(c.Mul(x))
	return &ChaumPedersenProof{T1: t1, T2: t2, R: r}, nil
}

// VerifyChaumPedersen checks that log_g1(y1) = log_g2(y2) without learning
// the discrete log.
func VerifyChaumPedersen(d *Domain, label string, g1, g2, y1, y2 *Element, pf *ChaumPedersenProof) bool {
	c := cpChallenge(d, label, g1, g2, y1, y2, pf.T1, pf.T2)
	t1Prime := g1.ExpPublic(pf.R.Big()).Mul(y1.ExpPublic(c.Big()))
	t2Prime := g2.ExpPublic(pf.R.Big()).Mul(y2.ExpPublic(c.Big()))
	return t1Prime.Equal(pf.T1) && t2Prime.Equal(pf.T2)
}

func cpChallenge(d *Domain, label string, g1, g2, y1, y2, t1, t2 *Element) *Scalar {
	c := hash.Shash(label, d.Q,
		hash.Big(g1.Big()), hash.Big(g2.Big()),
		hash.Big(y1.Big()), hash.Big(y2.Big()),
		hash.Big(t1.Big()), hash.Big(t2.Big()))
	return NewScalar(d, c)
}
