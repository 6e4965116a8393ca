// Package groth implements Groth's "Shuffle of Known Content" proof:
// given a Pedersen vector commitment to a secret permutation of a
// publicly known multi-set, prove in zero knowledge that the commitment
// opens to some permutation of that multi-set.
package groth

import (
	"math/big"

	"github.com/libtmcg/tmcg/commit"
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/hash"
	"github.com/libtmcg/tmcg/vss"
)

// DefaultLE is the interactive challenge bit length; the non-interactive
// variant doubles it (ℓ_e_nizk = 2 ℓ_e) to recover the same soundness
// error under Fiat-Shamir.
const DefaultLE = 80

// Proof is the full four-move transcript: the move-2 commitments, the
// move-1/move-3 challenges (however they were derived), and the move-4
// openings. Carrying x and e inside the proof lets a single Verify cover
// the interactive, public-coin, and non-interactive variants alike; only
// how x and e came to be agreed on differs between them.
type Proof struct {
	CD, CDelta, CA *group.Element
	X, E           *group.Scalar
	F              []*group.Scalar
	Z              *group.Scalar
	FDelta         []*group.Scalar
	ZDelta         *group.Scalar
}

// proverState carries a prover's move-2 secrets across to move 4.
type proverState struct {
	d       *group.Domain
	gens    commit.Generators
	pi      []int
	m       []*group.Scalar
	r       *group.Scalar
	x       *group.Scalar
	dCoef   []*group.Scalar
	delta   []*group.Scalar
	a       []*group.Scalar
	rd, rDelta, ra *group.Scalar
	cA2     []*group.Scalar // the c_a pre-image, reused in move 4
}

// subGenerators returns the first k generators of gens, used for the
// n-1-length vectors c_Delta and c_a commit against.
func subGenerators(gens commit.Generators, k int) commit.Generators {
	return commit.Generators{G: gens.G[:k], H: gens.H}
}

// ChallengeBits draws a fresh ℓ_e-bit challenge for the interactive
// variant's verifier moves.
func ChallengeBits(d *group.Domain, lE int, policy bign.RandPolicy) (*group.Scalar, error) {
	bound := new(big.Int).Lsh(big.NewInt(1), uint(lE))
	n, err := bign.RandomNat(policy, bign.FromBig(bound))
	if err != nil {
		return nil, errs.Wrap(errs.CryptoFailure, err, "groth: sampling challenge")
	}
	return group.NewScalar(d, bign.ToBig(n)), nil
}

func truncate(v *big.Int, lE int) *big.Int {
	bound := new(big.Int).Lsh(big.NewInt(1), uint(lE))
	return new(big.Int).Mod(v, bound)
}

// ProveMove2 samples the prover's move-2 randomness and returns the three
// commitments to send to the verifier, given the verifier's move-1
// challenge x.
func ProveMove2(d *group.Domain, gens commit.Generators, m []*group.Scalar, pi []int, r *group.Scalar, x *group.Scalar, policy bign.RandPolicy) (*proverState, *group.Element, *group.Element, *group.Element, error) {
	n := len(pi)
	if len(m) != n || n < 2 {
		return nil, nil, nil, nil, errs.New(errs.InvalidArgument, "groth: need |m| = |pi| >= 2")
	}

	rd, err := group.RandomScalar(d, policy)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	rDelta, err := group.RandomScalar(d, policy)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	ra, err := group.RandomScalar(d, policy)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	dCoef := make([]*group.Scalar, n)
	for i := range dCoef {
		dCoef[i], err = group.RandomScalar(d, policy)
		if err != nil {
			return nil, nil, nil, nil, err
		}
	}

	delta := make([]*group.Scalar, n)
	delta[0] = dCoef[0]
	for i := 1; i < n-1; i++ {
		delta[i], err = group.RandomScalar(d, policy)
		if err != nil {
			return nil, nil, nil, nil, err
		}
	}
	delta[n-1] = group.ScalarZero(d)

	a := make([]*group.Scalar, n)
	for i := 0; i < n; i++ {
		acc := group.ScalarOne(d)
		for j := 0; j <= i; j++ {
			acc = acc.Mul(m[pi[j]].Sub(x))
		}
		a[i] = acc
	}

	cd := commit.CommitWithRandomness(d, gens, dCoef, rd)

	lejDelta := make([]*group.Scalar, n-1)
	for i := 0; i < n-1; i++ {
		lejDelta[i] = delta[i].Neg().Mul(dCoef[i+1])
	}
	cDelta := commit.CommitWithRandomness(d, subGenerators(gens, n-1), lejDelta, rDelta)

	lejA := make([]*group.Scalar, n-1)
	for i := 0; i < n-1; i++ {
		lejA[i] = delta[i+1].Sub(m[pi[i+1]].Sub(x).Mul(delta[i])).Sub(a[i].Mul(dCoef[i+1]))
	}
	cA := commit.CommitWithRandomness(d, subGenerators(gens, n-1), lejA, ra)

	state := &proverState{
		d: d, gens: gens, pi: pi, m: m, r: r, x: x,
		dCoef: dCoef, delta: delta, a: a,
		rd: rd, rDelta: rDelta, ra: ra, cA2: lejA,
	}
	return state, cd, cDelta, cA, nil
}

// ProveMove4 computes the move-4 openings given the verifier's move-3
// challenge e.
func ProveMove4(state *proverState, e *group.Scalar) *Proof {
	n := len(state.pi)
	f := make([]*group.Scalar, n)
	for i := range f {
		f[i] = e.Mul(state.m[state.pi[i]]).Add(state.dCoef[i])
	}
	z := e.Mul(state.r).Add(state.rd)

	fDelta := make([]*group.Scalar, n-1)
	for i := 0; i < n-1; i++ {
		fDelta[i] = e.Mul(state.cA2[i]).Sub(state.delta[i].Mul(state.dCoef[i+1]))
	}
	zDelta := e.Mul(state.ra).Add(state.rDelta)

	return &Proof{X: state.x, E: e, F: f, Z: z, FDelta: fDelta, ZDelta: zDelta}
}

// attach sets the move-2 commitments to a Proof built by
// ProveMove4, which doesn't see them directly.
func (p *Proof) attach(cd, cDelta, cA *group.Element) *Proof {
	p.CD, p.CDelta, p.CA = cd, cDelta, cA
	return p
}

// ProveNIZK runs the full non-interactive variant: x and e are derived by
// Fiat-Shamir over the statement and, respectively, the move-2
// commitments, with challenges doubled in bit length to preserve
// soundness under Fiat-Shamir.
func ProveNIZK(d *group.Domain, gens commit.Generators, c *group.Element, m []*group.Scalar, pi []int, r *group.Scalar, policy bign.RandPolicy) (*Proof, error) {
	lE := 2 * DefaultLE
	x := group.NewScalar(d, truncate(fiatShamirX(d, gens, c, m), lE))

	state, cd, cDelta, cA, err := ProveMove2(d, gens, m, pi, r, x, policy)
	if err != nil {
		return nil, err
	}

	e := group.NewScalar(d, truncate(fiatShamirE(d, gens, c, m, x, cd, cDelta, cA), lE))
	if e.IsZero() {
		e = group.ScalarOne(d)
	}

	proof := ProveMove4(state, e)
	return proof.attach(cd, cDelta, cA), nil
}

func fiatShamirX(d *group.Domain, gens commit.Generators, c *group.Element, m []*group.Scalar) *big.Int {
	parts := []hash.Encodable{hash.Str("groth-skc-x"), hash.Big(c.Big())}
	for _, g := range gens.G {
		parts = append(parts, hash.Big(g.Big()))
	}
	parts = append(parts, hash.Big(gens.H.Big()))
	for _, v := range m {
		parts = append(parts, hash.Big(v.Big()))
	}
	return hash.Shash("groth-skc", d.Q, parts...)
}

func fiatShamirE(d *group.Domain, gens commit.Generators, c *group.Element, m []*group.Scalar, x *group.Scalar, cd, cDelta, cA *group.Element) *big.Int {
	parts := []hash.Encodable{
		hash.Str("groth-skc-e"), hash.Big(c.Big()), hash.Big(x.Big()),
		hash.Big(cd.Big()), hash.Big(cDelta.Big()), hash.Big(cA.Big()),
	}
	for _, v := range m {
		parts = append(parts, hash.Big(v.Big()))
	}
	return hash.Shash("groth-skc", d.Q, parts...)
}

// ProvePublicCoin runs the public-coin variant: x and e come from two
// sequential erasure-free distributed coin flips, reusing the same
// vss.Params-driven RVSS machinery the rest of this module shares.
func ProvePublicCoin(p vss.Params, gens commit.Generators, c *group.Element, m []*group.Scalar, pi []int, r *group.Scalar) (*Proof, error) {
	p.BC.SetID("groth-skc-x")
	xRaw, _, err := vss.RunEDCF(p)
	p.BC.UnsetID()
	if err != nil {
		return nil, err
	}
	x := group.NewScalar(p.Domain, truncate(xRaw.Big(), DefaultLE))

	state, cd, cDelta, cA, err := ProveMove2(p.Domain, gens, m, pi, r, x, p.Policy)
	if err != nil {
		return nil, err
	}

	p.BC.SetID("groth-skc-e")
	eRaw, _, err := vss.RunEDCF(p)
	p.BC.UnsetID()
	if err != nil {
		return nil, err
	}
	e := group.NewScalar(p.Domain, truncate(eRaw.Big(), DefaultLE))
	if e.IsZero() {
		e = group.ScalarOne(p.Domain)
	}

	proof := ProveMove4(state, e)
	return proof.attach(cd, cDelta, cA), nil
}

// Verify checks a transcript against the statement (c, m), using
// unoptimized per-relation checks (the batched, random-alpha optimization
// is a verifier-side speedup, not a soundness requirement, so it is
// omitted here).
func Verify(d *group.Domain, gens commit.Generators, c *group.Element, m []*group.Scalar, proof *Proof) bool {
	n := len(m)
	if len(proof.F) != n || len(proof.FDelta) != n-1 {
		return false
	}
	if proof.E.IsZero() {
		return false
	}

	lhs1 := c.ExpPublic(proof.E.Big()).Mul(proof.CD)
	rhs1 := commit.CommitWithRandomness(d, gens, proof.F, proof.Z)
	if !lhs1.Equal(rhs1) {
		return false
	}

	lhs2 := proof.CA.ExpPublic(proof.E.Big()).Mul(proof.CDelta)
	rhs2 := commit.CommitWithRandomness(d, subGenerators(gens, n-1), proof.FDelta, proof.ZDelta)
	if !lhs2.Equal(rhs2) {
		return false
	}

	ex := proof.E.Mul(proof.X)
	eInv := proof.E.Inv()
	fN := group.ScalarOne(d)
	for i := 0; i < n; i++ {
		fN = proof.F[i].Sub(ex).Mul(fN)
		if i > 0 {
			fN = fN.Add(proof.FDelta[i-1]).Mul(eInv)
		}
	}

	rhs := group.ScalarOne(d)
	for _, v := range m {
		rhs = rhs.Mul(v.Sub(proof.X))
	}
	rhs = rhs.Mul(proof.E)

	return fN.Equal(rhs)
}
