// Package hssv implements the Hoogh-Schoenmakers-Skoric-Villegas
// PUBROTZK verifiable-rotation proof: given a public list of labels
// alpha_0..alpha_{n-1} and Pedersen-style commitments
// c_0..c_{n-1} to that same list rotated by a secret r and rerandomized by
// secret openings s_0..s_{n-1}, prove in zero knowledge that r and s exist
// without revealing either.
package hssv

import (
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/hash"
	"github.com/libtmcg/tmcg/vss"
)

// Proof is the full three-move transcript.
type Proof struct {
	F      []*group.Element
	Lambda []*group.Scalar
	T      []*group.Scalar
}

type proverState struct {
	d       *group.Domain
	g, h    *group.Element
	alpha   []*group.Scalar
	s       []*group.Scalar
	r       int
	beta    []*group.Scalar
	u       *group.Scalar
	lambdaK []*group.Scalar
	tK      []*group.Scalar
}

// ChallengeBetas draws the verifier's move-1 challenge vector.
func ChallengeBetas(d *group.Domain, n int, policy bign.RandPolicy) ([]*group.Scalar, error) {
	out := make([]*group.Scalar, n)
	for i := range out {
		v, err := group.RandomScalar(d, policy)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ChallengeLambda draws the verifier's move-3 challenge.
func ChallengeLambda(d *group.Domain, policy bign.RandPolicy) (*group.Scalar, error) {
	return group.RandomScalar(d, policy)
}

func gamma(d *group.Domain, alpha, beta []*group.Scalar, k int) *group.Scalar {
	n := len(alpha)
	acc := group.ScalarZero(d)
	for i := 0; i < n; i++ {
		idx := ((i - k) % n + n) % n
		acc = acc.Add(alpha[idx].Mul(beta[i]))
	}
	return acc
}

// ProveMove2 computes G = Prod c_j^{beta_j} and, for every j != r, a
// simulated opening f_j; the real index r gets f_r = h^u for a fresh u,
// completed later once lambda is known: the prover picks u, lambda_j, t_j
// for j != r and reveals f_j.
func ProveMove2(d *group.Domain, g, h *group.Element, alpha, s []*group.Scalar, c []*group.Element, r int, beta []*group.Scalar, policy bign.RandPolicy) (*proverState, []*group.Element, error) {
	n := len(alpha)
	if len(c) != n || len(s) != n || len(beta) != n || r < 0 || r >= n || n < 2 {
		return nil, nil, errs.New(errs.InvalidArgument, "hssv: malformed rotation proof inputs")
	}

	u, err := group.RandomScalar(d, policy)
	if err != nil {
		return nil, nil, err
	}

	gAcc := group.Identity(d)
	for j := 0; j < n; j++ {
		gAcc = gAcc.Mul(c[j].ExpPublic(beta[j].Big()))
	}

	lambdaK := make([]*group.Scalar, n)
	tK := make([]*group.Scalar, n)
	f := make([]*group.Element, n)
	for j := 0; j < n; j++ {
		if j == r {
			continue
		}
		lj, err := group.RandomScalar(d, policy)
		if err != nil {
			return nil, nil, err
		}
		tj, err := group.RandomScalar(d, policy)
		if err != nil {
			return nil, nil, err
		}
		lambdaK[j] = lj
		tK[j] = tj

		gammaJ := gamma(d, alpha, beta, j)
		f[j] = g.ExpSecret(lj.Mul(gammaJ)).Mul(h.ExpSecret(tj)).Mul(gAcc.ExpPublic(lj.Neg().Big()))
	}
	f[r] = h.ExpSecret(u)

	return &proverState{d: d, g: g, h: h, alpha: alpha, s: s, r: r, beta: beta, u: u, lambdaK: lambdaK, tK: tK}, f, nil
}

// ProveMove4 completes lambda_r and t_r once the verifier's move-3
// challenge lambda is known.
func ProveMove4(state *proverState, lambda *group.Scalar) *Proof {
	d := state.d
	n := len(state.alpha)

	sum := group.ScalarZero(d)
	for j := 0; j < n; j++ {
		if j == state.r {
			continue
		}
		sum = sum.Add(state.lambdaK[j])
	}
	state.lambdaK[state.r] = lambda.Sub(sum)

	sBeta := group.ScalarZero(d)
	for j := 0; j < n; j++ {
		sBeta = sBeta.Add(state.s[j].Mul(state.beta[j]))
	}
	state.tK[state.r] = state.u.Add(state.lambdaK[state.r].Mul(sBeta))

	return &Proof{Lambda: state.lambdaK, T: state.tK}
}

// Verify checks the two relations the proof must satisfy: lambda = Sum
// lambda_k, and h^{t_k} = f_k * (G/g^{gamma_k})^{lambda_k} for every k.
func Verify(d *group.Domain, g, h *group.Element, alpha []*group.Scalar, c []*group.Element, beta []*group.Scalar, lambda *group.Scalar, proof *Proof) bool {
	n := len(alpha)
	if len(c) != n || len(beta) != n || len(proof.F) != n || len(proof.Lambda) != n || len(proof.T) != n {
		return false
	}

	sum := group.ScalarZero(d)
	for _, lk := range proof.Lambda {
		sum = sum.Add(lk)
	}
	if !sum.Equal(lambda) {
		return false
	}

	gAcc := group.Identity(d)
	for j := 0; j < n; j++ {
		gAcc = gAcc.Mul(c[j].ExpPublic(beta[j].Big()))
	}

	for k := 0; k < n; k++ {
		gammaK := gamma(d, alpha, beta, k)
		lhs := h.ExpPublic(proof.T[k].Big())
		ratio := g.ExpPublic(gammaK.Big()).Inv().Mul(gAcc)
		rhs := ratio.ExpPublic(proof.Lambda[k].Big()).Mul(proof.F[k])
		if !lhs.Equal(rhs) {
			return false
		}
	}
	return true
}

// ProveNIZK derives beta and lambda by Fiat-Shamir over the statement
// (alpha, c), the non-interactive variant of the proof.
func ProveNIZK(d *group.Domain, g, h *group.Element, alpha, s []*group.Scalar, c []*group.Element, r int, policy bign.RandPolicy) ([]*group.Scalar, *group.Scalar, *Proof, error) {
	n := len(alpha)
	beta := make([]*group.Scalar, n)
	for i := 0; i < n; i++ {
		v := hash.Shash("hssv-pubrotzk-beta", d.Q, hash.Str("beta"), hash.Big(c[i].Big()), hash.Big(alpha[i].Big()))
		beta[i] = group.NewScalar(d, v)
	}

	state, f, err := ProveMove2(d, g, h, alpha, s, c, r, beta, policy)
	if err != nil {
		return nil, nil, nil, err
	}

	parts := []hash.Encodable{hash.Str("hssv-pubrotzk-lambda")}
	for _, ff := range f {
		parts = append(parts, hash.Big(ff.Big()))
	}
	lambda := group.NewScalar(d, hash.Shash("hssv-pubrotzk", d.Q, parts...))

	proof := ProveMove4(state, lambda)
	proof.F = f
	return beta, lambda, proof, nil
}

// ProvePublicCoin derives beta and lambda via sequential EDCFs instead of
// verifier randomness or Fiat-Shamir, replacing each verifier message
// with an EDCF output.
func ProvePublicCoin(p vss.Params, g, h *group.Element, alpha, s []*group.Scalar, c []*group.Element, r int) ([]*group.Scalar, *group.Scalar, *Proof, error) {
	n := len(alpha)
	beta := make([]*group.Scalar, n)
	for i := 0; i < n; i++ {
		p.BC.SetID("hssv-pubrotzk-beta")
		v, _, err := vss.RunEDCF(p)
		p.BC.UnsetID()
		if err != nil {
			return nil, nil, nil, err
		}
		beta[i] = v
	}

	state, f, err := ProveMove2(p.Domain, g, h, alpha, s, c, r, beta, p.Policy)
	if err != nil {
		return nil, nil, nil, err
	}

	p.BC.SetID("hssv-pubrotzk-lambda")
	lambda, _, err := vss.RunEDCF(p)
	p.BC.UnsetID()
	if err != nil {
		return nil, nil, nil, err
	}

	proof := ProveMove4(state, lambda)
	proof.F = f
	return beta, lambda, proof, nil
}
