package dkg

import (
	"math/big"

	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/pkg/polynomial"
	"github.com/libtmcg/tmcg/vss"
)

// Signature is a recovered (r, s) pair, each reduced mod q.
type Signature struct {
	R, S *big.Int
}

// Sign executes a Jarecki-Lysyanskaya-style threshold DSS sketch: two
// Joint-RVSSs yield additive shares of an ephemeral k and a blinding
// alpha; the pointwise product k_i*alpha_i lies on an implicit
// degree-2t polynomial whose value at zero, revealed in the clear, is
// k*alpha — this does not leak k itself since alpha is uniform and
// independent. r is derived from g^alpha raised to (k*alpha)^-1, which
// equals g^{k^-1} without any party learning k^-1. Each party's share of
// s = k*(H(m) + x*r) also lies on a degree-2t polynomial (the product of
// the degree-t K(z) with H(m) + r*X(z)), so s is recovered the same way.
func Sign(p Params, c *Config, hm *big.Int) (*Signature, *errs.Warnings, error) {
	q := p.Domain.Q
	all := p.All.Sort()

	p.BC.SetID("dss-sign-k")
	kRes, warn, err := vss.Run(vss.Params{
		Domain: p.Domain, Self: p.Self, All: p.All, T: p.T, Degree: p.T,
		H: p.H, BC: p.BC, UC: p.UC, Zero: false,
		Policy: p.Policy, Timeout: p.Timeout,
	})
	p.BC.UnsetID()
	if err != nil {
		return nil, warn, err
	}

	p.BC.SetID("dss-sign-alpha")
	aRes, warn2, err := vss.Run(vss.Params{
		Domain: p.Domain, Self: p.Self, All: p.All, T: p.T, Degree: p.T,
		H: p.H, BC: p.BC, UC: p.UC, Zero: false,
		Policy: p.Policy, Timeout: p.Timeout,
	})
	p.BC.UnsetID()
	for _, w := range warn2.All() {
		warn.Add(w.Peer, "%s", w.Text)
	}
	if err != nil {
		return nil, warn, err
	}

	signers := make(party.IDSlice, 0, len(kRes.QUAL))
	for _, id := range kRes.QUAL.Sort() {
		if aRes.QUAL.Contains(id) {
			signers = append(signers, id)
		}
	}
	needed := 2*p.T + 1
	if needed > len(signers) {
		return nil, warn, errs.New(errs.ProtocolViolation, "dss: only %d common signers, need %d", len(signers), needed)
	}
	signers = signers[:needed]

	// Broadcast p_i = k_i * alpha_i and A_i = g^{alpha_i}.
	pShare := kRes.X.Mul(aRes.X)
	aPub := group.Generator(p.Domain).ExpSecret(aRes.X)
	if err := p.BC.Broadcast(pShare.Big(), p.Timeout); err != nil {
		return nil, warn, errs.Wrap(errs.Transient, err, "dss: broadcasting product share")
	}
	if err := p.BC.Broadcast(aPub.Big(), p.Timeout); err != nil {
		return nil, warn, errs.Wrap(errs.Transient, err, "dss: broadcasting alpha public share")
	}

	pShares := make(map[party.ID]*group.Scalar, needed)
	aPubs := make(map[party.ID]*group.Element, needed)
	pShares[p.Self] = pShare
	aPubs[p.Self] = aPub
	for _, j := range signers {
		if j == p.Self {
			continue
		}
		pv, _, err := p.BC.DeliverFrom(j, p.Timeout)
		if err != nil {
			return nil, warn, errs.Wrap(errs.Transient, err, "dss: awaiting product share from %s", j)
		}
		av, _, err := p.BC.DeliverFrom(j, p.Timeout)
		if err != nil {
			return nil, warn, errs.Wrap(errs.Transient, err, "dss: awaiting alpha public share from %s", j)
		}
		pShares[j] = group.NewScalar(p.Domain, pv)
		aPubs[j] = group.NewElement(p.Domain, av)
	}

	lambdas := polynomial.LagrangeAtZero(p.Domain, all, signers)
	kAlpha := group.ScalarZero(p.Domain)
	for _, j := range signers {
		kAlpha = kAlpha.Add(lambdas[j].Mul(pShares[j]))
	}
	if kAlpha.IsZero() {
		return nil, warn, errs.New(errs.CryptoFailure, "dss: k*alpha reconstructed to zero")
	}

	// g^{alpha} via exponent-Lagrange interpolation over the first t+1
	// signers (A_i is public, so ExpPublic is sound here).
	gAlpha := group.Identity(p.Domain)
	expLambdas := polynomial.LagrangeAtZero(p.Domain, all, signers[:p.T+1])
	for _, j := range signers[:p.T+1] {
		gAlpha = gAlpha.Mul(aPubs[j].ExpPublic(expLambdas[j].Big()))
	}

	rElem := gAlpha.ExpPublic(kAlpha.Inv().Big())
	r := new(big.Int).Mod(rElem.Big(), q)
	if r.Sign() == 0 {
		return nil, warn, errs.New(errs.CryptoFailure, "dss: r reduced to zero")
	}
	rScalar := group.NewScalar(p.Domain, r)

	// s_i = k_i * (H(m) + x_i * r).
	hmScalar := group.NewScalar(p.Domain, hm)
	sShare := kRes.X.Mul(hmScalar.Add(c.Xi.Mul(rScalar)))
	if err := p.BC.Broadcast(sShare.Big(), p.Timeout); err != nil {
		return nil, warn, errs.Wrap(errs.Transient, err, "dss: broadcasting s share")
	}
	sShares := make(map[party.ID]*group.Scalar, needed)
	sShares[p.Self] = sShare
	for _, j := range signers {
		if j == p.Self {
			continue
		}
		sv, _, err := p.BC.DeliverFrom(j, p.Timeout)
		if err != nil {
			return nil, warn, errs.Wrap(errs.Transient, err, "dss: awaiting s share from %s", j)
		}
		sShares[j] = group.NewScalar(p.Domain, sv)
	}
	s := group.ScalarZero(p.Domain)
	for _, j := range signers {
		s = s.Add(lambdas[j].Mul(sShares[j]))
	}

	return &Signature{R: r, S: s.Big()}, warn, nil
}
