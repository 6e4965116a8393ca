package dkg

import (
	"context"
	"math/big"

	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/pkg/pool"
	"github.com/libtmcg/tmcg/vss"
)

// Refresh re-randomizes every party's share of the same joint secret
// without changing the joint public key, via a Joint-ZVSS ("proactive
// refresh"): each party deals shares of 0, and delta_i, the sum of
// received shares, is added into x_i. Since Sum(delta_i) = 0, x = Sum(x_i)
// is unchanged, but an adversary who learned shares before the refresh
// gains nothing from them afterward.
//
// Every party's verification key does change: v_j only stays meaningful
// against the refreshed x_j if it is updated by the same Feldman exposure
// of the zero-polynomials that keygen.Run performs for the initial
// dealing, so Refresh repeats that exposure/complaint/disclosure phase
// over the ZVSS run's delta polynomials and folds the result into v_j
// before returning.
func Refresh(p Params, c *Config) (*Config, *errs.Warnings, error) {
	sorted := p.All.Sort()

	rv, warn, err := vss.RunZVSS(vss.Params{
		Domain: p.Domain, Self: p.Self, All: p.All, T: p.T, Degree: p.T,
		H: p.H, BC: p.BC, UC: p.UC,
		Policy: p.Policy, Timeout: p.Timeout,
	})
	if err != nil {
		return nil, warn, err
	}

	ownCoefs := rv.OwnDealer.FCoefficients()
	ownA := make([]*group.Element, len(ownCoefs))
	for k, a := range ownCoefs {
		ownA[k] = group.Generator(p.Domain).ExpSecret(a)
	}
	for _, a := range ownA {
		if err := p.BC.Broadcast(a.Big(), p.Timeout); err != nil {
			return nil, warn, errs.Wrap(errs.Transient, err, "dkg: broadcasting refresh A_ik")
		}
	}

	aExp := make(map[party.ID][]*group.Element, len(rv.QUAL))
	aExp[p.Self] = ownA
	for _, j := range rv.QUAL {
		if j == p.Self {
			continue
		}
		vec := make([]*group.Element, p.T+1)
		for k := range vec {
			v, _, err := p.BC.DeliverFrom(j, p.Timeout)
			if err != nil {
				return nil, warn, errs.Wrap(errs.Transient, err, "dkg: awaiting refresh A_jk from %s", j)
			}
			vec[k] = group.NewElement(p.Domain, v)
		}
		aExp[j] = vec
	}

	complain := make(map[party.ID]bool, len(rv.QUAL))
	for _, j := range rv.QUAL {
		if j == p.Self {
			continue
		}
		if len(aExp[j]) != p.T+1 || !feldmanConsistentOwnShare(p.Domain, p.All, p.Self, rv.Shares[j].S, aExp[j]) {
			complain[j] = true
			warn.Add(string(j), "dkg: refresh Feldman exposure inconsistent with own ZVSS share")
		}
	}

	mask := new(big.Int)
	for i, j := range sorted {
		if complain[j] {
			mask.SetBit(mask, i, 1)
		}
	}
	if err := p.BC.Broadcast(mask, p.Timeout); err != nil {
		return nil, warn, errs.Wrap(errs.Transient, err, "dkg: broadcasting refresh Feldman complaint mask")
	}
	complaintCount := make(map[party.ID]int, len(sorted))
	for _, j := range sorted {
		var v *big.Int
		if j == p.Self {
			v = mask
		} else if rv.QUAL.Contains(j) {
			var err error
			v, _, err = p.BC.DeliverFrom(j, p.Timeout)
			if err != nil {
				return nil, warn, errs.Wrap(errs.Transient, err, "dkg: awaiting refresh Feldman complaint mask from %s", j)
			}
		} else {
			continue
		}
		for i, target := range sorted {
			if rv.QUAL.Contains(target) && v.Bit(i) == 1 {
				complaintCount[target]++
			}
		}
	}

	disqualified := make(map[party.ID]bool, len(rv.QUAL))
	for _, dealerID := range rv.QUAL {
		if complaintCount[dealerID] == 0 {
			continue
		}
		if dealerID == p.Self {
			for _, a := range ownCoefs {
				if err := p.BC.Broadcast(a.Big(), p.Timeout); err != nil {
					return nil, warn, errs.Wrap(errs.Transient, err, "dkg: disclosing refresh coefficients")
				}
			}
			continue
		}
		revealed := make([]*group.Scalar, p.T+1)
		for k := range revealed {
			v, _, err := p.BC.DeliverFrom(dealerID, p.Timeout)
			if err != nil {
				return nil, warn, errs.Wrap(errs.Transient, err, "dkg: awaiting disclosed refresh coefficients from %s", dealerID)
			}
			revealed[k] = group.NewScalar(p.Domain, v)
		}
		recomputed := make([]*group.Element, len(revealed))
		for k, a := range revealed {
			recomputed[k] = group.Generator(p.Domain).ExpSecret(a)
		}
		if !feldmanConsistentOwnShare(p.Domain, p.All, p.Self, rv.Shares[dealerID].S, recomputed) || complaintCount[dealerID] > p.T {
			disqualified[dealerID] = true
			continue
		}
		aExp[dealerID] = recomputed
	}

	qual := make(party.IDSlice, 0, len(rv.QUAL))
	for _, j := range rv.QUAL {
		if !disqualified[j] {
			qual = append(qual, j)
		}
	}
	if len(qual) <= p.T {
		return nil, warn, errs.New(errs.ProtocolViolation, "dkg: refresh |QUAL|=%d does not exceed threshold t=%d", len(qual), p.T)
	}

	// Every member's verification key moves by Π_j∈qual Π_k A_jk^{(i+1)^k},
	// the same Feldman-exposed-delta fan-out keygen.Run uses for the
	// initial dealing.
	deltaAccs, err := pool.Map(context.Background(), pool.New(0), len(sorted), func(_ context.Context, i int) (*group.Element, error) {
		member := sorted[i]
		acc := group.Identity(p.Domain)
		for _, j := range qual {
			acc = acc.Mul(evalExposed(p.Domain, p.All, member, aExp[j]))
		}
		return acc, nil
	})
	if err != nil {
		return nil, warn, errs.Wrap(errs.CryptoFailure, err, "dkg: computing refreshed verification keys")
	}
	vKeys := make(map[party.ID]*big.Int, len(c.VerificationKeys))
	for id, v := range c.VerificationKeys {
		vKeys[id] = v
	}
	for i, member := range sorted {
		old := group.NewElement(p.Domain, vKeys[member])
		vKeys[member] = old.Mul(deltaAccs[i]).Big()
	}

	refreshed := &Config{
		P: c.P, Q: c.Q, G: c.G, H: c.H,
		N: c.N, T: c.T, I: c.I,
		Xi:  c.Xi.Add(rv.X),
		Xpi: c.Xpi.Add(rv.Xp),
		Y:   c.Y,
		// QUAL and YShares describe the original dealing and are
		// unaffected by a refresh: the joint secret is invariant under an
		// all-zero-sum additive update.
		QUAL:             c.QUAL,
		YShares:          c.YShares,
		VerificationKeys: vKeys,
		Commitments:      c.Commitments,
	}

	d := &group.Domain{P: c.P, Q: c.Q, G: c.G, H: c.H}
	gen := group.Generator(d)
	if !gen.ExpSecret(refreshed.Xi).Equal(group.NewElement(d, refreshed.VerificationKeys[p.Self])) {
		return nil, warn, errs.New(errs.CryptoFailure, "dkg: refreshed share no longer matches verification key")
	}
	return refreshed, warn, nil
}
