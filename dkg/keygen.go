package dkg

import (
	"context"
	"math/big"
	"time"

	"github.com/libtmcg/tmcg/broadcast"
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/pkg/pool"
	"github.com/libtmcg/tmcg/transport/unicast"
	"github.com/libtmcg/tmcg/vss"
)

// Params configures one DKG run: the optimal-resilience variant (t < n/2),
// built on top of a Joint-RVSS of the same degree t.
type Params struct {
	Domain  *group.Domain
	Self    party.ID
	All     party.IDSlice
	T       int
	H       *group.Element // the vss package's second Pedersen generator
	BC      *broadcast.Channel
	UC      *unicast.Channel
	Policy  bign.RandPolicy
	Timeout time.Duration
}

// Run executes the DKG's Joint-RVSS sharing phase followed by the Feldman
// exposure phase and returns a Config ready for persistence.
func Run(p Params) (*Config, *errs.Warnings, error) {
	sorted := p.All.Sort()

	rv, warn, err := vss.Run(vss.Params{
		Domain: p.Domain, Self: p.Self, All: p.All, T: p.T, Degree: p.T,
		H: p.H, BC: p.BC, UC: p.UC, Zero: false,
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

	// Step 2: broadcast own A_ik = g^{a_ik}.
	for _, a := range ownA {
		if err := p.BC.Broadcast(a.Big(), p.Timeout); err != nil {
			return nil, warn, errs.Wrap(errs.Transient, err, "dkg: broadcasting A_ik")
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
				return nil, warn, errs.Wrap(errs.Transient, err, "dkg: awaiting A_jk from %s", j)
			}
			vec[k] = group.NewElement(p.Domain, v)
		}
		aExp[j] = vec
	}

	// Step 3: check g^{s_ji} == Π_k A_jk^{(i+1)^k}, binding each dealer's
	// Feldman-exposed coefficients back to the private share s_ji this
	// party already accepted during the RVSS run. A mismatch means the
	// dealer's Feldman exposure is inconsistent with the share it actually
	// handed out, and is handled the same deterministic way RVSS resolves
	// VSS complaints: the dealer discloses its full coefficient vector in
	// the clear on any complaint.
	complain := make(map[party.ID]bool, len(rv.QUAL))
	for _, j := range rv.QUAL {
		if j == p.Self {
			continue
		}
		if len(aExp[j]) != p.T+1 || !feldmanConsistentOwnShare(p.Domain, p.All, p.Self, rv.Shares[j].S, aExp[j]) {
			complain[j] = true
			warn.Add(string(j), "dkg: Feldman exposure inconsistent with own VSS share")
		}
	}

	mask := new(big.Int)
	for i, j := range sorted {
		if complain[j] {
			mask.SetBit(mask, i, 1)
		}
	}
	if err := p.BC.Broadcast(mask, p.Timeout); err != nil {
		return nil, warn, errs.Wrap(errs.Transient, err, "dkg: broadcasting Feldman complaint mask")
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
				return nil, warn, errs.Wrap(errs.Transient, err, "dkg: awaiting Feldman complaint mask from %s", j)
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

	// Step 4: any complained-against dealer discloses its coefficients in
	// the clear; every receiver recomputes A_jk directly.
	disqualified := make(map[party.ID]bool, len(rv.QUAL))
	for _, dealerID := range rv.QUAL {
		if complaintCount[dealerID] == 0 {
			continue
		}
		if dealerID == p.Self {
			for _, a := range ownCoefs {
				if err := p.BC.Broadcast(a.Big(), p.Timeout); err != nil {
					return nil, warn, errs.Wrap(errs.Transient, err, "dkg: disclosing coefficients")
				}
			}
			continue
		}
		revealed := make([]*group.Scalar, p.T+1)
		for k := range revealed {
			v, _, err := p.BC.DeliverFrom(dealerID, p.Timeout)
			if err != nil {
				return nil, warn, errs.Wrap(errs.Transient, err, "dkg: awaiting disclosed coefficients from %s", dealerID)
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
		return nil, warn, errs.New(errs.ProtocolViolation, "dkg: |QUAL|=%d does not exceed threshold t=%d", len(qual), p.T)
	}

	// Step 5: y = Π y_i, v_j = Π_i Π_k A_ik^{(j+1)^k}.
	y := group.Identity(p.Domain)
	yShares := make(map[party.ID]*big.Int, len(qual))
	for _, j := range qual {
		yj := aExp[j][0]
		yShares[j] = yj.Big()
		y = y.Mul(yj)
	}

	// Each member's verification key is an independent, public-exponent
	// computation over the same aExp/qual data, so fan it out across a
	// bounded worker pool instead of computing n of them serially.
	vAccs, err := pool.Map(context.Background(), pool.New(0), len(sorted), func(_ context.Context, i int) (*group.Element, error) {
		member := sorted[i]
		vAcc := group.Identity(p.Domain)
		for _, j := range qual {
			vAcc = vAcc.Mul(evalExposed(p.Domain, p.All, member, aExp[j]))
		}
		return vAcc, nil
	})
	if err != nil {
		return nil, warn, errs.Wrap(errs.CryptoFailure, err, "dkg: computing verification keys")
	}
	vKeys := make(map[party.ID]*big.Int, len(sorted))
	for i, member := range sorted {
		vKeys[member] = vAccs[i].Big()
	}

	commitments := make(map[party.ID][]*big.Int, len(qual))
	for _, j := range qual {
		vec := make([]*big.Int, len(rv.Commitments[j]))
		for k, c := range rv.Commitments[j] {
			vec[k] = c.Big()
		}
		commitments[j] = vec
	}

	return &Config{
		P: p.Domain.P, Q: p.Domain.Q, G: p.Domain.G, H: p.H.Big(),
		N: len(sorted), T: p.T, I: sorted.Index(p.Self),
		Xi: rv.X, Xpi: rv.Xp, Y: y.Big(),
		QUAL:             qual,
		YShares:          yShares,
		VerificationKeys: vKeys,
		Commitments:      commitments,
	}, warn, nil
}

// feldmanConsistentOwnShare checks g^{s_ji} == Π_k A_jk^{(i+1)^k} for the
// local party's own position i, binding the dealer j's Feldman-exposed
// coefficients A_jk to the (s, s') share this party already received and
// verified against j's Pedersen commitment during the RVSS run. This is
// the actual Feldman/VSS consistency link: C_jk = g^{a_jk} h^{b_jk} can't
// be compared against A_jk = g^{a_jk} alone without b_jk in the clear, so
// the binding has to run through a share every receiver already holds.
func feldmanConsistentOwnShare(d *group.Domain, all party.IDSlice, self party.ID, ownShare *group.Scalar, exposed []*group.Element) bool {
	if ownShare == nil {
		return false
	}
	lhs := group.Generator(d).ExpSecret(ownShare)
	rhs := evalExposed(d, all, self, exposed)
	return lhs.Equal(rhs)
}

// evalExposed computes Π_k A_k^{(idx+1)^k} for the party at position idx
// in all, using public exponentiation since exposed coefficients and
// evaluation points are both public.
func evalExposed(d *group.Domain, all party.IDSlice, id party.ID, exposed []*group.Element) *group.Element {
	x := new(big.Int).SetInt64(int64(all.Sort().Index(id) + 1))
	acc := group.Identity(d)
	xPow := big.NewInt(1)
	for _, a := range exposed {
		acc = acc.Mul(a.ExpPublic(xPow))
		xPow = new(big.Int).Mul(xPow, x)
		xPow.Mod(xPow, d.Q)
	}
	return acc
}
