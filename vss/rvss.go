package vss

import (
	"math/big"
	"time"

	"github.com/libtmcg/tmcg/broadcast"
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/transport/unicast"
)

// Params configures one run of Joint-RVSS (or, with Zero set, Joint-ZVSS).
type Params struct {
	Domain  *group.Domain
	Self    party.ID
	All     party.IDSlice
	T       int // corruption threshold; dealers complained against by > T parties are disqualified
	Degree  int // t', the sharing polynomial's degree
	H       *group.Element
	BC      *broadcast.Channel
	UC      *unicast.Channel
	Zero    bool // ZVSS: force every dealer's constant term to 0
	Policy  bign.RandPolicy
	Timeout time.Duration
}

// Result is the local output of a completed Joint-RVSS/ZVSS run: this
// party's additive shares of the joint secret and blinding value, the
// qualified dealer set, every QUAL dealer's commitment vector, and this
// party's own per-dealer share (needed by DKG's Feldman exposure phase to
// bind each dealer's exposed coefficients back to the share this party
// already accepted).
type Result struct {
	X, Xp       *group.Scalar
	QUAL        party.IDSlice
	Commitments map[party.ID][]*group.Element
	// Shares holds, for every QUAL dealer j, the (s_ji, s'_ji) pair this
	// party received from j and accepted (directly, or via complaint
	// resolution).
	Shares map[party.ID]Share
	// OwnDealer is the local party's own Dealer for this run, exposed so
	// callers layered on top (DKG's Feldman exposure phase) can reuse the
	// same f_i coefficients rather than resampling a fresh polynomial.
	OwnDealer *Dealer
}

const shareBound = 8192

// Run executes one Joint-RVSS (Zero=false) or Joint-ZVSS (Zero=true)
// session: every party deals Pedersen-VSS shares, receivers complain
// against inconsistent shares, complained-against dealers disclose in
// the clear, and the surviving QUAL set's shares are summed.
func Run(p Params) (*Result, *errs.Warnings, error) {
	warn := &errs.Warnings{}
	sorted := p.All.Sort()

	dealer, err := NewDealer(p.Domain, p.Degree, p.Zero, p.Policy)
	if err != nil {
		return nil, warn, err
	}

	// Step 2: broadcast own commitments.
	ownCommitments := dealer.Commitments(p.H)
	for _, c := range ownCommitments {
		if err := p.BC.Broadcast(c.Big(), p.Timeout); err != nil {
			return nil, warn, errs.Wrap(errs.Transient, err, "vss: broadcasting commitments")
		}
	}

	// Step 3: privately send shares to every other party.
	for _, to := range sorted {
		if to == p.Self {
			continue
		}
		share := dealer.ShareFor(sorted, to)
		if err := p.UC.Send(p.Timeout, to, share.S.Big(), shareBound); err != nil {
			return nil, warn, errs.Wrap(errs.Transient, err, "vss: sending share to %s", to)
		}
		if err := p.UC.Send(p.Timeout, to, share.Sp.Big(), shareBound); err != nil {
			return nil, warn, errs.Wrap(errs.Transient, err, "vss: sending share' to %s", to)
		}
	}

	// Collect every dealer's commitment vector (own is already known).
	commitments := make(map[party.ID][]*group.Element, len(sorted))
	commitments[p.Self] = ownCommitments
	for _, j := range sorted {
		if j == p.Self {
			continue
		}
		vec := make([]*group.Element, p.Degree+1)
		for k := range vec {
			v, _, err := p.BC.DeliverFrom(j, p.Timeout)
			if err != nil {
				return nil, warn, errs.Wrap(errs.Transient, err, "vss: awaiting commitments from %s", j)
			}
			vec[k] = group.NewElement(p.Domain, v)
		}
		commitments[j] = vec
	}

	// Collect the private share from every other dealer; self's own share
	// is computed locally without a network round trip.
	shares := make(map[party.ID]Share, len(sorted))
	shares[p.Self] = dealer.ShareFor(sorted, p.Self)
	for _, j := range sorted {
		if j == p.Self {
			continue
		}
		s, _, err := p.UC.Receive(p.Timeout, unicast.Direct(j), shareBound)
		if err != nil {
			return nil, warn, errs.Wrap(errs.Transient, err, "vss: awaiting share from %s", j)
		}
		sp, _, err := p.UC.Receive(p.Timeout, unicast.Direct(j), shareBound)
		if err != nil {
			return nil, warn, errs.Wrap(errs.Transient, err, "vss: awaiting share' from %s", j)
		}
		shares[j] = Share{S: group.NewScalar(p.Domain, s), Sp: group.NewScalar(p.Domain, sp)}
	}

	// Step 4: verify each received share; track complaints locally.
	complain := make(map[party.ID]bool, len(sorted))
	for _, j := range sorted {
		if j == p.Self {
			continue
		}
		if !VerifyShare(p.Domain, p.H, commitments[j], sorted, p.Self, shares[j]) {
			complain[j] = true
			warn.Add(string(j), "vss: share verification failed, complaining")
		}
	}
	if p.Zero {
		for _, j := range sorted {
			if !commitments[j][0].Equal(group.Identity(p.Domain)) {
				complain[j] = true
				warn.Add(string(j), "vss: ZVSS dealer published C_0 != 1")
			}
		}
	}

	// Step 5: broadcast a bitmask of local complaints, one bit per dealer
	// index in sorted order.
	mask := new(big.Int)
	for i, j := range sorted {
		if complain[j] {
			mask.SetBit(mask, i, 1)
		}
	}
	if err := p.BC.Broadcast(mask, p.Timeout); err != nil {
		return nil, warn, errs.Wrap(errs.Transient, err, "vss: broadcasting complaint mask")
	}

	complaintCount := make(map[party.ID]int, len(sorted))
	for _, j := range sorted {
		var v *big.Int
		if j == p.Self {
			v = mask
		} else {
			var err error
			v, _, err = p.BC.DeliverFrom(j, p.Timeout)
			if err != nil {
				return nil, warn, errs.Wrap(errs.Transient, err, "vss: awaiting complaint mask from %s", j)
			}
		}
		for i, target := range sorted {
			if v.Bit(i) == 1 {
				complaintCount[target]++
			}
		}
	}

	// Step 5 (resolution): any dealer complained against by anyone
	// discloses its full share vector in the clear; every party
	// re-verifies and disqualifies the dealer on mismatch.
	disqualified := make(map[party.ID]bool, len(sorted))
	for _, dealerID := range sorted {
		if complaintCount[dealerID] == 0 {
			continue
		}
		var revealed []Share
		if dealerID == p.Self {
			revealed = dealer.AllShares(sorted)
			for _, s := range revealed {
				if err := p.BC.Broadcast(s.S.Big(), p.Timeout); err != nil {
					return nil, warn, errs.Wrap(errs.Transient, err, "vss: broadcasting revealed share")
				}
				if err := p.BC.Broadcast(s.Sp.Big(), p.Timeout); err != nil {
					return nil, warn, errs.Wrap(errs.Transient, err, "vss: broadcasting revealed share'")
				}
			}
		} else {
			revealed = make([]Share, len(sorted))
			for i := range sorted {
				s, _, err := p.BC.DeliverFrom(dealerID, p.Timeout)
				if err != nil {
					return nil, warn, errs.Wrap(errs.Transient, err, "vss: awaiting revealed share from %s", dealerID)
				}
				sp, _, err := p.BC.DeliverFrom(dealerID, p.Timeout)
				if err != nil {
					return nil, warn, errs.Wrap(errs.Transient, err, "vss: awaiting revealed share' from %s", dealerID)
				}
				revealed[i] = Share{S: group.NewScalar(p.Domain, s), Sp: group.NewScalar(p.Domain, sp)}
			}
		}

		ok := true
		for i, id := range sorted {
			if !VerifyShare(p.Domain, p.H, commitments[dealerID], sorted, id, revealed[i]) {
				ok = false
				break
			}
		}
		if !ok || complaintCount[dealerID] > p.T {
			disqualified[dealerID] = true
			continue
		}
		// Adopt the verified public share for this party's own position.
		selfIdx := sorted.Index(p.Self)
		shares[dealerID] = revealed[selfIdx]
	}

	qual := make(party.IDSlice, 0, len(sorted))
	for _, j := range sorted {
		if !disqualified[j] {
			qual = append(qual, j)
		}
	}
	if len(qual) <= p.T {
		return nil, warn, errs.New(errs.ProtocolViolation, "vss: |QUAL|=%d does not exceed threshold t=%d", len(qual), p.T)
	}
	if !qual.Contains(p.Self) {
		return nil, warn, errs.New(errs.Disqualified, "vss: local party fell out of QUAL")
	}

	x := group.ScalarZero(p.Domain)
	xp := group.ScalarZero(p.Domain)
	qualCommitments := make(map[party.ID][]*group.Element, len(qual))
	qualShares := make(map[party.ID]Share, len(qual))
	for _, j := range qual {
		x = x.Add(shares[j].S)
		xp = xp.Add(shares[j].Sp)
		qualCommitments[j] = commitments[j]
		qualShares[j] = shares[j]
	}

	return &Result{X: x, Xp: xp, QUAL: qual, Commitments: qualCommitments, Shares: qualShares, OwnDealer: dealer}, warn, nil
}
