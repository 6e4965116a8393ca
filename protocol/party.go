// Package protocol provides a small synchronous glue layer wiring the
// VTMF and DKG modules together into one party-local aggregate:
// one Party per participant, every operation a blocking call over that
// party's channels.
//
// This intentionally does not reuse an async round.Session / MultiHandler
// state machine: a single-threaded, blocking-call concurrency model is
// the natural fit for a library meant to be driven from a simple CLI or
// test harness, and bolting that onto a non-blocking multi-round handler
// would fight the handler's own design at every step.
package protocol

import (
	"time"

	"github.com/libtmcg/tmcg/broadcast"
	"github.com/libtmcg/tmcg/dkg"
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/transport/unicast"
	"github.com/libtmcg/tmcg/vtmf"
)

// Party is one participant's local view across the whole stack: its
// group domain, its transports, its VTMF joint key, and (once run) its
// DKG share.
type Party struct {
	Domain  *group.Domain
	Self    party.ID
	All     party.IDSlice
	T       int
	BC      *broadcast.Channel
	UC      *unicast.Channel
	Policy  bign.RandPolicy
	Timeout time.Duration

	VTMF     *vtmf.VTMF
	keyShare *vtmf.KeyShare
	DKG      *dkg.Config
}

// NewParty samples this party's VTMF key share and wires its channels;
// call ExchangeVTMFKeys next to complete joint key generation.
func NewParty(d *group.Domain, self party.ID, all party.IDSlice, t int, bc *broadcast.Channel, uc *unicast.Channel, policy bign.RandPolicy, timeout time.Duration) (*Party, error) {
	v, ks, err := vtmf.New(d, self)
	if err != nil {
		return nil, err
	}
	return &Party{
		Domain: d, Self: self, All: all, T: t,
		BC: bc, UC: uc, Policy: policy, Timeout: timeout,
		VTMF: v, keyShare: ks,
	}, nil
}

// ExchangeVTMFKeys runs the joint VTMF key-generation round: every party
// broadcasts its (h_i, proof) and absorbs every
// other party's contribution, including its own (so every party ends up
// with an identical view of h = Prod h_i regardless of broadcast order).
func (p *Party) ExchangeVTMFKeys() error {
	if err := p.broadcastKeyShare(); err != nil {
		return err
	}
	if err := p.VTMF.Absorb(p.Self, p.keyShare.H, p.keyShare.Proof); err != nil {
		return errs.Wrap(errs.CryptoFailure, err, "protocol: absorbing own key share")
	}
	for _, peer := range p.All.Sort() {
		if peer == p.Self {
			continue
		}
		h, proof, err := p.deliverKeyShare(peer)
		if err != nil {
			return err
		}
		if err := p.VTMF.Absorb(peer, h, proof); err != nil {
			return err
		}
	}
	return nil
}

func (p *Party) broadcastKeyShare() error {
	for _, v := range []*group.Element{p.keyShare.H, p.keyShare.Proof.T} {
		if err := p.BC.Broadcast(v.Big(), p.Timeout); err != nil {
			return errs.Wrap(errs.Transient, err, "protocol: broadcasting key share")
		}
	}
	if err := p.BC.Broadcast(p.keyShare.Proof.R.Big(), p.Timeout); err != nil {
		return errs.Wrap(errs.Transient, err, "protocol: broadcasting key share proof response")
	}
	return nil
}

func (p *Party) deliverKeyShare(from party.ID) (*group.Element, *group.SchnorrProof, error) {
	hv, _, err := p.BC.DeliverFrom(from, p.Timeout)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Transient, err, "protocol: awaiting key share from %s", from)
	}
	tv, _, err := p.BC.DeliverFrom(from, p.Timeout)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Transient, err, "protocol: awaiting key share proof from %s", from)
	}
	rv, _, err := p.BC.DeliverFrom(from, p.Timeout)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Transient, err, "protocol: awaiting key share response from %s", from)
	}
	h := group.NewElement(p.Domain, hv)
	proof := &group.SchnorrProof{
		T: group.NewElement(p.Domain, tv),
		R: group.NewScalar(p.Domain, rv),
	}
	return h, proof, nil
}

// RunDKG runs the Feldman-exposure DKG over this party's broadcast/unicast
// channels, using h as the Joint-RVSS's second Pedersen generator
// (distinct from the VTMF joint key).
func (p *Party) RunDKG(h *group.Element) error {
	cfg, _, err := dkg.Run(dkg.Params{
		Domain: p.Domain, Self: p.Self, All: p.All, T: p.T,
		H: h, BC: p.BC, UC: p.UC,
		Policy: p.Policy, Timeout: p.Timeout,
	})
	if err != nil {
		return err
	}
	p.DKG = cfg
	return nil
}

// Refresh proactively re-randomizes this party's DKG share via a
// Joint-ZVSS refresh.
func (p *Party) Refresh(h *group.Element) error {
	cfg, _, err := dkg.Refresh(dkg.Params{
		Domain: p.Domain, Self: p.Self, All: p.All, T: p.T,
		H: h, BC: p.BC, UC: p.UC,
		Policy: p.Policy, Timeout: p.Timeout,
	}, p.DKG)
	if err != nil {
		return err
	}
	p.DKG = cfg
	return nil
}

// Sign runs the threshold DSS signing protocol over hm and returns the
// reconstructed signature (r, s).
func (p *Party) Sign(hm *group.Scalar) (*dkg.Signature, error) {
	sig, _, err := dkg.Sign(dkg.Params{
		Domain: p.Domain, Self: p.Self, All: p.All, T: p.T,
		H: p.VTMF.PublicKey(), BC: p.BC, UC: p.UC,
		Policy: p.Policy, Timeout: p.Timeout,
	}, p.DKG, hm.Big())
	return sig, err
}
