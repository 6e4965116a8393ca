// Package vss implements Pedersen verifiable secret sharing, Joint-RVSS,
// Joint-ZVSS, and the erasure-free distributed coin flip (EDCF), layered
// over broadcast.Channel and transport/unicast.
package vss

import (
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/pkg/polynomial"
)

// Dealer holds one party's two degree-t' polynomials f, f' for a single
// Pedersen-VSS sharing round: f carries the secret, f' blinds the
// Pedersen commitment to f's coefficients.
type Dealer struct {
	d    *group.Domain
	f, fp *polynomial.Polynomial
}

// NewDealer samples f and f'. If zero is true, both polynomials' constant
// terms are fixed to 0, the ZVSS sharing variant.
func NewDealer(d *group.Domain, degree int, zero bool, policy bign.RandPolicy) (*Dealer, error) {
	var constant *group.Scalar
	if zero {
		constant = group.ScalarZero(d)
	}
	f, err := polynomial.New(d, degree, constant, policy)
	if err != nil {
		return nil, errs.Wrap(errs.CryptoFailure, err, "vss: sampling f")
	}
	fp, err := polynomial.New(d, degree, constant, policy)
	if err != nil {
		return nil, errs.Wrap(errs.CryptoFailure, err, "vss: sampling f'")
	}
	return &Dealer{d: d, f: f, fp: fp}, nil
}

// Secret returns z = f(0), this dealer's contribution to the joint value.
func (dl *Dealer) Secret() *group.Scalar { return dl.f.Constant() }

// FCoefficients exposes f's coefficients, needed by DKG's Feldman
// exposure phase to broadcast A_ik = g^{a_ik}.
func (dl *Dealer) FCoefficients() []*group.Scalar { return dl.f.Coefficients() }

// Commitments returns C_k = g^{a_k} h^{b_k} for k = 0..degree.
func (dl *Dealer) Commitments(h *group.Element) []*group.Element {
	out := make([]*group.Element, dl.f.Degree()+1)
	fc := dl.f.Coefficients()
	fpc := dl.fp.Coefficients()
	for k := range out {
		out[k] = group.Generator(dl.d).ExpSecret(fc[k]).Mul(h.ExpSecret(fpc[k]))
	}
	return out
}

// Share is one (s, s') pair sent privately to a receiver.
type Share struct {
	S, Sp *group.Scalar
}

// ShareFor evaluates both polynomials at the receiver's point.
func (dl *Dealer) ShareFor(all party.IDSlice, id party.ID) Share {
	return Share{
		S:  dl.f.EvaluateAt(all, id),
		Sp: dl.fp.EvaluateAt(all, id),
	}
}

// AllShares evaluates both polynomials at every party's point, in sorted
// order, used for the public disclosure during complaint resolution.
func (dl *Dealer) AllShares(all party.IDSlice) []Share {
	sorted := all.Sort()
	out := make([]Share, len(sorted))
	for i, id := range sorted {
		out[i] = dl.ShareFor(sorted, id)
	}
	return out
}

// VerifyShare checks g^s * h^s' == Π_k C_k^{x^k}, the per-share
// consistency check a receiver runs against the dealer's commitments.
func VerifyShare(d *group.Domain, h *group.Element, commitments []*group.Element, all party.IDSlice, id party.ID, share Share) bool {
	lhs := group.Generator(d).ExpSecret(share.S).Mul(h.ExpSecret(share.Sp))
	x := polynomial.PointFor(d, all, id)
	rhs := evalCommitment(d, commitments, x)
	return lhs.Equal(rhs)
}

// evalCommitment computes Π_k C_k^{x^k} using the public, non-constant-time
// exponentiation path: x is the evaluation point, never a secret.
func evalCommitment(d *group.Domain, commitments []*group.Element, x *group.Scalar) *group.Element {
	acc := group.Identity(d)
	xPow := group.ScalarOne(d)
	for _, c := range commitments {
		acc = acc.Mul(c.ExpPublic(xPow.Big()))
		xPow = xPow.Mul(x)
	}
	return acc
}
