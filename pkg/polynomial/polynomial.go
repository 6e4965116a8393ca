// Package polynomial implements Shamir secret-sharing polynomials over
// Z_q, evaluation, and Lagrange coefficient computation, over an order-q
// multiplicative-subgroup exponent field rather than an elliptic curve's
// scalar field.
package polynomial

import (
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
)

// Polynomial is f(z) = constant + a_1*z + ... + a_degree*z^degree, stored
// lowest coefficient first.
type Polynomial struct {
	d     *group.Domain
	coefs []*group.Scalar
}

// New samples a random polynomial of the given degree. If constant is
// non-nil it is used as the constant term (f(0)); otherwise a fresh random
// scalar is drawn. Passing a zero constant produces the "deal a zero
// secret" polynomials ZVSS requires.
func New(d *group.Domain, degree int, constant *group.Scalar, policy bign.RandPolicy) (*Polynomial, error) {
	coefs := make([]*group.Scalar, degree+1)
	if constant != nil {
		coefs[0] = constant
	} else {
		c, err := group.RandomScalar(d, policy)
		if err != nil {
			return nil, err
		}
		coefs[0] = c
	}
	for i := 1; i <= degree; i++ {
		c, err := group.RandomScalar(d, policy)
		if err != nil {
			return nil, err
		}
		coefs[i] = c
	}
	return &Polynomial{d: d, coefs: coefs}, nil
}

// Degree returns the polynomial's degree.
func (p *Polynomial) Degree() int { return len(p.coefs) - 1 }

// Constant returns f(0), the shared secret.
func (p *Polynomial) Constant() *group.Scalar { return p.coefs[0] }

// Coefficients returns the polynomial's coefficients, lowest degree first.
func (p *Polynomial) Coefficients() []*group.Scalar { return p.coefs }

// Evaluate computes f(x).
func (p *Polynomial) Evaluate(x *group.Scalar) *group.Scalar {
	// Horner's method, highest degree first.
	acc := p.coefs[len(p.coefs)-1]
	for i := len(p.coefs) - 2; i >= 0; i-- {
		acc = acc.Mul(x).Add(p.coefs[i])
	}
	return acc
}

// EvaluateAt evaluates f at the canonical point for party id: x = index+1
// within the sorted party set, giving the share (sigma_i, tau_i) =
// (f(i+1), f'(i+1)).
func (p *Polynomial) EvaluateAt(all party.IDSlice, id party.ID) *group.Scalar {
	idx := all.Index(id)
	x := group.ScalarFromUint64(p.d, uint64(idx+1))
	return p.Evaluate(x)
}

// PointFor returns the evaluation point x = index+1 for id within all.
func PointFor(d *group.Domain, all party.IDSlice, id party.ID) *group.Scalar {
	idx := all.Index(id)
	return group.ScalarFromUint64(d, uint64(idx+1))
}

// LagrangeAtZero returns, for each id in ids, the coefficient lambda_id
// such that sum_id lambda_id * f(x_id) = f(0), for the evaluation points
// x_id = index+1 within all. This is used both for secret reconstruction
// and for threshold-signature share combination.
func LagrangeAtZero(d *group.Domain, all party.IDSlice, ids party.IDSlice) map[party.ID]*group.Scalar {
	out := make(map[party.ID]*group.Scalar, len(ids))
	for _, i := range ids {
		xi := PointFor(d, all, i)
		num := group.ScalarOne(d)
		den := group.ScalarOne(d)
		for _, j := range ids {
			if j == i {
				continue
			}
			xj := PointFor(d, all, j)
			num = num.Mul(xj.Neg())
			den = den.Mul(xi.Sub(xj))
		}
		out[i] = num.Mul(den.Inv())
	}
	return out
}
