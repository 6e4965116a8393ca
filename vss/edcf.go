package vss

import (
	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/pkg/polynomial"
)

// RunEDCF runs the erasure-free distributed coin flip: a Joint-RVSS
// followed by a public reconstruction of the resulting x_i shares. It
// returns the recovered public coin x = Σ_{j∈QUAL} z_j.
func RunEDCF(p Params) (*group.Scalar, *errs.Warnings, error) {
	result, warn, err := Run(p)
	if err != nil {
		return nil, warn, err
	}

	if err := p.BC.Broadcast(result.X.Big(), p.Timeout); err != nil {
		return nil, warn, errs.Wrap(errs.Transient, err, "edcf: broadcasting own share")
	}

	needed := p.Degree + 1
	if needed > len(result.QUAL) {
		needed = len(result.QUAL)
	}
	used := make(party.IDSlice, 0, needed)
	xs := make(map[party.ID]*group.Scalar, needed)

	qualSorted := result.QUAL.Sort()
	for _, j := range qualSorted {
		if len(used) >= needed {
			break
		}
		if j == p.Self {
			xs[j] = result.X
			used = append(used, j)
			continue
		}
		v, _, err := p.BC.DeliverFrom(j, p.Timeout)
		if err != nil {
			return nil, warn, errs.Wrap(errs.Transient, err, "edcf: awaiting share from %s", j)
		}
		xs[j] = group.NewScalar(p.Domain, v)
		used = append(used, j)
	}

	// Evaluation points must match the ones shares were computed against
	// during sharing, i.e. indices within the full party set, not QUAL.
	all := p.All.Sort()
	lambdas := polynomial.LagrangeAtZero(p.Domain, all, used)
	x := group.ScalarZero(p.Domain)
	for _, j := range used {
		x = x.Add(lambdas[j].Mul(xs[j]))
	}
	return x, warn, nil
}
