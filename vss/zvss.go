package vss

import "github.com/libtmcg/tmcg/pkg/errs"

// RunZVSS runs Joint-ZVSS: identical to Joint-RVSS except every dealer's
// constant term is fixed to 0 and dealers that publish C_0 != 1 are
// disqualified. The result's X is this party's share of the joint sum of
// zeros: interpolating the QUAL shares at 0 gives 0 whenever every QUAL
// dealer behaved — callers use X as an additive mask (DKG's Refresh), not
// as a meaningful secret by itself.
func RunZVSS(p Params) (*Result, *errs.Warnings, error) {
	p.Zero = true
	return Run(p)
}
