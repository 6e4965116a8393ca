package groth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libtmcg/tmcg/commit"
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/shuffle/groth"
)

func buildDomain(t *testing.T) *group.Domain {
	t.Helper()
	d, err := group.NewDomain(64)
	require.NoError(t, err)
	return d
}

func scalars(d *group.Domain, vs ...uint64) []*group.Scalar {
	out := make([]*group.Scalar, len(vs))
	for i, v := range vs {
		out[i] = group.ScalarFromUint64(d, v)
	}
	return out
}

// TestShuffleRoundTrip commits to pi=(2,0,1) of {7,11,13} with r=5; the
// non-interactive proof verifies; replacing m_2 by 12 in the verifier's
// input causes rejection.
func TestShuffleRoundTrip(t *testing.T) {
	d := buildDomain(t)
	gens := commit.SetupGeneratorsPublicCoin(d, group.ScalarFromUint64(d, 42).Big(), 3)

	m := scalars(d, 7, 11, 13)
	pi := []int{2, 0, 1}
	r := group.ScalarFromUint64(d, 5)

	shuffled := []*group.Scalar{m[pi[0]], m[pi[1]], m[pi[2]]}
	c := commit.CommitWithRandomness(d, gens, shuffled, r)

	proof, err := groth.ProveNIZK(d, gens, c, m, pi, r, bign.VeryStrong)
	require.NoError(t, err)
	require.True(t, groth.Verify(d, gens, c, m, proof))

	tampered := scalars(d, 7, 12, 13)
	require.False(t, groth.Verify(d, gens, c, tampered, proof))
}

func TestShuffleRejectsWrongCommitment(t *testing.T) {
	d := buildDomain(t)
	gens := commit.SetupGeneratorsPublicCoin(d, group.ScalarFromUint64(d, 7).Big(), 3)

	m := scalars(d, 7, 11, 13)
	pi := []int{2, 0, 1}
	r := group.ScalarFromUint64(d, 5)
	shuffled := []*group.Scalar{m[pi[0]], m[pi[1]], m[pi[2]]}
	c := commit.CommitWithRandomness(d, gens, shuffled, r)

	proof, err := groth.ProveNIZK(d, gens, c, m, pi, r, bign.VeryStrong)
	require.NoError(t, err)

	wrongC := commit.CommitWithRandomness(d, gens, scalars(d, 11, 7, 13), r)
	require.False(t, groth.Verify(d, gens, wrongC, m, proof))
}
