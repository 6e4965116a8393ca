package hssv_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/shuffle/hssv"
)

func buildDomain(t *testing.T) *group.Domain {
	t.Helper()
	d, err := group.NewDomain(64)
	require.NoError(t, err)
	return d
}

// rotate returns alpha rotated right by r: out[i] = alpha[(i-r) mod n].
func rotate(alpha []*group.Scalar, r int) []*group.Scalar {
	n := len(alpha)
	out := make([]*group.Scalar, n)
	for i := 0; i < n; i++ {
		out[i] = alpha[((i-r)%n+n)%n]
	}
	return out
}

// TestRotationRoundTrip builds three public labels, rotates them by a
// secret r, commits to the rotated list with fresh openings s_j, and
// checks that a correctly-derived proof verifies while a mismatched
// lambda or corrupted label set is rejected.
func TestRotationRoundTrip(t *testing.T) {
	d := buildDomain(t)
	g := group.Generator(d)
	h := group.Generator(d).ExpSecret(group.ScalarFromUint64(d, 19))

	alpha := []*group.Scalar{
		group.ScalarFromUint64(d, 3),
		group.ScalarFromUint64(d, 5),
		group.ScalarFromUint64(d, 7),
	}
	r := 1
	rotated := rotate(alpha, r)

	s := []*group.Scalar{
		group.ScalarFromUint64(d, 101),
		group.ScalarFromUint64(d, 102),
		group.ScalarFromUint64(d, 103),
	}
	c := make([]*group.Element, len(alpha))
	for j := range c {
		c[j] = g.ExpSecret(rotated[j]).Mul(h.ExpSecret(s[j]))
	}

	beta, err := hssv.ChallengeBetas(d, len(alpha), bign.VeryStrong)
	require.NoError(t, err)

	state, f, err := hssv.ProveMove2(d, g, h, alpha, s, c, r, beta, bign.VeryStrong)
	require.NoError(t, err)

	lambda, err := hssv.ChallengeLambda(d, bign.VeryStrong)
	require.NoError(t, err)

	proof := hssv.ProveMove4(state, lambda)
	proof.F = f

	require.True(t, hssv.Verify(d, g, h, alpha, c, beta, lambda, proof))

	wrongLambda := lambda.Add(group.ScalarOne(d))
	require.False(t, hssv.Verify(d, g, h, alpha, c, beta, wrongLambda, proof))

	tamperedAlpha := []*group.Scalar{
		group.ScalarFromUint64(d, 3),
		group.ScalarFromUint64(d, 6),
		group.ScalarFromUint64(d, 7),
	}
	require.False(t, hssv.Verify(d, g, h, tamperedAlpha, c, beta, lambda, proof))
}

// TestRotationNIZK covers the non-interactive Fiat-Shamir variant.
func TestRotationNIZK(t *testing.T) {
	d := buildDomain(t)
	g := group.Generator(d)
	h := group.Generator(d).ExpSecret(group.ScalarFromUint64(d, 23))

	alpha := []*group.Scalar{
		group.ScalarFromUint64(d, 2),
		group.ScalarFromUint64(d, 4),
		group.ScalarFromUint64(d, 8),
	}
	r := 2
	rotated := rotate(alpha, r)
	s := []*group.Scalar{
		group.ScalarFromUint64(d, 201),
		group.ScalarFromUint64(d, 202),
		group.ScalarFromUint64(d, 203),
	}
	c := make([]*group.Element, len(alpha))
	for j := range c {
		c[j] = g.ExpSecret(rotated[j]).Mul(h.ExpSecret(s[j]))
	}

	beta, lambda, proof, err := hssv.ProveNIZK(d, g, h, alpha, s, c, r, bign.VeryStrong)
	require.NoError(t, err)
	require.True(t, hssv.Verify(d, g, h, alpha, c, beta, lambda, proof))
}
