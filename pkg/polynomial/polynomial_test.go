package polynomial_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/pkg/polynomial"
)

func testDomain(t *testing.T) *group.Domain {
	t.Helper()
	d, err := group.NewDomain(64)
	require.NoError(t, err)
	return d
}

func TestEvaluateMatchesConstantAtZero(t *testing.T) {
	d := testDomain(t)
	p, err := polynomial.New(d, 3, nil, bign.Strong)
	require.NoError(t, err)
	zero := group.ScalarFromUint64(d, 0)
	require.True(t, p.Evaluate(zero).Equal(p.Constant()))
}

func TestLagrangeReconstructsSecret(t *testing.T) {
	d := testDomain(t)
	secret, err := group.RandomScalar(d, bign.Strong)
	require.NoError(t, err)
	p, err := polynomial.New(d, 2, secret, bign.Strong)
	require.NoError(t, err)

	all := party.IDSlice{"p0", "p1", "p2", "p3"}.Sort()
	shares := make(map[party.ID]*group.Scalar)
	for _, id := range all {
		shares[id] = p.EvaluateAt(all, id)
	}

	// Any 3 of the 4 shares (degree 2, threshold 3) reconstruct the secret.
	subset := all[:3]
	coefs := polynomial.LagrangeAtZero(d, all, subset)
	sum := group.ScalarZero(d)
	for _, id := range subset {
		sum = sum.Add(coefs[id].Mul(shares[id]))
	}
	require.True(t, sum.Equal(secret))
}

func TestLagrangeCoefficientsSumToOneForFullSet(t *testing.T) {
	d := testDomain(t)
	all := party.IDSlice{"a", "b", "c"}.Sort()
	coefs := polynomial.LagrangeAtZero(d, all, all)
	sum := group.ScalarZero(d)
	for _, c := range coefs {
		sum = sum.Add(c)
	}
	require.True(t, sum.Equal(group.ScalarOne(d)))
}
