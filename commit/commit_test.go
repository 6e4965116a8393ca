package commit_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libtmcg/tmcg/commit"
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/group"
)

func buildDomain(t *testing.T) *group.Domain {
	t.Helper()
	d, err := group.NewDomain(64)
	require.NoError(t, err)
	return d
}

func TestCommitVerifyRoundTrip(t *testing.T) {
	d := buildDomain(t)
	gens := commit.SetupGeneratorsPublicCoin(d, big.NewInt(12345), 3)

	messages := []*group.Scalar{
		group.ScalarFromUint64(d, 7),
		group.ScalarFromUint64(d, 11),
		group.ScalarFromUint64(d, 13),
	}
	c, r, err := commit.Commit(d, gens, messages, bign.VeryStrong)
	require.NoError(t, err)
	require.True(t, commit.Verify(d, gens, c, r, messages))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	d := buildDomain(t)
	gens := commit.SetupGeneratorsPublicCoin(d, big.NewInt(999), 2)

	messages := []*group.Scalar{group.ScalarFromUint64(d, 4), group.ScalarFromUint64(d, 9)}
	c, r, err := commit.Commit(d, gens, messages, bign.VeryStrong)
	require.NoError(t, err)

	tampered := []*group.Scalar{group.ScalarFromUint64(d, 5), group.ScalarFromUint64(d, 9)}
	require.False(t, commit.Verify(d, gens, c, r, tampered))
}

// TestTrapdoorEquivocation checks that the holder of sigma can reopen one
// commitment to a different message, the property Groth's simulation
// proofs rely on.
func TestTrapdoorEquivocation(t *testing.T) {
	d := buildDomain(t)
	td, err := commit.NewTrapdoor(d, bign.VeryStrong)
	require.NoError(t, err)

	origM := []byte("hello")
	c, r, err := td.Commit(origM, bign.VeryStrong)
	require.NoError(t, err)

	newM := []byte("goodbye")
	newR := td.Open(origM, r, newM)

	recomputed := td.CommitWithRandomness(newM, newR)
	require.True(t, recomputed.Equal(c))
}
