package vtmf_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/vtmf"
)

func buildDomain(t *testing.T) *group.Domain {
	t.Helper()
	d, err := group.NewDomain(64)
	require.NoError(t, err)
	return d
}

// TestTwoPartyKeyExchange covers a two-party key exchange: two parties
// independently generate key shares, verify each other's PoK, and arrive
// at the same joint key.
func TestTwoPartyKeyExchange(t *testing.T) {
	d := buildDomain(t)

	alice, aliceShare, err := vtmf.New(d, "alice")
	require.NoError(t, err)
	bob, bobShare, err := vtmf.New(d, "bob")
	require.NoError(t, err)

	require.NoError(t, alice.Absorb("alice", aliceShare.H, aliceShare.Proof))
	require.NoError(t, alice.Absorb("bob", bobShare.H, bobShare.Proof))
	require.NoError(t, bob.Absorb("alice", aliceShare.H, aliceShare.Proof))
	require.NoError(t, bob.Absorb("bob", bobShare.H, bobShare.Proof))

	require.True(t, alice.PublicKey().Equal(bob.PublicKey()))
}

func TestAbsorbRejectsForgedProof(t *testing.T) {
	d := buildDomain(t)
	alice, _, err := vtmf.New(d, "alice")
	require.NoError(t, err)
	_, bobShare, err := vtmf.New(d, "bob")
	require.NoError(t, err)

	forged := *bobShare.Proof
	forged.R = forged.R.Add(forged.R) // tamper with the response

	err = alice.Absorb("bob", bobShare.H, &forged)
	require.Error(t, err)
}

// TestMaskRemaskDecryptRoundTrip masks m=4 under the joint key of two
// parties, each proving their share, and both recovering m after
// remasking.
func TestMaskRemaskDecryptRoundTrip(t *testing.T) {
	d := buildDomain(t)

	alice, aliceShare, err := vtmf.New(d, "alice")
	require.NoError(t, err)
	bob, bobShare, err := vtmf.New(d, "bob")
	require.NoError(t, err)

	for _, v := range []*vtmf.VTMF{alice, bob} {
		require.NoError(t, v.Absorb("alice", aliceShare.H, aliceShare.Proof))
		require.NoError(t, v.Absorb("bob", bobShare.H, bobShare.Proof))
	}

	m, err := vtmf.EncodeMessage(d, 4)
	require.NoError(t, err)

	ct, r, err := alice.Mask(m)
	require.NoError(t, err)
	proof, err := alice.ProveMask(m, ct, r)
	require.NoError(t, err)
	require.True(t, alice.VerifyMask(m, ct, proof))

	remasked, rr, err := bob.Remask(ct)
	require.NoError(t, err)
	remaskProof, err := bob.ProveRemask(ct, remasked, rr)
	require.NoError(t, err)
	require.True(t, bob.VerifyRemask(ct, remasked, remaskProof))

	aliceShareDec, err := alice.ProveDecrypt(remasked.C1)
	require.NoError(t, err)
	bobShareDec, err := bob.ProveDecrypt(remasked.C1)
	require.NoError(t, err)

	acc := vtmf.VerifyInitialize(d, remasked.C1, aliceShareDec)
	require.NoError(t, acc.VerifyUpdate("bob", bobShareDec))
	recovered, err := acc.VerifyFinalize(remasked.C2)
	require.NoError(t, err)
	require.True(t, recovered.Equal(m))
}

func TestProveDecryptFailsAfterForget(t *testing.T) {
	d := buildDomain(t)
	alice, share, err := vtmf.New(d, "alice")
	require.NoError(t, err)
	require.NoError(t, alice.Absorb("alice", share.H, share.Proof))

	m, err := vtmf.EncodeMessage(d, 7)
	require.NoError(t, err)
	ct, _, err := alice.Mask(m)
	require.NoError(t, err)

	alice.Forget()
	_, err = alice.ProveDecrypt(ct.C1)
	require.Error(t, err)
}
