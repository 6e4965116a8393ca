package vss_test

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/libtmcg/tmcg/broadcast"
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/pkg/polynomial"
	"github.com/libtmcg/tmcg/transport/unicast"
	"github.com/libtmcg/tmcg/vss"
)

type pipeRW struct {
	r net.Conn
	w net.Conn
}

func (p pipeRW) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p pipeRW) Write(b []byte) (int, error) { return p.w.Write(b) }

// buildFleet wires a full mesh of unicast channels and a shared in-memory
// RBC network for the given parties.
func buildFleet(t *testing.T, parties party.IDSlice) (map[party.ID]*unicast.Channel, *broadcast.MemNetwork) {
	t.Helper()
	preKey := []byte("shared-pre-key-for-testing-only")

	type link struct{ a, b net.Conn }
	links := map[[2]party.ID]link{}
	for i, a := range parties {
		for _, b := range parties[i+1:] {
			atob, btoa := net.Pipe()
			links[[2]party.ID{a, b}] = link{a: atob, b: btoa}
		}
	}

	channels := make(map[party.ID]*unicast.Channel, len(parties))
	for _, self := range parties {
		peers := make(map[party.ID]io.ReadWriter, len(parties)-1)
		for _, other := range parties {
			if other == self {
				continue
			}
			if l, ok := links[[2]party.ID{self, other}]; ok {
				peers[other] = pipeRW{r: l.b, w: l.a}
			} else {
				l := links[[2]party.ID{other, self}]
				peers[other] = pipeRW{r: l.a, w: l.b}
			}
		}
		ch, err := unicast.NewChannel(self, unicast.Stream, preKey, peers)
		require.NoError(t, err)
		channels[self] = ch
	}

	bcNet := broadcast.NewMemNetwork(parties)
	return channels, bcNet
}

func buildDomain(t *testing.T) *group.Domain {
	t.Helper()
	d, err := group.NewDomain(64)
	require.NoError(t, err)
	return d
}

// testH derives a second Pedersen generator independent enough for test
// purposes: a random power of g. Production callers derive h verifiably
// (e.g. via commit.SetupGeneratorsPublicCoin or an EDCF-driven coin).
func testH(t *testing.T, d *group.Domain) *group.Element {
	t.Helper()
	sigma, err := group.RandomScalar(d, bign.VeryStrong)
	require.NoError(t, err)
	return group.Generator(d).ExpSecret(sigma)
}

func TestRVSSHappyPathProducesConsistentSecret(t *testing.T) {
	parties := party.IDSlice{"p0", "p1", "p2", "p3"}
	d := buildDomain(t)
	h := testH(t, d)
	ucChannels, bcNet := buildFleet(t, parties)

	results := make(map[party.ID]*vss.Result, len(parties))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, self := range parties {
		wg.Add(1)
		go func(self party.ID) {
			defer wg.Done()
			bc, err := broadcast.New(self, parties, 1, d.Q, bcNet.For(self), nil)
			require.NoError(t, err)
			res, _, err := vss.Run(vss.Params{
				Domain: d, Self: self, All: parties, T: 1, Degree: 1,
				H: h,
				BC: bc, UC: ucChannels[self], Zero: false,
				Policy: bign.VeryStrong, Timeout: 5 * time.Second,
			})
			require.NoError(t, err)
			mu.Lock()
			results[self] = res
			mu.Unlock()
		}(self)
	}
	wg.Wait()

	require.Len(t, results["p0"].QUAL, 4)

	all := parties.Sort()
	lambdasA := polynomial.LagrangeAtZero(d, all, party.IDSlice{"p0", "p1"})
	secretA := lambdasA["p0"].Mul(results["p0"].X).Add(lambdasA["p1"].Mul(results["p1"].X))

	lambdasB := polynomial.LagrangeAtZero(d, all, party.IDSlice{"p2", "p3"})
	secretB := lambdasB["p2"].Mul(results["p2"].X).Add(lambdasB["p3"].Mul(results["p3"].X))

	require.True(t, secretA.Equal(secretB))
}

func TestZVSSReconstructsToZero(t *testing.T) {
	parties := party.IDSlice{"p0", "p1", "p2", "p3"}
	d := buildDomain(t)
	h := testH(t, d)
	ucChannels, bcNet := buildFleet(t, parties)

	results := make(map[party.ID]*vss.Result, len(parties))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, self := range parties {
		wg.Add(1)
		go func(self party.ID) {
			defer wg.Done()
			bc, err := broadcast.New(self, parties, 1, d.Q, bcNet.For(self), nil)
			require.NoError(t, err)
			res, _, err := vss.RunZVSS(vss.Params{
				Domain: d, Self: self, All: parties, T: 1, Degree: 1,
				H: h,
				BC: bc, UC: ucChannels[self],
				Policy: bign.VeryStrong, Timeout: 5 * time.Second,
			})
			require.NoError(t, err)
			mu.Lock()
			results[self] = res
			mu.Unlock()
		}(self)
	}
	wg.Wait()

	all := parties.Sort()
	lambdas := polynomial.LagrangeAtZero(d, all, party.IDSlice{"p0", "p1"})
	secret := lambdas["p0"].Mul(results["p0"].X).Add(lambdas["p1"].Mul(results["p1"].X))
	require.True(t, secret.IsZero())
}

// TestVerifyShareDetectsCorruption checks a dealer's share, corrupted
// after the fact, fails VerifyShare against the dealer's own commitments.
func TestVerifyShareDetectsCorruption(t *testing.T) {
	d := buildDomain(t)
	h := group.Generator(d).ExpSecret(group.ScalarFromUint64(d, 7))
	dealer, err := vss.NewDealer(d, 1, false, bign.VeryStrong)
	require.NoError(t, err)

	parties := party.IDSlice{"p0", "p1", "p2", "p3"}.Sort()
	commitments := dealer.Commitments(h)

	share := dealer.ShareFor(parties, "p2")
	require.True(t, vss.VerifyShare(d, h, commitments, parties, "p2", share))

	corrupted := vss.Share{S: share.S.Add(group.ScalarOne(d)), Sp: share.Sp}
	require.False(t, vss.VerifyShare(d, h, commitments, parties, "p2", corrupted))
}
