package dkg_test

import (
	"io"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/libtmcg/tmcg/broadcast"
	"github.com/libtmcg/tmcg/dkg"
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/transport/unicast"
)

type pipeRW struct{ r, w net.Conn }

func (p pipeRW) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p pipeRW) Write(b []byte) (int, error) { return p.w.Write(b) }

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

	return channels, broadcast.NewMemNetwork(parties)
}

func buildDomain(t *testing.T) *group.Domain {
	t.Helper()
	d, err := group.NewDomain(64)
	require.NoError(t, err)
	return d
}

// TestTwoPartyDKGKeyCorrectness covers the simplest fully-honest DKG run:
// n=2, t=0, every party honest throughout.
func TestTwoPartyDKGKeyCorrectness(t *testing.T) {
	parties := party.IDSlice{"p0", "p1"}
	d := buildDomain(t)
	h := group.Generator(d).ExpSecret(group.ScalarFromUint64(d, 11))
	ucChannels, bcNet := buildFleet(t, parties)

	configs := make(map[party.ID]*dkg.Config, len(parties))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, self := range parties {
		wg.Add(1)
		go func(self party.ID) {
			defer wg.Done()
			bc, err := broadcast.New(self, parties, 0, d.Q, bcNet.For(self), nil)
			require.NoError(t, err)
			cfg, _, err := dkg.Run(dkg.Params{
				Domain: d, Self: self, All: parties, T: 0,
				H: h, BC: bc, UC: ucChannels[self],
				Policy: bign.VeryStrong, Timeout: 5 * time.Second,
			})
			require.NoError(t, err)
			mu.Lock()
			configs[self] = cfg
			mu.Unlock()
		}(self)
	}
	wg.Wait()

	c0, c1 := configs["p0"], configs["p1"]
	require.ElementsMatch(t, party.IDSlice{"p0", "p1"}, c0.QUAL)
	require.Equal(t, 0, c0.Y.Cmp(c1.Y))

	for _, self := range parties {
		v := group.NewElement(d, configs[self].VerificationKeys[self])
		x := configs[self].Xi
		require.True(t, group.Generator(d).ExpSecret(x).Equal(v), "g^x_i must equal v_i for %s", self)
	}

	yCombined := group.Identity(d)
	for _, self := range parties {
		yCombined = yCombined.Mul(group.NewElement(d, c0.YShares[self]))
	}
	require.True(t, yCombined.Equal(group.NewElement(d, c0.Y)))
}

// TestConfigMarshalRoundTrip exercises the persisted-state CBOR layer,
// including the public/zeroed variant used by PublishVerificationKeys-style
// disclosure.
func TestConfigMarshalRoundTrip(t *testing.T) {
	parties := party.IDSlice{"p0", "p1"}
	d := buildDomain(t)
	h := group.Generator(d).ExpSecret(group.ScalarFromUint64(d, 11))
	ucChannels, bcNet := buildFleet(t, parties)

	configs := make(map[party.ID]*dkg.Config, len(parties))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, self := range parties {
		wg.Add(1)
		go func(self party.ID) {
			defer wg.Done()
			bc, err := broadcast.New(self, parties, 0, d.Q, bcNet.For(self), nil)
			require.NoError(t, err)
			cfg, _, err := dkg.Run(dkg.Params{
				Domain: d, Self: self, All: parties, T: 0,
				H: h, BC: bc, UC: ucChannels[self],
				Policy: bign.VeryStrong, Timeout: 5 * time.Second,
			})
			require.NoError(t, err)
			mu.Lock()
			configs[self] = cfg
			mu.Unlock()
		}(self)
	}
	wg.Wait()

	c0 := configs["p0"]

	secretBlob, err := c0.Marshal(false)
	require.NoError(t, err)
	decoded, err := dkg.UnmarshalConfig(secretBlob)
	require.NoError(t, err)
	require.Equal(t, 0, decoded.Xi.Big().Cmp(c0.Xi.Big()))

	publicBlob, err := c0.Marshal(true)
	require.NoError(t, err)
	decodedPublic, err := dkg.UnmarshalConfig(publicBlob)
	require.NoError(t, err)
	require.Nil(t, decodedPublic.Xi)
	require.Equal(t, 0, decodedPublic.Y.Cmp(c0.Y))
}

// TestRefreshPreservesSecretAndTracksVerificationKeys runs an initial DKG,
// then a proactive Refresh: the joint secret and public key must survive
// unchanged, but every party's own verification key must move along with
// its refreshed share, not stay pinned to the pre-refresh value.
func TestRefreshPreservesSecretAndTracksVerificationKeys(t *testing.T) {
	parties := party.IDSlice{"p0", "p1"}
	d := buildDomain(t)
	h := group.Generator(d).ExpSecret(group.ScalarFromUint64(d, 11))
	ucChannels, bcNet := buildFleet(t, parties)

	configs := make(map[party.ID]*dkg.Config, len(parties))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, self := range parties {
		wg.Add(1)
		go func(self party.ID) {
			defer wg.Done()
			bc, err := broadcast.New(self, parties, 0, d.Q, bcNet.For(self), nil)
			require.NoError(t, err)
			cfg, _, err := dkg.Run(dkg.Params{
				Domain: d, Self: self, All: parties, T: 0,
				H: h, BC: bc, UC: ucChannels[self],
				Policy: bign.VeryStrong, Timeout: 5 * time.Second,
			})
			require.NoError(t, err)
			mu.Lock()
			configs[self] = cfg
			mu.Unlock()
		}(self)
	}
	wg.Wait()

	// A fresh fleet for the refresh round: reusing the first round's
	// channels risks stray in-flight RBC messages colliding with the
	// second round's tag space.
	refreshUC, refreshBCNet := buildFleet(t, parties)
	refreshed := make(map[party.ID]*dkg.Config, len(parties))
	for _, self := range parties {
		wg.Add(1)
		go func(self party.ID) {
			defer wg.Done()
			bc, err := broadcast.New(self, parties, 0, d.Q, refreshBCNet.For(self), nil)
			require.NoError(t, err)
			cfg, _, err := dkg.Refresh(dkg.Params{
				Domain: d, Self: self, All: parties, T: 0,
				H: h, BC: bc, UC: refreshUC[self],
				Policy: bign.VeryStrong, Timeout: 5 * time.Second,
			}, configs[self])
			require.NoError(t, err)
			mu.Lock()
			refreshed[self] = cfg
			mu.Unlock()
		}(self)
	}
	wg.Wait()

	r0, r1 := refreshed["p0"], refreshed["p1"]
	require.Equal(t, 0, r0.Y.Cmp(configs["p0"].Y))

	origSum := new(big.Int).Add(configs["p0"].Xi.Big(), configs["p1"].Xi.Big())
	origSum.Mod(origSum, d.Q)
	refreshedSum := new(big.Int).Add(r0.Xi.Big(), r1.Xi.Big())
	refreshedSum.Mod(refreshedSum, d.Q)
	require.Equal(t, 0, origSum.Cmp(refreshedSum))

	for _, self := range parties {
		require.NotEqual(t, 0, r0.Xi.Big().Cmp(big.NewInt(0)))
		v := group.NewElement(d, refreshed[self].VerificationKeys[self])
		x := refreshed[self].Xi
		require.True(t, group.Generator(d).ExpSecret(x).Equal(v), "g^x_i must equal refreshed v_i for %s", self)
	}
}
