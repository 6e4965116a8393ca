package protocol_test

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
	"github.com/libtmcg/tmcg/protocol"
	"github.com/libtmcg/tmcg/transport/unicast"
	"github.com/libtmcg/tmcg/vtmf"
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

// TestPartyVTMFAndDKGAndSign runs a two-party, t=0 round of VTMF joint
// key generation, a mask/decrypt round trip under the joint key, a DKG
// run, and a threshold signature.
func TestPartyVTMFAndDKGAndSign(t *testing.T) {
	parties := party.IDSlice{"p0", "p1"}
	d, err := group.NewDomain(64)
	require.NoError(t, err)
	h := group.Generator(d).ExpSecret(group.ScalarFromUint64(d, 11))
	ucChannels, bcNet := buildFleet(t, parties)

	ps := make(map[party.ID]*protocol.Party, len(parties))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, self := range parties {
		wg.Add(1)
		go func(self party.ID) {
			defer wg.Done()
			bc, err := broadcast.New(self, parties, 0, d.Q, bcNet.For(self), nil)
			require.NoError(t, err)
			pt, err := protocol.NewParty(d, self, parties, 0, bc, ucChannels[self], bign.VeryStrong, 5*time.Second)
			require.NoError(t, err)
			require.NoError(t, pt.ExchangeVTMFKeys())
			require.NoError(t, pt.RunDKG(h))
			mu.Lock()
			ps[self] = pt
			mu.Unlock()
		}(self)
	}
	wg.Wait()

	p0, p1 := ps["p0"], ps["p1"]
	require.True(t, p0.VTMF.PublicKey().Equal(p1.VTMF.PublicKey()))
	require.Equal(t, 0, p0.DKG.Y.Cmp(p1.DKG.Y))

	msg, err := vtmf.EncodeMessage(d, 42)
	require.NoError(t, err)
	ct, r, err := p0.VTMF.Mask(msg)
	require.NoError(t, err)
	proof, err := p0.VTMF.ProveMask(msg, ct, r)
	require.NoError(t, err)
	require.True(t, p1.VTMF.VerifyMask(msg, ct, proof))

	share0, err := p0.VTMF.ProveDecrypt(ct.C1)
	require.NoError(t, err)
	share1, err := p1.VTMF.ProveDecrypt(ct.C1)
	require.NoError(t, err)

	acc := vtmf.VerifyInitialize(d, ct.C1, share0)
	require.NoError(t, acc.VerifyUpdate("p1", share1))
	recovered, err := acc.VerifyFinalize(ct.C2)
	require.NoError(t, err)
	require.True(t, recovered.Equal(msg))

	hm := group.ScalarFromUint64(d, 777)
	var sigs sync.Map
	wg.Add(len(parties))
	for _, self := range parties {
		go func(self party.ID) {
			defer wg.Done()
			sig, err := ps[self].Sign(hm)
			require.NoError(t, err)
			sigs.Store(self, sig)
		}(self)
	}
	wg.Wait()

	s0v, _ := sigs.Load(party.ID("p0"))
	s1v, _ := sigs.Load(party.ID("p1"))
	s0 := s0v.(*dkg.Signature)
	s1 := s1v.(*dkg.Signature)
	require.NotEqual(t, 0, s0.R.Cmp(big.NewInt(0)))
	require.Equal(t, 0, s0.R.Cmp(s1.R))
	require.Equal(t, 0, s0.S.Cmp(s1.S))
}
