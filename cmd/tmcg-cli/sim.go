package main

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/libtmcg/tmcg/broadcast"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/transport/unicast"
)

const simPreKey = "tmcg-cli-demo-pre-shared-key!!!!"

type pipeRW struct{ r, w net.Conn }

func (p pipeRW) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p pipeRW) Write(b []byte) (int, error) { return p.w.Write(b) }

// fleet is an in-process n-party simulation: a full unicast mesh over
// net.Pipe plus a shared in-memory broadcast network, the same rig
// cmd/threshold-cli's simulate subcommand drives for its local runs.
type fleet struct {
	Domain    *group.Domain
	Parties   party.IDSlice
	T         int
	Timeout   time.Duration
	unicast   map[party.ID]*unicast.Channel
	broadcast *broadcast.MemNetwork
}

func demoParties(n int) party.IDSlice {
	ids := make(party.IDSlice, n)
	for i := 0; i < n; i++ {
		ids[i] = party.ID(fmt.Sprintf("party-%d", i+1))
	}
	return ids
}

func newFleet(n, t, bits int) (*fleet, error) {
	d, err := group.NewDomain(bits)
	if err != nil {
		return nil, fmt.Errorf("generating group domain: %w", err)
	}
	parties := demoParties(n)

	type link struct{ a, b net.Conn }
	links := map[[2]party.ID]link{}
	for i, a := range parties {
		for _, b := range parties[i+1:] {
			atob, btoa := net.Pipe()
			links[[2]party.ID{a, b}] = link{a: atob, b: btoa}
		}
	}

	channels := make(map[party.ID]*unicast.Channel, n)
	for _, self := range parties {
		peers := make(map[party.ID]io.ReadWriter, n-1)
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
		ch, err := unicast.NewChannel(self, unicast.Stream, []byte(simPreKey), peers)
		if err != nil {
			return nil, fmt.Errorf("building unicast channel for %s: %w", self, err)
		}
		channels[self] = ch
	}

	return &fleet{
		Domain: d, Parties: parties, T: t, Timeout: 10 * time.Second,
		unicast: channels, broadcast: broadcast.NewMemNetwork(parties),
	}, nil
}

func (f *fleet) broadcastChannel(self party.ID) (*broadcast.Channel, error) {
	return broadcast.New(self, f.Parties, f.T, f.Domain.Q, f.broadcast.For(self), nil)
}
