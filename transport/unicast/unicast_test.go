package unicast_test

import (
	"io"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/transport/unicast"
)

// pair builds two channels, A and B, connected over an in-memory pipe, so
// tests never touch the network.
func pair(t *testing.T) (*unicast.Channel, *unicast.Channel) {
	t.Helper()
	connAtoB, connBtoA := net.Pipe()
	preKey := []byte("shared-pre-key-for-testing-only")

	a, err := unicast.NewChannel("A", unicast.Stream, preKey, map[party.ID]io.ReadWriter{
		"B": pipeRW{r: connBtoA, w: connAtoB},
	})
	require.NoError(t, err)
	b, err := unicast.NewChannel("B", unicast.Stream, preKey, map[party.ID]io.ReadWriter{
		"A": pipeRW{r: connAtoB, w: connBtoA},
	})
	require.NoError(t, err)
	return a, b
}

type pipeRW struct {
	r net.Conn
	w net.Conn
}

func (p pipeRW) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p pipeRW) Write(b []byte) (int, error) { return p.w.Write(b) }

func TestSendReceiveRoundTrip(t *testing.T) {
	a, b := pair(t)
	go func() {
		_ = a.Send(time.Second, "B", big.NewInt(42), 32)
	}()
	v, from, err := b.Receive(2*time.Second, unicast.Direct("A"), 32)
	require.NoError(t, err)
	require.Equal(t, party.ID("A"), from)
	require.Equal(t, int64(42), v.Int64())
}

func TestResetWithoutPeerCausesProtocolViolation(t *testing.T) {
	a, b := pair(t)

	go func() { _ = a.Send(time.Second, "B", big.NewInt(1), 32) }()
	_, _, err := b.Receive(time.Second, unicast.Direct("A"), 32)
	require.NoError(t, err)

	// A resets its outbound sequence without B resetting its inbound
	// sequence.
	require.NoError(t, a.Reset("B", unicast.Outbound))

	go func() { _ = a.Send(time.Second, "B", big.NewInt(2), 32) }()
	_, _, err = b.Receive(time.Second, unicast.Direct("A"), 32)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.ProtocolViolation))
}
