package broadcast_test

import (
	"math/big"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/libtmcg/tmcg/broadcast"
	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/party"
)

func TestBroadcast(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "broadcast suite")
}

var testQ = big.NewInt(1000000007)

func buildNetwork(parties party.IDSlice, t int) map[party.ID]*broadcast.Channel {
	net := broadcast.NewMemNetwork(parties)
	channels := make(map[party.ID]*broadcast.Channel, len(parties))
	for _, p := range parties {
		ch, err := broadcast.New(p, parties, t, testQ, net.For(p), nil)
		Expect(err).NotTo(HaveOccurred())
		channels[p] = ch
	}
	return channels
}

var _ = Describe("Reliable Broadcast", func() {
	It("delivers a broadcast value to every correct party (n=4,t=1)", func() {
		parties := party.IDSlice{"p0", "p1", "p2", "p3"}
		channels := buildNetwork(parties, 1)

		errCh := make(chan error, 1)
		go func() { errCh <- channels["p0"].Broadcast(big.NewInt(42), 2*time.Second) }()

		for _, id := range []party.ID{"p1", "p2", "p3"} {
			from, _, val, err := channels[id].Deliver(2 * time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(from).To(Equal(party.ID("p0")))
			Expect(val.Int64()).To(Equal(int64(42)))
		}
		Expect(<-errCh).NotTo(HaveOccurred())
	})

	It("still delivers when one of four parties is silent (scenario: silent fault)", func() {
		parties := party.IDSlice{"p0", "p1", "p2", "p3"}
		channels := buildNetwork(parties, 1)
		// p3 never calls Deliver: its inbox simply backs up, modelling a
		// silent/crashed party. The other three must still agree.

		go func() { _ = channels["p0"].Broadcast(big.NewInt(42), 2*time.Second) }()

		for _, id := range []party.ID{"p1", "p2"} {
			from, _, val, err := channels[id].Deliver(2 * time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(from).To(Equal(party.ID("p0")))
			Expect(val.Int64()).To(Equal(int64(42)))
		}
	})

	It("preserves FIFO order per sender across interleaved broadcasts", func() {
		parties := party.IDSlice{"p0", "p1", "p2", "p3"}
		channels := buildNetwork(parties, 1)

		go func() {
			_ = channels["p0"].Broadcast(big.NewInt(1), 2*time.Second)
			_ = channels["p0"].Broadcast(big.NewInt(2), 2*time.Second)
			_ = channels["p0"].Broadcast(big.NewInt(3), 2*time.Second)
		}()

		var got []int64
		for i := 0; i < 3; i++ {
			_, _, val, err := channels["p1"].Deliver(2 * time.Second)
			Expect(err).NotTo(HaveOccurred())
			got = append(got, val.Int64())
		}
		Expect(got).To(Equal([]int64{1, 2, 3}))
	})

	It("rejects a stacked tag space without a matching setID", func() {
		parties := party.IDSlice{"p0", "p1"}
		channels := buildNetwork(parties, 0)
		err := channels["p0"].UnsetID()
		Expect(err).To(HaveOccurred())
		Expect(errs.Is(err, errs.ProtocolViolation)).To(BeTrue())
	})

	It("isolates nested tag spaces opened by setID from the outer one", func() {
		parties := party.IDSlice{"p0", "p1"}
		channels := buildNetwork(parties, 0)

		channels["p0"].SetID("sub-protocol")
		channels["p1"].SetID("sub-protocol")

		go func() { _ = channels["p0"].Broadcast(big.NewInt(7), 2*time.Second) }()
		_, _, val, err := channels["p1"].Deliver(2 * time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(val.Int64()).To(Equal(int64(7)))

		Expect(channels["p0"].UnsetID()).To(Succeed())
		Expect(channels["p1"].UnsetID()).To(Succeed())
	})
})
