package main

import (
	"fmt"
	"sync"

	"github.com/libtmcg/tmcg/dkg"
	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/protocol"
	"github.com/spf13/cobra"
)

func runKeygen(cmd *cobra.Command, args []string) error {
	if thresholdFlag >= partiesFlag {
		return fmt.Errorf("threshold t=%d must be below parties n=%d", thresholdFlag, partiesFlag)
	}

	f, err := newFleet(partiesFlag, thresholdFlag, 256)
	if err != nil {
		return err
	}
	h := group.Generator(f.Domain).ExpSecret(group.ScalarFromUint64(f.Domain, 9973))

	fmt.Printf("Running VTMF key exchange and DKG for n=%d, t=%d...\n", partiesFlag, thresholdFlag)

	parties := make(map[party.ID]*protocol.Party, partiesFlag)
	var mu sync.Mutex
	var wg sync.WaitGroup
	errs := make(chan error, partiesFlag)
	for _, self := range f.Parties {
		wg.Add(1)
		go func(self party.ID) {
			defer wg.Done()
			bc, err := f.broadcastChannel(self)
			if err != nil {
				errs <- err
				return
			}
			p, err := protocol.NewParty(f.Domain, self, f.Parties, f.T, bc, f.unicast[self], bign.VeryStrong, f.Timeout)
			if err != nil {
				errs <- err
				return
			}
			if err := p.ExchangeVTMFKeys(); err != nil {
				errs <- err
				return
			}
			if err := p.RunDKG(h); err != nil {
				errs <- err
				return
			}
			mu.Lock()
			parties[self] = p
			mu.Unlock()
		}(self)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}

	var first *dkg.Config
	for _, self := range f.Parties {
		cfg := parties[self].DKG
		if first == nil {
			first = cfg
		}
		fmt.Printf("  %s: QUAL=%v verification key = %x\n", self, cfg.QUAL, cfg.VerificationKeys[self])
	}
	fmt.Printf("Joint public key y = %x\n", first.Y)
	return nil
}
