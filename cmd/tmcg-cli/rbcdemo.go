package main

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/spf13/cobra"
)

// runRBCDemo has every party reliably broadcast its own index and prints
// the delivery order each party observed, demonstrating RBC's agreement
// property: every honest party delivers the same set of values regardless
// of local arrival order.
func runRBCDemo(cmd *cobra.Command, args []string) error {
	f, err := newFleet(partiesFlag, thresholdFlag, 256)
	if err != nil {
		return err
	}

	type delivery struct {
		from party.ID
		val  *big.Int
	}
	results := make(map[party.ID][]delivery, partiesFlag)
	var mu sync.Mutex
	var wg sync.WaitGroup
	errs := make(chan error, partiesFlag)

	for idx, self := range f.Parties {
		wg.Add(1)
		go func(self party.ID, idx int) {
			defer wg.Done()
			bc, err := f.broadcastChannel(self)
			if err != nil {
				errs <- err
				return
			}
			if err := bc.Broadcast(big.NewInt(int64(idx)), f.Timeout); err != nil {
				errs <- fmt.Errorf("%s: broadcasting: %w", self, err)
				return
			}
			own := []delivery{{from: self, val: big.NewInt(int64(idx))}}
			for range f.Parties[1:] {
				from, _, v, err := bc.Deliver(f.Timeout)
				if err != nil {
					errs <- fmt.Errorf("%s: delivering: %w", self, err)
					return
				}
				own = append(own, delivery{from: from, val: v})
			}
			mu.Lock()
			results[self] = own
			mu.Unlock()
		}(self, idx)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}

	for _, self := range f.Parties {
		fmt.Printf("%s delivered %d values: ", self, len(results[self]))
		for _, d := range results[self] {
			fmt.Printf("%s=%s ", d.from, d.val)
		}
		fmt.Println()
	}
	return nil
}
