package main

import (
	"fmt"
	"sync"

	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/protocol"
	"github.com/libtmcg/tmcg/vtmf"
	"github.com/spf13/cobra"
)

func runMask(cmd *cobra.Command, args []string) error {
	f, err := newFleet(partiesFlag, thresholdFlag, 256)
	if err != nil {
		return err
	}

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

	dealer := parties[f.Parties[0]]
	msg, err := vtmf.EncodeMessage(f.Domain, uint64(sizeFlag))
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	ct, r, err := dealer.VTMF.Mask(msg)
	if err != nil {
		return fmt.Errorf("masking message: %w", err)
	}
	proof, err := dealer.VTMF.ProveMask(msg, ct, r)
	if err != nil {
		return fmt.Errorf("proving mask: %w", err)
	}
	for _, self := range f.Parties {
		if !parties[self].VTMF.VerifyMask(msg, ct, proof) {
			return fmt.Errorf("%s rejected the masking proof", self)
		}
	}
	fmt.Printf("Masked value %d under the joint key; every party verified the masking proof.\n", sizeFlag)

	shares := make(map[party.ID]vtmf.DecryptShare, partiesFlag)
	for _, self := range f.Parties {
		share, err := parties[self].VTMF.ProveDecrypt(ct.C1)
		if err != nil {
			return fmt.Errorf("%s proving decrypt share: %w", self, err)
		}
		shares[self] = share
	}

	acc := vtmf.VerifyInitialize(f.Domain, ct.C1, shares[f.Parties[0]])
	for _, self := range f.Parties[1:] {
		if err := acc.VerifyUpdate(self, shares[self]); err != nil {
			return fmt.Errorf("verifying %s's decrypt share: %w", self, err)
		}
	}
	recovered, err := acc.VerifyFinalize(ct.C2)
	if err != nil {
		return fmt.Errorf("finalizing decryption: %w", err)
	}
	if !recovered.Equal(msg) {
		return fmt.Errorf("recovered plaintext does not match original message")
	}
	fmt.Println("Threshold-decrypted the ciphertext and recovered the original message.")
	return nil
}
