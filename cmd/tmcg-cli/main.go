package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	partiesFlag   int
	thresholdFlag int
	sizeFlag      int
	messageFlag   string

	rootCmd = &cobra.Command{
		Use:   "tmcg-cli",
		Short: "CLI demo for the VTMF/DKG/shuffle threshold cryptography stack",
		Long: `A demo CLI driving an in-process multi-party simulation of VTMF
joint key generation, Feldman-exposure DKG, and the Groth shuffle
proof, over a safe-prime quadratic residue group.`,
	}

	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Run joint VTMF key generation and Feldman-exposure DKG",
		RunE:  runKeygen,
	}

	maskCmd = &cobra.Command{
		Use:   "mask",
		Short: "Mask a message under the joint VTMF key and threshold-decrypt it back",
		RunE:  runMask,
	}

	shuffleCmd = &cobra.Command{
		Use:   "shuffle",
		Short: "Run a Groth Shuffle of Known Content proof over a small vector",
		RunE:  runShuffle,
	}

	rbcDemoCmd = &cobra.Command{
		Use:   "rbc-demo",
		Short: "Run a reliable broadcast round and print delivery order",
		RunE:  runRBCDemo,
	}
)

func init() {
	rootCmd.PersistentFlags().IntVarP(&partiesFlag, "parties", "n", 3, "total number of parties")
	rootCmd.PersistentFlags().IntVarP(&thresholdFlag, "threshold", "t", 1, "corruption threshold t")

	maskCmd.Flags().IntVar(&sizeFlag, "value", 42, "plaintext value to mask (small non-negative integer)")
	shuffleCmd.Flags().StringVar(&messageFlag, "values", "7,11,13", "comma-separated multiset to shuffle")

	rootCmd.AddCommand(keygenCmd, maskCmd, shuffleCmd, rbcDemoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
