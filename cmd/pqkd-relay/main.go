// Package main is the pqkd-relay CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pqkd-relay",
	Short: "PQKD trusted-node relay daemon",
	Long: `pqkd-relay hosts one or more ETSI GS QKD 014 endpoints and relays
quantum-distributed key material across a hypercube overlay of trusted
relay nodes.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
