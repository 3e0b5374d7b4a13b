// Package main is the entry point of the SR Linux BFD agent.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFiles []string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "srl-bfd-agent",
		Short: "BFD session manager for SR Linux",
		Long: `srl-bfd-agent registers with the SR Linux NDK, turns the BFD
configuration into sessions and profiles through validated transactions
and publishes the resulting session state as telemetry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Read settings from these .env files")

	root.AddCommand(newCheckCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
