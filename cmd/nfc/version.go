package main

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/nfcollect/nfcollect/transport"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func init() {
	RootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.Printf("nfc %s\n", Version)
		cmd.Printf("  Built with: %s\n", runtime.Version())
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
			cmd.Printf("  Module version: %s\n", info.Main.Version)
		}
		cmd.Printf("  Stores: %v\n", transport.GetStores())
		cmd.Printf("  Senders: %v\n", transport.GetSenders())
		return nil
	},
}
