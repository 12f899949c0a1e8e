package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nfcollect/nfcollect/pkg/nfcollect/logging"
)

var (
	logLevel string
	logFmt   string
)

// RootCmd is the root for all commands
var RootCmd = &cobra.Command{
	Use:   "nfc",
	Short: "NetFlow v9 NAT event collector",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Configure(logrus.StandardLogger(), logLevel, logFmt)
	},
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "info", "Log level")
	RootCmd.PersistentFlags().StringVar(&logFmt, "logfmt", "normal", "Log formatter (normal or json)")
}
