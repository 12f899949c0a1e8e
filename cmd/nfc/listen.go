package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nfcollect/nfcollect/pkg/nfcollect/app"
	"github.com/nfcollect/nfcollect/pkg/nfcollect/config"
	"github.com/nfcollect/nfcollect/pkg/nfcollect/logging"
)

func init() {
	RootCmd.AddCommand(newListenCmd())
}

func newListenCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Receive NetFlow v9 datagrams and dispatch them to sinks",
		Example: `  nfc listen --bind 127.0.0.1:9999 --sink 'postgres://nfc@db/netlog?workers=2&batch_size=1000'
  nfc listen --sink file:///var/log/nat.tsv --sink mirror://198.51.100.1:2055`,
		Args: cobra.NoArgs,
	}
	flags := config.BindFlags(cmd.Flags())
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("loglevel") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("logfmt") {
			cfg.LogFmt = logFmt
		}
		flags.Apply(&cfg)
		logger := logrus.StandardLogger()
		if err := logging.Configure(logger, cfg.LogLevel, cfg.LogFmt); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		return a.Run(ctx)
	}
	return cmd
}
