package main

import (
	"os"

	"github.com/sirupsen/logrus"

	// stores and senders
	_ "github.com/nfcollect/nfcollect/transport/clickhouse"
	_ "github.com/nfcollect/nfcollect/transport/file"
	_ "github.com/nfcollect/nfcollect/transport/kafka"
	_ "github.com/nfcollect/nfcollect/transport/postgres"
	_ "github.com/nfcollect/nfcollect/transport/udp"

	// inspection formats
	_ "github.com/nfcollect/nfcollect/format/json"
	_ "github.com/nfcollect/nfcollect/format/text"
)

func main() {
	if err := RootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("nfc failed")
		os.Exit(1)
	}
}
