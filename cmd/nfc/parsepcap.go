package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nfcollect/nfcollect/decoders/netflow"
	"github.com/nfcollect/nfcollect/format"
	"github.com/nfcollect/nfcollect/pkg/nfcollect/builder"
	"github.com/nfcollect/nfcollect/producer/nel"
	"github.com/nfcollect/nfcollect/utils"
)

type parsePcapOptions struct {
	Format  string
	DstPort uint16
	NEL     bool
}

func init() {
	RootCmd.AddCommand(newParsePcapCmd())
}

func newParsePcapCmd() *cobra.Command {
	var opts parsePcapOptions
	cmd := &cobra.Command{
		Use:   "parse-pcap FILE",
		Short: "Decode the NetFlow v9 datagrams of a capture file",
		Long: `Replay a pcap or pcapng capture through the NetFlow v9 decoder and print
every decoded record prefixed by the number of the packet carrying it.
Templates are learned from the capture, keyed by the UDP source.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return parsePcap(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.Format, "format", "text",
		fmt.Sprintf("output format (available: %s)", strings.Join(format.GetFormats(), ", ")))
	cmd.Flags().Uint16Var(&opts.DstPort, "port", 0, "only decode datagrams sent to this UDP port")
	cmd.Flags().BoolVar(&opts.NEL, "nel", false, "print normalized NAT creation events instead of raw records")
	return cmd
}

func parsePcap(cmd *cobra.Command, path string, opts parsePcapOptions) error {
	formatter, err := builder.BuildFormatter(opts.Format)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	logger := logrus.StandardLogger()
	decoder := netflow.NewDecoder(9, nil)
	replayer := &utils.PcapReplayer{DstPort: opts.DstPort, Logger: logger}

	var packet, records int
	stats, err := replayer.ReplayFile(cmd.Context(), path, func(msg *utils.Message) error {
		packet++
		it := decoder.Parse(msg.Payload, msg.Exporter())
		for it.Next() {
			var data any = it.Record()
			if opts.NEL {
				ev, outcome := nel.Produce(it.Record())
				if outcome != nel.Retained {
					continue
				}
				data = ev
			}
			if err := printRecord(out, formatter, packet, data); err != nil {
				return err
			}
			records++
		}
		if it.Mismatched() {
			return fmt.Errorf("version %d is not NetFlow v9", it.Header().Version)
		}
		return it.Err()
	})
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"packets":   stats.Packets,
		"datagrams": stats.Datagrams,
		"skipped":   stats.Skipped,
		"records":   records,
		"templates": decoder.Templates().Len(),
	}).Info("capture decoded")
	return nil
}

func printRecord(w io.Writer, formatter *format.Format, packet int, data any) error {
	_, text, err := formatter.Format(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%d\t%s\n", packet, text)
	return err
}
