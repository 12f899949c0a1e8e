package utils

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"
)

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// PcapStats counts the packets seen by a replay.
type PcapStats struct {
	Packets   int
	Datagrams int
	Skipped   int
}

// PcapReplayer feeds the UDP datagrams of a capture file to a callback as
// if they had been received live. Datagrams are filtered on DstPort when it
// is set.
type PcapReplayer struct {
	DstPort uint16
	Logger  logrus.FieldLogger
}

type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

func openCapture(r io.Reader) (packetReader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("reading capture header: %w", err)
	}
	if bytes.Equal(magic, pcapngMagic) {
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(br)
}

func endpoints(packet gopacket.Packet, udp *layers.UDP) (src, dst netip.AddrPort, ok bool) {
	var srcAddr, dstAddr netip.Addr
	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		srcAddr, _ = netip.AddrFromSlice(ip.SrcIP.To4())
		dstAddr, _ = netip.AddrFromSlice(ip.DstIP.To4())
	case *layers.IPv6:
		srcAddr, _ = netip.AddrFromSlice(ip.SrcIP)
		dstAddr, _ = netip.AddrFromSlice(ip.DstIP)
	default:
		return src, dst, false
	}
	return netip.AddrPortFrom(srcAddr, uint16(udp.SrcPort)), netip.AddrPortFrom(dstAddr, uint16(udp.DstPort)), true
}

// Replay reads the capture from r until EOF or until ctx is done.
func (p *PcapReplayer) Replay(ctx context.Context, r io.Reader, cb ReceiverCallback) (PcapStats, error) {
	var stats PcapStats
	logger := p.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	reader, err := openCapture(r)
	if err != nil {
		return stats, err
	}
	source := gopacket.NewPacketSource(reader, reader.LinkType())
	source.NoCopy = true

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		packet, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			return stats, nil
		} else if err != nil {
			return stats, fmt.Errorf("reading packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			stats.Skipped++
			continue
		}
		src, dst, ok := endpoints(packet, udp)
		if !ok || (p.DstPort != 0 && dst.Port() != p.DstPort) {
			stats.Skipped++
			continue
		}
		stats.Datagrams++

		msg := &Message{
			Src:      src,
			Dst:      dst,
			Payload:  udp.Payload,
			Received: packet.Metadata().Timestamp,
		}
		if err := cb(msg); err != nil {
			logger.WithError(err).WithField("packet", stats.Packets).Warn("error processing datagram")
		}
	}
}

// ReplayFile opens path and replays it.
func (p *PcapReplayer) ReplayFile(ctx context.Context, path string, cb ReceiverCallback) (PcapStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return PcapStats{}, err
	}
	defer f.Close()
	return p.Replay(ctx, f, cb)
}
