// Package utils provides the datagram pipeline: receivers, the dispatcher
// and the sinks it fans out to.
package utils

import (
	"context"
	"net/netip"
	"time"

	"github.com/nfcollect/nfcollect/decoders/netflow"
)

// Message is a received datagram. Sinks must not modify the payload.
type Message struct {
	Src      netip.AddrPort
	Dst      netip.AddrPort
	Payload  []byte
	Received time.Time
}

// Exporter returns the template namespace of the sender.
func (m *Message) Exporter() netflow.ExporterKey {
	return netflow.ExporterKeyFromAddrPort(m.Src)
}

// Sink consumes every datagram handed to the Dispatcher.
type Sink interface {
	Name() string
	OnDatagram(msg *Message) error
}

// StatsReporter is implemented by sinks emitting periodic counters. The
// counters are reset after each report.
type StatsReporter interface {
	ReportStats(interval time.Duration)
}

// Flusher is implemented by sinks holding buffered data.
type Flusher interface {
	Flush(ctx context.Context) error
}
