// Package nel extracts NAT event logging records from decoded NetFlow
// records and normalizes them into rows for storage.
package nel

import (
	"net/netip"

	"github.com/nfcollect/nfcollect/decoders/netflow"
)

// NAT event values as exported by the ASR1k NEL and Cisco NSEL exporters.
const (
	NATEventInvalid       uint8 = 0
	NATEventCreate        uint8 = 1
	NATEventDelete        uint8 = 2
	NATEventPoolExhausted uint8 = 3
)

// NATPayload holds the NAT specific part of a flow record.
type NATPayload struct {
	Event        uint8
	XlateSrcAddr netip.Addr
	XlateSrcPort uint16
	// EventTimeMs is the event timestamp in milliseconds since the epoch.
	// It is only meaningful when HasEventTime is set.
	EventTimeMs  uint64
	HasEventTime bool
}

// Complete reports whether the payload carries everything a row needs.
func (n *NATPayload) Complete() bool {
	return n.XlateSrcAddr.IsValid() && n.HasEventTime
}

// Flow is the part of a record the collector cares about. NAT is nil when
// the record carries no NAT event field.
type Flow struct {
	SrcAddr  netip.Addr
	DstAddr  netip.Addr
	DstPort  uint16
	Protocol uint8
	NAT      *NATPayload
}

func addrOf(rec netflow.FlowRecord, id4, id6 uint16) (netip.Addr, bool) {
	if v, ok := rec.GetByID(id4); ok {
		switch {
		case v.Kind == netflow.KindUint:
			u := uint32(v.Uint)
			return netip.AddrFrom4([4]byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}), true
		case len(v.Bytes) == 4:
			return netip.AddrFrom4([4]byte(v.Bytes)), true
		}
	}
	if b, ok := rec.Bytes(id6); ok && len(b) == 16 {
		return netip.AddrFrom16([16]byte(b)), true
	}
	return netip.Addr{}, false
}

func eventTimeMs(rec netflow.FlowRecord) (uint64, bool) {
	if v, ok := rec.Uint(netflow.FieldEventTimeMsec); ok {
		return v, true
	}
	if v, ok := rec.Uint(netflow.FieldEventTimeUsec); ok {
		return v / 1000, true
	}
	if v, ok := rec.Uint(netflow.FieldEventTimeNsec); ok {
		return v / 1000000, true
	}
	return 0, false
}

// Classify extracts a Flow from rec. It returns false when the record does
// not carry both a source and a destination address.
func Classify(rec netflow.FlowRecord) (Flow, bool) {
	var flow Flow
	var ok bool
	if flow.SrcAddr, ok = addrOf(rec, netflow.FieldIPv4SrcAddr, netflow.FieldIPv6SrcAddr); !ok {
		return flow, false
	}
	if flow.DstAddr, ok = addrOf(rec, netflow.FieldIPv4DstAddr, netflow.FieldIPv6DstAddr); !ok {
		return flow, false
	}
	port, _ := rec.Uint(netflow.FieldL4DstPort)
	flow.DstPort = uint16(port)
	proto, _ := rec.Uint(netflow.FieldProtocol)
	flow.Protocol = uint8(proto)

	event, ok := rec.Uint(netflow.FieldNATEvent)
	if !ok {
		return flow, true
	}
	nat := &NATPayload{Event: uint8(event)}
	nat.EventTimeMs, nat.HasEventTime = eventTimeMs(rec)
	nat.XlateSrcAddr, _ = addrOf(rec, netflow.FieldXlateSrcAddrIPv4, netflow.FieldXlateSrcAddrIPv6)
	xport, _ := rec.Uint(netflow.FieldXlateSrcPort)
	nat.XlateSrcPort = uint16(xport)
	flow.NAT = nat
	return flow, true
}

// Outcome tells what happened to a record handed to Produce.
type Outcome uint8

const (
	Retained Outcome = iota
	NoAddresses
	NoNATEvent
	NotCreated
	Incomplete
)

func (o Outcome) String() string {
	switch o {
	case Retained:
		return "retained"
	case NoAddresses:
		return "no_addresses"
	case NoNATEvent:
		return "no_nat_event"
	case NotCreated:
		return "not_created"
	case Incomplete:
		return "incomplete"
	}
	return "unknown"
}

// Produce keeps records of NAT translations being created and normalizes
// them. Every other record is discarded with the reason.
func Produce(rec netflow.FlowRecord) (Event, Outcome) {
	flow, ok := Classify(rec)
	if !ok {
		return Event{}, NoAddresses
	}
	if flow.NAT == nil {
		return Event{}, NoNATEvent
	}
	if flow.NAT.Event != NATEventCreate {
		return Event{}, NotCreated
	}
	if !flow.NAT.Complete() {
		return Event{}, Incomplete
	}
	return Event{
		EventTime:    int64(flow.NAT.EventTimeMs / 1000),
		SrcAddr:      flow.SrcAddr,
		DstAddr:      flow.DstAddr,
		DstPort:      flow.DstPort,
		XlateSrcAddr: flow.NAT.XlateSrcAddr,
		XlateSrcPort: flow.NAT.XlateSrcPort,
		Protocol:     flow.Protocol,
	}, Retained
}
