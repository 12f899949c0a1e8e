package utils

import (
	"context"
	"io"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/nfcollect/nfcollect/decoders/netflow"
	"github.com/nfcollect/nfcollect/producer/nel"
)

const natTemplateId = 260

var natFields = []string{
	"EVENT_TIME_MSEC",
	"IPV4_SRC_ADDR",
	"IPV4_DST_ADDR",
	"L4_DST_PORT",
	"XLATE_SRC_ADDR_IPV4",
	"XLATE_SRC_PORT",
	"PROTOCOL",
	"NAT_EVENT",
}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func natSchema(t *testing.T) *netflow.RecordSchema {
	t.Helper()
	schema, err := netflow.CompileNamed(netflow.DefaultCatalog, natFields...)
	require.NoError(t, err)
	return schema
}

// dataFlowSet carries one record per event value. The destination port of
// record i is 1000+i.
func dataFlowSet(t *testing.T, events ...uint8) []byte {
	t.Helper()
	schema := natSchema(t)
	var records [][]byte
	for i, ev := range events {
		records = append(records, netflow.EncodeRecord(schema,
			netflow.UintValue(1690000000123),
			netflow.UintValue(0x0a000001),
			netflow.UintValue(0x08080808),
			netflow.UintValue(uint64(1000+i)),
			netflow.UintValue(0xc6336401),
			netflow.UintValue(40000),
			netflow.UintValue(6),
			netflow.UintValue(uint64(ev)),
		))
	}
	return netflow.EncodeDataFlowSet(natTemplateId, records...)
}

// natDatagram carries the template followed by dataFlowSet(events).
func natDatagram(t *testing.T, seq uint32, events ...uint8) []byte {
	t.Helper()
	schema := natSchema(t)
	return netflow.EncodePacket(
		netflow.PacketHeader{Version: 9, Count: uint16(1 + len(events)), SequenceNumber: seq},
		netflow.EncodeTemplateFlowSet(netflow.TemplateRecord{TemplateId: natTemplateId, Fields: schema.Descriptors()}),
		dataFlowSet(t, events...),
	)
}

func created(n int) []uint8 {
	events := make([]uint8, n)
	for i := range events {
		events[i] = nel.NATEventCreate
	}
	return events
}

var testExporter = netip.MustParseAddrPort("192.0.2.10:2055")

func testMessage(payload []byte) *Message {
	return &Message{
		Src:      testExporter,
		Dst:      netip.MustParseAddrPort("127.0.0.1:9999"),
		Payload:  payload,
		Received: time.Now(),
	}
}

type recordingPool struct {
	lock    sync.Mutex
	batches []nel.Batch
	err     error
	// rejects limits err to the first submits. Zero fails them all.
	rejects int
	calls   int
	depth   int
}

func (p *recordingPool) Submit(ctx context.Context, batch nel.Batch) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.calls++
	if p.err != nil && (p.rejects == 0 || p.calls <= p.rejects) {
		return p.err
	}
	p.batches = append(p.batches, batch)
	return nil
}

func (p *recordingPool) QueueDepth() int {
	return p.depth
}

func (p *recordingPool) submitted() []nel.Batch {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]nel.Batch(nil), p.batches...)
}
