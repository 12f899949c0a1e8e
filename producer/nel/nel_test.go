package nel

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/nfcollect/nfcollect/decoders/netflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func decodeRecord(t *testing.T, names []string, values ...netflow.Value) netflow.FlowRecord {
	t.Helper()
	schema, err := netflow.CompileNamed(netflow.DefaultCatalog, names...)
	require.NoError(t, err)
	rec, err := schema.Decode(netflow.EncodeRecord(schema, values...), 0)
	require.NoError(t, err)
	return rec
}

func natRecord(t *testing.T, event uint64) netflow.FlowRecord {
	return decodeRecord(t, natFields,
		netflow.UintValue(1690000000987),
		netflow.UintValue(0x0a000001),
		netflow.UintValue(0x08080808),
		netflow.UintValue(53),
		netflow.UintValue(0xc6336401),
		netflow.UintValue(40000),
		netflow.UintValue(17),
		netflow.UintValue(event),
	)
}

func TestProduceCreated(t *testing.T) {
	event, outcome := Produce(natRecord(t, uint64(NATEventCreate)))
	require.Equal(t, Retained, outcome)
	assert.Equal(t, Event{
		EventTime:    1690000000,
		SrcAddr:      netip.MustParseAddr("10.0.0.1"),
		DstAddr:      netip.MustParseAddr("8.8.8.8"),
		DstPort:      53,
		XlateSrcAddr: netip.MustParseAddr("198.51.100.1"),
		XlateSrcPort: 40000,
		Protocol:     17,
	}, event)
}

func TestProduceDiscards(t *testing.T) {
	_, outcome := Produce(natRecord(t, uint64(NATEventDelete)))
	assert.Equal(t, NotCreated, outcome)

	rec := decodeRecord(t, []string{"IPV4_SRC_ADDR", "L4_DST_PORT"}, netflow.UintValue(1), netflow.UintValue(2))
	_, outcome = Produce(rec)
	assert.Equal(t, NoAddresses, outcome)

	rec = decodeRecord(t, []string{"IPV4_SRC_ADDR", "IPV4_DST_ADDR"}, netflow.UintValue(1), netflow.UintValue(2))
	_, outcome = Produce(rec)
	assert.Equal(t, NoNATEvent, outcome)

	rec = decodeRecord(t, []string{"IPV4_SRC_ADDR", "IPV4_DST_ADDR", "NAT_EVENT"},
		netflow.UintValue(1), netflow.UintValue(2), netflow.UintValue(1))
	_, outcome = Produce(rec)
	assert.Equal(t, Incomplete, outcome)
}

func TestClassifyIPv6(t *testing.T) {
	src := netip.MustParseAddr("2001:db8::1")
	dst := netip.MustParseAddr("2001:db8::2")
	srcB, dstB := src.As16(), dst.As16()
	rec := decodeRecord(t, []string{"IPV6_SRC_ADDR", "IPV6_DST_ADDR", "EVENT_TIME_USEC"},
		netflow.BytesValue(srcB[:]), netflow.BytesValue(dstB[:]), netflow.UintValue(5000000))

	flow, ok := Classify(rec)
	require.True(t, ok)
	assert.Equal(t, src, flow.SrcAddr)
	assert.Equal(t, dst, flow.DstAddr)
	assert.Nil(t, flow.NAT)
}

func TestEventTimeFallback(t *testing.T) {
	rec := decodeRecord(t, []string{"EVENT_TIME_NSEC"}, netflow.UintValue(3000000000))
	ms, ok := eventTimeMs(rec)
	assert.True(t, ok)
	assert.Equal(t, uint64(3000), ms)

	_, ok = eventTimeMs(decodeRecord(t, []string{"PROTOCOL"}, netflow.UintValue(6)))
	assert.False(t, ok)
}

func TestProduceEventTime(t *testing.T) {
	// a zero timestamp is still a timestamp
	rec := decodeRecord(t, natFields,
		netflow.UintValue(0),
		netflow.UintValue(0x0a000001),
		netflow.UintValue(0x08080808),
		netflow.UintValue(53),
		netflow.UintValue(0xc6336401),
		netflow.UintValue(40000),
		netflow.UintValue(17),
		netflow.UintValue(uint64(NATEventCreate)),
	)
	event, outcome := Produce(rec)
	require.Equal(t, Retained, outcome)
	assert.Equal(t, int64(0), event.EventTime)

	rec = decodeRecord(t, natFields[1:],
		netflow.UintValue(0x0a000001),
		netflow.UintValue(0x08080808),
		netflow.UintValue(53),
		netflow.UintValue(0xc6336401),
		netflow.UintValue(40000),
		netflow.UintValue(17),
		netflow.UintValue(uint64(NATEventCreate)),
	)
	_, outcome = Produce(rec)
	assert.Equal(t, Incomplete, outcome)
}

func TestBatchTSV(t *testing.T) {
	event, outcome := Produce(natRecord(t, uint64(NATEventCreate)))
	require.Equal(t, Retained, outcome)

	var buf bytes.Buffer
	require.NoError(t, Batch{event, event}.WriteTSV(&buf))
	line := "1690000000\t10.0.0.1\t8.8.8.8\t53\t198.51.100.1\t40000\t17\n"
	assert.Equal(t, line+line, buf.String())

	rows := Batch{event}.Rows()
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(Columns))
	assert.Equal(t, int64(1690000000), rows[0][0])
}
