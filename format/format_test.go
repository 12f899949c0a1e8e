package format_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfcollect/nfcollect/decoders/netflow"
	"github.com/nfcollect/nfcollect/format"
	_ "github.com/nfcollect/nfcollect/format/json"
	_ "github.com/nfcollect/nfcollect/format/text"
	"github.com/nfcollect/nfcollect/producer/nel"
)

func testRecord(t *testing.T) netflow.FlowRecord {
	schema, err := netflow.CompileNamed(netflow.DefaultCatalog, "PROTOCOL", "IPV4_SRC_ADDR", "L4_DST_PORT")
	require.NoError(t, err)
	buf := netflow.EncodeRecord(schema,
		netflow.UintValue(6),
		netflow.UintValue(0x0A000001),
		netflow.UintValue(443))
	rec, err := schema.Decode(buf, 0)
	require.NoError(t, err)
	return rec
}

func TestFormats(t *testing.T) {
	assert.Equal(t, []string{"json", "text"}, format.GetFormats())
	_, err := format.FindFormat("protobuf")
	assert.ErrorIs(t, err, format.ErrFormat)
}

func TestJSONRecord(t *testing.T) {
	f, err := format.FindFormat("json")
	require.NoError(t, err)
	_, out, err := f.Format(testRecord(t))
	require.NoError(t, err)
	assert.JSONEq(t, `{"PROTOCOL":6,"IPV4_SRC_ADDR":"10.0.0.1","L4_DST_PORT":443}`, string(out))
}

func TestTextRecord(t *testing.T) {
	f, err := format.FindFormat("text")
	require.NoError(t, err)
	_, out, err := f.Format(testRecord(t))
	require.NoError(t, err)
	assert.Equal(t, "PROTOCOL=6 IPV4_SRC_ADDR=10.0.0.1 L4_DST_PORT=443", string(out))
}

func TestTextEvent(t *testing.T) {
	f, err := format.FindFormat("text")
	require.NoError(t, err)
	_, out, err := f.Format(nel.Event{
		EventTime:    1700000000,
		SrcAddr:      netip.MustParseAddr("10.0.0.1"),
		DstAddr:      netip.MustParseAddr("198.51.100.7"),
		DstPort:      443,
		XlateSrcAddr: netip.MustParseAddr("203.0.113.1"),
		XlateSrcPort: 40000,
		Protocol:     6,
	})
	require.NoError(t, err)
	assert.Equal(t, "1700000000\t10.0.0.1\t198.51.100.7\t443\t203.0.113.1\t40000\t6", string(out))

	_, _, err = f.Format(42)
	assert.True(t, errors.Is(err, format.ErrNoSerializer))
	var driverErr *format.DriverFormatError
	require.ErrorAs(t, err, &driverErr)
	assert.Equal(t, "text", driverErr.Driver)
}
