package nel

import (
	"bufio"
	"io"
	"net/netip"
	"strconv"
)

// Columns is the column order of the destination table.
var Columns = []string{
	"event_time",
	"src_addr",
	"dst_addr",
	"dst_port",
	"xlate_src_addr",
	"xlate_src_port",
	"protocol",
}

// Event is a normalized NAT translation ready to be stored.
type Event struct {
	EventTime    int64      `json:"event_time"`
	SrcAddr      netip.Addr `json:"src_addr"`
	DstAddr      netip.Addr `json:"dst_addr"`
	DstPort      uint16     `json:"dst_port"`
	XlateSrcAddr netip.Addr `json:"xlate_src_addr"`
	XlateSrcPort uint16     `json:"xlate_src_port"`
	Protocol     uint8      `json:"protocol"`
}

// Values returns the row in Columns order.
func (e Event) Values() []any {
	return []any{
		e.EventTime,
		e.SrcAddr,
		e.DstAddr,
		int32(e.DstPort),
		e.XlateSrcAddr,
		int32(e.XlateSrcPort),
		int16(e.Protocol),
	}
}

// AppendTSV appends the tab separated row to b, without a newline.
func (e Event) AppendTSV(b []byte) []byte {
	b = strconv.AppendInt(b, e.EventTime, 10)
	b = append(b, '\t')
	b = e.SrcAddr.AppendTo(b)
	b = append(b, '\t')
	b = e.DstAddr.AppendTo(b)
	b = append(b, '\t')
	b = strconv.AppendUint(b, uint64(e.DstPort), 10)
	b = append(b, '\t')
	b = e.XlateSrcAddr.AppendTo(b)
	b = append(b, '\t')
	b = strconv.AppendUint(b, uint64(e.XlateSrcPort), 10)
	b = append(b, '\t')
	b = strconv.AppendUint(b, uint64(e.Protocol), 10)
	return b
}

// Batch is an ordered list of events written in a single bulk operation.
type Batch []Event

// Rows returns the batch as rows of values in Columns order.
func (b Batch) Rows() [][]any {
	rows := make([][]any, len(b))
	for i, e := range b {
		rows[i] = e.Values()
	}
	return rows
}

// WriteTSV writes one tab separated line per event.
func (b Batch) WriteTSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	line := make([]byte, 0, 128)
	for _, e := range b {
		line = e.AppendTSV(line[:0])
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// String returns the tab separated row.
func (e Event) String() string {
	return string(e.AppendTSV(make([]byte, 0, 96)))
}
