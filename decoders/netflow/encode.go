package netflow

import (
	"bytes"

	"github.com/nfcollect/nfcollect/decoders/utils"
)

// EncodeFlowSet wraps payload in a flow set header.
func EncodeFlowSet(id uint16, payload []byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, FlowSetHeaderSize+len(payload)))
	_ = utils.WriteU16(buf, id)
	_ = utils.WriteU16(buf, uint16(FlowSetHeaderSize+len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

// EncodeTemplateFlowSet builds a template flow set (id 0).
func EncodeTemplateFlowSet(records ...TemplateRecord) []byte {
	buf := bytes.NewBuffer(nil)
	for _, rec := range records {
		_ = utils.WriteU16(buf, rec.TemplateId)
		_ = utils.WriteU16(buf, uint16(len(rec.Fields)))
		for _, f := range rec.Fields {
			_ = utils.WriteU16(buf, f.Type)
			_ = utils.WriteU16(buf, f.Length)
		}
	}
	return EncodeFlowSet(TemplateFlowSetId, buf.Bytes())
}

// EncodeDataFlowSet concatenates already encoded records into a data flow set.
func EncodeDataFlowSet(templateId uint16, records ...[]byte) []byte {
	return EncodeFlowSet(templateId, bytes.Join(records, nil))
}

// EncodeRecord encodes values following schema. Integers are written with
// the field width, byte values are copied and zero padded.
func EncodeRecord(schema *RecordSchema, values ...Value) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, schema.Size()))
	for i, f := range schema.Fields() {
		var v Value
		if i < len(values) {
			v = values[i]
		}
		if f.Kind == KindUint {
			_ = utils.WriteUint(buf, f.Width, v.Uint)
			continue
		}
		b := make([]byte, f.Width)
		copy(b, v.Bytes)
		buf.Write(b)
	}
	return buf.Bytes()
}

// EncodePacket builds a datagram from a header and encoded flow sets.
func EncodePacket(header PacketHeader, flowSets ...[]byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, PacketHeaderSize))
	_ = utils.WriteU16(buf, header.Version)
	_ = utils.WriteU16(buf, header.Count)
	_ = utils.WriteU32(buf, header.SystemUptime)
	_ = utils.WriteU32(buf, header.UnixSeconds)
	_ = utils.WriteU32(buf, header.SequenceNumber)
	_ = utils.WriteU32(buf, header.SourceId)
	for _, fs := range flowSets {
		buf.Write(fs)
	}
	return buf.Bytes()
}

func UintValue(v uint64) Value {
	return Value{Kind: KindUint, Uint: v}
}

func BytesValue(b []byte) Value {
	return Value{Kind: KindBytes, Bytes: b}
}
