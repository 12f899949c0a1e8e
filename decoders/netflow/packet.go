package netflow

import (
	"fmt"
)

const (
	// PacketHeaderSize is the length of the NetFlow v9 packet header.
	PacketHeaderSize = 20
	// FlowSetHeaderSize is the length of the header starting every flow set.
	FlowSetHeaderSize = 4

	TemplateFlowSetId        uint16 = 0
	OptionsTemplateFlowSetId uint16 = 1
	// MinDataFlowSetId is the first flow set id carrying data records.
	// Ids 2 to 255 are reserved.
	MinDataFlowSetId uint16 = 256
)

// PacketHeader is the fixed header of a NetFlow v9 export packet.
type PacketHeader struct {
	// Version of Flow Record format exported in this packet. The value of
	// this field is 9 for the current version.
	Version uint16 `json:"version"`

	// The total number of records in the Export Packet, which is the sum of
	// Options FlowSet records, Template FlowSet records, and Data FlowSet
	// records.
	Count uint16 `json:"count"`

	// Time in milliseconds since this device was first booted.
	SystemUptime uint32 `json:"system-uptime"`

	// Time in seconds since 0000 UTC 1970, at which the Export Packet
	// leaves the Exporter.
	UnixSeconds uint32 `json:"unix-seconds"`

	// Incremental sequence counter of all Export Packets sent from the
	// current Observation Domain by the Exporter.
	SequenceNumber uint32 `json:"sequence-number"`

	// A 32-bit value that identifies the Exporter Observation Domain.
	SourceId uint32 `json:"source-id"`
}

// FlowSetHeader contains fields shared by all Flow Sets (DataFlowSet,
// TemplateFlowSet, OptionsTemplateFlowSet).
type FlowSetHeader struct {
	// FlowSet ID:
	//    0 for TemplateFlowSet
	//    1 for OptionsTemplateFlowSet
	//    256-65535 for DataFlowSet (used as TemplateId)
	Id uint16 `json:"id"`

	// The total length of this FlowSet in bytes (including padding).
	Length uint16 `json:"length"`
}

// FieldDescriptor is a (type, length) pair as declared by a template record.
type FieldDescriptor struct {
	Type   uint16 `json:"type"`
	Length uint16 `json:"length"`
}

// TemplateRecord describes the structure of the data records sent with
// flow set id TemplateId.
type TemplateRecord struct {
	TemplateId uint16            `json:"template-id"`
	Fields     []FieldDescriptor `json:"fields"`
}

func (h PacketHeader) String() string {
	return fmt.Sprintf("NetFlowV%d count:%d seq:%d source:%d", h.Version, h.Count, h.SequenceNumber, h.SourceId)
}

func (h FlowSetHeader) String() string {
	return fmt.Sprintf("FlowSet id:%d length:%d", h.Id, h.Length)
}

// FlowSetType names the kind of flow set identified by id.
func FlowSetType(id uint16) string {
	switch {
	case id == TemplateFlowSetId:
		return "template"
	case id == OptionsTemplateFlowSetId:
		return "options_template"
	case id < MinDataFlowSetId:
		return "reserved"
	}
	return "data"
}
