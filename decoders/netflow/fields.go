package netflow

import (
	"fmt"
	"sort"
)

// DecodeKind tells how a field value is read from the wire.
type DecodeKind uint8

const (
	// KindUint fields decode as big-endian unsigned integers when their
	// width is 1, 2, 4 or 8 bytes, and as raw bytes otherwise.
	KindUint DecodeKind = iota
	// KindBytes fields are always kept as raw bytes.
	KindBytes
)

func (k DecodeKind) String() string {
	switch k {
	case KindUint:
		return "uint"
	case KindBytes:
		return "bytes"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// FieldSpec describes a NetFlow field type.
type FieldSpec struct {
	ID           uint16     `json:"id"`
	DefaultWidth int        `json:"default-width"`
	Kind         DecodeKind `json:"kind"`
	Name         string     `json:"name"`
}

// KindFor resolves the decode kind of a field declared with width bytes.
func KindFor(spec FieldSpec, width int) DecodeKind {
	if spec.Kind == KindBytes {
		return KindBytes
	}
	switch width {
	case 1, 2, 4, 8:
		return KindUint
	}
	return KindBytes
}

// Field type ids referenced by the collector.
const (
	FieldProtocol          uint16 = 4
	FieldL4SrcPort         uint16 = 7
	FieldIPv4SrcAddr       uint16 = 8
	FieldL4DstPort         uint16 = 11
	FieldIPv4DstAddr       uint16 = 12
	FieldIPv6SrcAddr       uint16 = 27
	FieldIPv6DstAddr       uint16 = 28
	FieldXlateSrcAddrIPv4  uint16 = 225
	FieldXlateDstAddrIPv4  uint16 = 226
	FieldXlateSrcPort      uint16 = 227
	FieldXlateDstPort      uint16 = 228
	FieldNATEvent          uint16 = 230
	FieldXlateSrcAddrIPv6  uint16 = 281
	FieldXlateDstAddrIPv6  uint16 = 282
	FieldEventTimeMsec     uint16 = 323
	FieldEventTimeUsec     uint16 = 324
	FieldEventTimeNsec     uint16 = 325
	FieldFlowCreateTimeMs  uint16 = 152
	FieldXlatePortBlockBeg uint16 = 361
	FieldXlatePortBlockEnd uint16 = 362
)

var defaultFields = []FieldSpec{
	{1, 4, KindUint, "IN_BYTES"},
	{2, 4, KindUint, "IN_PKTS"},
	{3, 4, KindUint, "FLOWS"},
	{4, 1, KindUint, "PROTOCOL"},
	{5, 1, KindUint, "TOS"},
	{6, 1, KindUint, "TCP_FLAGS"},
	{7, 2, KindUint, "L4_SRC_PORT"},
	{8, 4, KindUint, "IPV4_SRC_ADDR"},
	{9, 1, KindUint, "SRC_MASK"},
	{10, 2, KindUint, "INPUT_SNMP"},
	{11, 2, KindUint, "L4_DST_PORT"},
	{12, 4, KindUint, "IPV4_DST_ADDR"},
	{13, 1, KindUint, "DST_MASK"},
	{14, 2, KindUint, "OUTPUT_SNMP"},
	{15, 4, KindUint, "IPV4_NEXT_HOP"},
	{16, 2, KindUint, "SRC_AS"},
	{17, 2, KindUint, "DST_AS"},
	{18, 4, KindUint, "BGP_IPV4_NEXT_HOP"},
	{19, 4, KindUint, "MUL_DST_PKTS"},
	{20, 4, KindUint, "MUL_DST_BYTES"},
	{21, 4, KindUint, "LAST_SWITCHED"},
	{22, 4, KindUint, "FIRST_SWITCHED"},
	{23, 4, KindUint, "OUT_BYTES"},
	{24, 4, KindUint, "OUT_PKTS"},
	{27, 16, KindBytes, "IPV6_SRC_ADDR"},
	{28, 16, KindBytes, "IPV6_DST_ADDR"},
	{29, 1, KindUint, "IPV6_SRC_MASK"},
	{30, 1, KindUint, "IPV6_DST_MASK"},
	{31, 3, KindBytes, "IPV6_FLOW_LABEL"},
	{32, 2, KindUint, "ICMP_TYPE"},
	{33, 1, KindUint, "MUL_IGMP_TYPE"},
	{34, 4, KindUint, "SAMPLING_INTERVAL"},
	{35, 1, KindUint, "SAMPLING_ALGORITHM"},
	{36, 2, KindUint, "FLOW_ACTIVE_TIMEOUT"},
	{37, 2, KindUint, "FLOW_INACTIVE_TIMEOUT"},
	{38, 1, KindUint, "ENGINE_TYPE"},
	{39, 1, KindUint, "ENGINE_ID"},
	{40, 4, KindUint, "TOTAL_BYTES_EXP"},
	{41, 4, KindUint, "TOTAL_PKTS_EXP"},
	{42, 4, KindUint, "TOTAL_FLOWS_EXP"},
	{46, 1, KindUint, "MPLS_TOP_LABEL_TYPE"},
	{47, 4, KindUint, "MPLS_TOP_LABEL_IP_ADDR"},
	{48, 1, KindUint, "FLOW_SAMPLER_ID"},
	{49, 1, KindUint, "FLOW_SAMPLER_MODE"},
	{50, 4, KindUint, "FLOW_SAMPLER_RANDOM_INTERVAL"},
	{55, 1, KindUint, "DST_TOS"},
	{56, 6, KindBytes, "SRC_MAC"},
	{57, 6, KindBytes, "DST_MAC"},
	{58, 2, KindUint, "SRC_VLAN"},
	{59, 2, KindUint, "DST_VLAN"},
	{60, 1, KindUint, "IP_PROTOCOL_VERSION"},
	{61, 1, KindUint, "DIRECTION"},
	{62, 16, KindBytes, "IPV6_NEXT_HOP"},
	{63, 16, KindBytes, "BGP_IPV6_NEXT_HOP"},
	{64, 4, KindUint, "IPV6_OPTION_HEADERS"},
	{70, 3, KindBytes, "MPLS_LABEL_1"},
	{71, 3, KindBytes, "MPLS_LABEL_2"},
	{72, 3, KindBytes, "MPLS_LABEL_3"},
	{73, 3, KindBytes, "MPLS_LABEL_4"},
	{74, 3, KindBytes, "MPLS_LABEL_5"},
	{75, 3, KindBytes, "MPLS_LABEL_6"},
	{76, 3, KindBytes, "MPLS_LABEL_7"},
	{77, 3, KindBytes, "MPLS_LABEL_8"},
	{78, 3, KindBytes, "MPLS_LABEL_9"},
	{79, 3, KindBytes, "MPLS_LABEL_10"},
	{80, 6, KindBytes, "IN_DST_MAC"},
	{81, 6, KindBytes, "OUT_SRC_MAC"},
	{82, 0, KindBytes, "IF_NAME"},
	{83, 0, KindBytes, "IF_DESC"},
	{84, 0, KindBytes, "SAMPLER_NAME"},
	{85, 0, KindUint, "IN_PERMANENT_BYTES"},
	{86, 0, KindUint, "IN_PERMANENT_PKTS"},
	{89, 1, KindUint, "FORWARDING_STATUS"},
	{128, 4, KindUint, "BGP_ADJ_NEXT_AS"},
	{129, 4, KindUint, "BGP_ADJ_PREV_AS"},

	// Cisco NSEL
	{148, 4, KindUint, "CONN_ID"},
	{176, 1, KindUint, "ICMP_TYPE"},
	{177, 1, KindUint, "ICMP_CODE"},
	{178, 1, KindUint, "ICMP_TYPE_IPV6"},
	{179, 1, KindUint, "ICMP_CODE_IPV6"},
	{225, 4, KindUint, "XLATE_SRC_ADDR_IPV4"},
	{226, 4, KindUint, "XLATE_DST_ADDR_IPV4"},
	{227, 2, KindUint, "XLATE_SRC_PORT"},
	{228, 2, KindUint, "XLATE_DST_PORT"},
	{281, 16, KindBytes, "XLATE_SRC_ADDR_IPV6"},
	{282, 16, KindBytes, "XLATE_DST_ADDR_IPV6"},
	{233, 1, KindUint, "FW_EVENT"},
	{33002, 2, KindUint, "FW_EXT_EVENT"},
	{323, 8, KindUint, "EVENT_TIME_MSEC"},
	{324, 8, KindUint, "EVENT_TIME_USEC"},
	{325, 8, KindUint, "EVENT_TIME_NSEC"},
	{152, 8, KindUint, "FLOW_CREATE_TIME_MSEC"},
	{231, 4, KindUint, "FWD_FLOW_DELTA_BYTES"},
	{232, 4, KindUint, "REV_FLOW_DELTA_BYTES"},
	{33000, 12, KindBytes, "INGRESS_ACL_ID"},
	{33001, 12, KindBytes, "EGRESS_ACL_ID"},
	{40000, 0, KindBytes, "USERNAME"},

	// ASR1k NEL
	{230, 1, KindUint, "NAT_EVENT"},
	{234, 4, KindUint, "INGRESS_VRFID"},
	{235, 4, KindUint, "EGRESS_VRFID"},
	{361, 2, KindUint, "XLATE_PORT_BLOCK_START"},
	{362, 2, KindUint, "XLATE_PORT_BLOCK_END"},
	{363, 2, KindUint, "XLATE_PORT_BLOCK_STEP"},
	{364, 2, KindUint, "XLATE_PORT_BLOCK_SIZE"},
}

// FieldCatalog maps field type ids to their FieldSpec.
// It is read-only once built and safe for concurrent use.
type FieldCatalog struct {
	byID   map[uint16]FieldSpec
	byName map[string]FieldSpec
}

// NewFieldCatalog builds a catalog from specs. When two specs share a name,
// the later one answers GetByName.
func NewFieldCatalog(specs []FieldSpec) *FieldCatalog {
	c := &FieldCatalog{
		byID:   make(map[uint16]FieldSpec, len(specs)),
		byName: make(map[string]FieldSpec, len(specs)),
	}
	for _, spec := range specs {
		c.byID[spec.ID] = spec
		c.byName[spec.Name] = spec
	}
	return c
}

// DefaultCatalog holds the standard NetFlow v9 fields along with the Cisco
// NSEL and ASR1k NAT event logging extensions.
var DefaultCatalog = NewFieldCatalog(defaultFields)

// Get returns the FieldSpec registered for id. Unknown ids yield a raw byte
// field named FIELD_<id>.
func (c *FieldCatalog) Get(id uint16) FieldSpec {
	if spec, ok := c.byID[id]; ok {
		return spec
	}
	return FieldSpec{
		ID:   id,
		Kind: KindBytes,
		Name: fmt.Sprintf("FIELD_%d", id),
	}
}

// GetByName looks up a spec by its canonical name.
func (c *FieldCatalog) GetByName(name string) (FieldSpec, bool) {
	spec, ok := c.byName[name]
	return spec, ok
}

// Specs lists the registered specs ordered by id.
func (c *FieldCatalog) Specs() []FieldSpec {
	specs := make([]FieldSpec, 0, len(c.byID))
	for _, spec := range c.byID {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}
