package netflow

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nfcollect/nfcollect/decoders/utils"
)

func isAddressField(name string) bool {
	return strings.HasSuffix(name, "_ADDR") || strings.Contains(name, "_ADDR_IPV") || strings.HasSuffix(name, "NEXT_HOP")
}

// render converts a value to a type that prints naturally. It is only used
// for display, consumers read Value directly.
func render(f SchemaField, v Value) any {
	if v.Kind == KindUint {
		if f.Width == 4 && isAddressField(f.Name) {
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(v.Uint))
			return utils.IPAddress(b[:])
		}
		return v.Uint
	}
	switch {
	case len(v.Bytes) == 6 && strings.Contains(f.Name, "MAC"):
		return utils.MacAddress(v.Bytes)
	case (len(v.Bytes) == 4 || len(v.Bytes) == 16) && isAddressField(f.Name):
		return utils.IPAddress(v.Bytes)
	}
	return utils.HexBytes(v.Bytes)
}

// MarshalJSON encodes the record as an object keyed by field name.
func (r FlowRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.values))
	for i, v := range r.values {
		f := r.schema.fields[i]
		if _, dup := out[f.Name]; dup {
			continue
		}
		out[f.Name] = render(f, v)
	}
	return json.Marshal(out)
}

// MarshalText formats the record as space separated NAME=value pairs in
// declaration order.
func (r FlowRecord) MarshalText() ([]byte, error) {
	var sb strings.Builder
	for i, v := range r.values {
		if i > 0 {
			sb.WriteByte(' ')
		}
		f := r.schema.fields[i]
		fmt.Fprintf(&sb, "%s=%v", f.Name, render(f, v))
	}
	return []byte(sb.String()), nil
}
