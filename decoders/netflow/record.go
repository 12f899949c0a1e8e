package netflow

import (
	"encoding/hex"
	"fmt"
)

// Value is a decoded field value. Uint is set for KindUint values and
// Bytes for KindBytes values.
type Value struct {
	Kind  DecodeKind
	Uint  uint64
	Bytes []byte
}

func (v Value) String() string {
	if v.Kind == KindUint {
		return fmt.Sprintf("%d", v.Uint)
	}
	return hex.EncodeToString(v.Bytes)
}

// FlowRecord is a record decoded against a RecordSchema.
type FlowRecord struct {
	schema *RecordSchema
	values []Value
}

// Schema returns the schema the record was decoded with.
func (r FlowRecord) Schema() *RecordSchema {
	return r.schema
}

// Len returns the number of fields.
func (r FlowRecord) Len() int {
	return len(r.values)
}

// Field returns the i-th field and its value in declaration order.
func (r FlowRecord) Field(i int) (SchemaField, Value) {
	return r.schema.fields[i], r.values[i]
}

// GetByID returns the value of the first field with type id.
func (r FlowRecord) GetByID(id uint16) (Value, bool) {
	if r.schema == nil {
		return Value{}, false
	}
	i, ok := r.schema.byID[id]
	if !ok {
		return Value{}, false
	}
	return r.values[i], true
}

// Get returns the value of the first field named name.
func (r FlowRecord) Get(name string) (Value, bool) {
	if r.schema == nil {
		return Value{}, false
	}
	i, ok := r.schema.byName[name]
	if !ok {
		return Value{}, false
	}
	return r.values[i], true
}

// Uint returns the integer value of field id. It reports false when the
// field is absent or was not decoded as an integer.
func (r FlowRecord) Uint(id uint16) (uint64, bool) {
	v, ok := r.GetByID(id)
	if !ok || v.Kind != KindUint {
		return 0, false
	}
	return v.Uint, true
}

// Bytes returns the raw value of field id when it was decoded as bytes.
func (r FlowRecord) Bytes(id uint16) ([]byte, bool) {
	v, ok := r.GetByID(id)
	if !ok || v.Kind != KindBytes {
		return nil, false
	}
	return v.Bytes, true
}
