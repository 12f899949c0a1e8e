package netflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nfcollect/nfcollect/decoders/utils"
)

// SchemaField is one compiled field of a RecordSchema.
type SchemaField struct {
	ID     uint16     `json:"id"`
	Name   string     `json:"name"`
	Width  int        `json:"width"`
	Kind   DecodeKind `json:"kind"`
	offset int
}

// RecordSchema is a fixed-size record layout compiled from a template.
// It is immutable once built.
type RecordSchema struct {
	fields []SchemaField
	size   int
	byID   map[uint16]int
	byName map[string]int
}

func newRecordSchema(fields []SchemaField) *RecordSchema {
	s := &RecordSchema{
		fields: fields,
		byID:   make(map[uint16]int, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	for i := range s.fields {
		s.fields[i].offset = s.size
		s.size += s.fields[i].Width
		// first occurrence wins on duplicated fields
		if _, ok := s.byID[s.fields[i].ID]; !ok {
			s.byID[s.fields[i].ID] = i
		}
		if _, ok := s.byName[s.fields[i].Name]; !ok {
			s.byName[s.fields[i].Name] = i
		}
	}
	return s
}

// BuildSchema compiles the (type, length) pairs of a template record.
// The declared length always wins over the catalog default width.
func BuildSchema(catalog *FieldCatalog, descs []FieldDescriptor) *RecordSchema {
	fields := make([]SchemaField, len(descs))
	for i, desc := range descs {
		spec := catalog.Get(desc.Type)
		width := int(desc.Length)
		fields[i] = SchemaField{
			ID:    desc.Type,
			Name:  spec.Name,
			Width: width,
			Kind:  KindFor(spec, width),
		}
	}
	return newRecordSchema(fields)
}

// CompileNamed builds a static schema from field names. Each entry is
// NAME or NAME:LENGTH, the latter overriding the catalog default width.
func CompileNamed(catalog *FieldCatalog, names ...string) (*RecordSchema, error) {
	descs := make([]FieldDescriptor, len(names))
	for i, entry := range names {
		name, lenStr, hasLen := strings.Cut(entry, ":")
		spec, ok := catalog.GetByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown field name %q", name)
		}
		width := spec.DefaultWidth
		if hasLen {
			l, err := strconv.ParseUint(lenStr, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("field %s: invalid length %q: %w", name, lenStr, err)
			}
			width = int(l)
		}
		descs[i] = FieldDescriptor{Type: spec.ID, Length: uint16(width)}
	}
	return BuildSchema(catalog, descs), nil
}

// Size is the byte length of one record.
func (s *RecordSchema) Size() int {
	return s.size
}

// Fields returns the fields in declaration order.
func (s *RecordSchema) Fields() []SchemaField {
	return s.fields
}

// Descriptors converts the schema back to template field descriptors.
func (s *RecordSchema) Descriptors() []FieldDescriptor {
	descs := make([]FieldDescriptor, len(s.fields))
	for i, f := range s.fields {
		descs[i] = FieldDescriptor{Type: f.ID, Length: uint16(f.Width)}
	}
	return descs
}

// Decode reads one record of Size() bytes starting at offset. Byte values
// are copied so the record outlives buf.
func (s *RecordSchema) Decode(buf []byte, offset int) (FlowRecord, error) {
	if offset < 0 || offset+s.size > len(buf) {
		return FlowRecord{}, fmt.Errorf("record of %d bytes at offset %d exceeds buffer of %d: %w", s.size, offset, len(buf), ErrTruncated)
	}
	values := make([]Value, len(s.fields))
	for i, f := range s.fields {
		raw := buf[offset+f.offset : offset+f.offset+f.Width]
		if f.Kind == KindUint {
			values[i] = Value{Kind: KindUint, Uint: utils.Uint(raw)}
			continue
		}
		b := make([]byte, len(raw))
		copy(b, raw)
		values[i] = Value{Kind: KindBytes, Bytes: b}
	}
	return FlowRecord{schema: s, values: values}, nil
}
