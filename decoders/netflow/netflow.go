package netflow

import (
	"errors"
	"fmt"

	"github.com/nfcollect/nfcollect/decoders/utils"
)

var (
	ErrTruncated = errors.New("truncated")
	ErrMalformed = errors.New("malformed")
)

type DecoderError struct {
	Decoder string
	Err     error
}

func (e *DecoderError) Error() string {
	return fmt.Sprintf("%s %s", e.Decoder, e.Err.Error())
}

func (e *DecoderError) Unwrap() error {
	return e.Err
}

type FlowError struct {
	Version   uint16
	Type      string
	Exporter  ExporterKey
	FlowSetId uint16
	Err       error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("[version:%d type:%s exporter:%s flowSetId:%d] %s", e.Version, e.Type, e.Exporter, e.FlowSetId, e.Err.Error())
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// ParseStats counts what was found while walking a datagram.
type ParseStats struct {
	FlowSets            int
	TemplateSets        int
	OptionsTemplateSets int
	ReservedSets        int
	DataSets            int
	UnmatchedSets       int
	Templates           int
	Records             int
}

// Decoder walks NetFlow datagrams of a single version, learning templates
// into a shared TemplateCache.
type Decoder struct {
	version   uint16
	templates *TemplateCache
}

func NewDecoder(version uint16, templates *TemplateCache) *Decoder {
	if templates == nil {
		templates = NewTemplateCache()
	}
	return &Decoder{
		version:   version,
		templates: templates,
	}
}

func (d *Decoder) Version() uint16 {
	return d.version
}

func (d *Decoder) Templates() *TemplateCache {
	return d.templates
}

// Parse returns the records of buf as a lazy sequence. Nothing is decoded
// until the first call to Next. Templates found in buf are registered under
// key as the sequence is consumed.
func (d *Decoder) Parse(buf []byte, key ExporterKey) *Records {
	return &Records{
		decoder: d,
		buf:     buf,
		key:     key,
	}
}

// Records iterates the flow records of one datagram. It can be consumed
// only once:
//
//	records := decoder.Parse(payload, key)
//	for records.Next() {
//		rec := records.Record()
//	}
//	if err := records.Err(); err != nil {
//	}
type Records struct {
	decoder *Decoder
	buf     []byte
	key     ExporterKey

	started    bool
	done       bool
	mismatched bool
	header     PacketHeader
	offset     int

	// current data flow set
	schema *RecordSchema
	dataId uint16
	cursor int
	end    int

	record      FlowRecord
	stats       ParseStats
	err         error
	templateErr error
}

// Next advances to the next record. It returns false once the datagram is
// exhausted or a decoding error occurred.
func (r *Records) Next() bool {
	if r.done {
		return false
	}
	if !r.started {
		r.started = true
		if !r.readHeader() {
			r.done = true
			return false
		}
	}
	for {
		if r.schema != nil {
			if r.cursor+r.schema.Size() <= r.end {
				rec, err := r.schema.Decode(r.buf, r.cursor)
				if err != nil {
					r.fail(r.dataId, err)
					return false
				}
				r.cursor += r.schema.Size()
				r.record = rec
				r.stats.Records++
				return true
			}
			// trailing bytes shorter than a record are skipped
			r.schema = nil
		}
		if r.offset >= len(r.buf) || !r.nextFlowSet() {
			r.done = true
			return false
		}
	}
}

// Header returns the packet header. It is valid after the first call to Next.
func (r *Records) Header() PacketHeader {
	return r.header
}

// Record returns the record read by the last successful call to Next.
func (r *Records) Record() FlowRecord {
	return r.record
}

// Err returns the decoding error that stopped the sequence, if any. A
// version mismatch is not an error.
func (r *Records) Err() error {
	return r.err
}

// TemplateErr returns errors raised while persisting templates. They do not
// interrupt decoding.
func (r *Records) TemplateErr() error {
	return r.templateErr
}

// Mismatched reports whether the datagram was rejected for its version.
func (r *Records) Mismatched() bool {
	return r.mismatched
}

func (r *Records) Stats() ParseStats {
	return r.stats
}

// Exporter returns the key the records are decoded for.
func (r *Records) Exporter() ExporterKey {
	return r.key
}

func (r *Records) fail(flowSetId uint16, err error) {
	r.err = &DecoderError{
		Decoder: "NetFlow",
		Err: &FlowError{
			Version:   r.header.Version,
			Type:      FlowSetType(flowSetId),
			Exporter:  r.key,
			FlowSetId: flowSetId,
			Err:       err,
		},
	}
	r.done = true
}

func (r *Records) readHeader() bool {
	version, ok := utils.ReadU16(r.buf, 0)
	if !ok {
		r.err = &DecoderError{"NetFlow", fmt.Errorf("datagram of %d bytes: %w", len(r.buf), ErrTruncated)}
		return false
	}
	r.header.Version = version
	if version != r.decoder.version {
		r.mismatched = true
		return false
	}
	if len(r.buf) < PacketHeaderSize {
		r.err = &DecoderError{"NetFlow", fmt.Errorf("header of %d bytes: %w", len(r.buf), ErrTruncated)}
		return false
	}
	r.header.Count, _ = utils.ReadU16(r.buf, 2)
	r.header.SystemUptime, _ = utils.ReadU32(r.buf, 4)
	r.header.UnixSeconds, _ = utils.ReadU32(r.buf, 8)
	r.header.SequenceNumber, _ = utils.ReadU32(r.buf, 12)
	r.header.SourceId, _ = utils.ReadU32(r.buf, 16)
	r.offset = PacketHeaderSize
	r.decoder.templates.Touch(r.key)
	return true
}

// nextFlowSet handles the flow set at offset and moves offset to its end.
// For a data flow set with a known template, it sets up record iteration.
func (r *Records) nextFlowSet() bool {
	var fsh FlowSetHeader
	var ok bool
	if fsh.Id, ok = utils.ReadU16(r.buf, r.offset); ok {
		fsh.Length, ok = utils.ReadU16(r.buf, r.offset+2)
	}
	if !ok {
		r.fail(fsh.Id, fmt.Errorf("flow set header at offset %d: %w", r.offset, ErrTruncated))
		return false
	}
	if int(fsh.Length) < FlowSetHeaderSize {
		r.fail(fsh.Id, fmt.Errorf("flow set length %d: %w", fsh.Length, ErrMalformed))
		return false
	}
	start := r.offset + FlowSetHeaderSize
	end := r.offset + int(fsh.Length)
	if end > len(r.buf) {
		r.fail(fsh.Id, fmt.Errorf("flow set of %d bytes at offset %d exceeds datagram of %d: %w", fsh.Length, r.offset, len(r.buf), ErrTruncated))
		return false
	}
	r.stats.FlowSets++

	switch {
	case fsh.Id == TemplateFlowSetId:
		r.stats.TemplateSets++
		if err := r.decodeTemplates(start, end); err != nil {
			r.fail(fsh.Id, err)
			return false
		}
	case fsh.Id == OptionsTemplateFlowSetId:
		r.stats.OptionsTemplateSets++
	case fsh.Id < MinDataFlowSetId:
		r.stats.ReservedSets++
	default:
		r.stats.DataSets++
		schema, found := r.decoder.templates.Match(r.key, fsh.Id)
		if !found {
			r.stats.UnmatchedSets++
		} else if schema.Size() > 0 {
			r.schema = schema
			r.dataId = fsh.Id
			r.cursor = start
			r.end = end
		}
	}
	r.offset = end
	return true
}

func (r *Records) decodeTemplates(cur, end int) error {
	// anything shorter than a template header is padding
	for end-cur >= 4 {
		templateId, _ := utils.ReadU16(r.buf, cur)
		fieldCount, _ := utils.ReadU16(r.buf, cur+2)
		cur += 4
		if cur+int(fieldCount)*4 > end {
			return fmt.Errorf("template %d declares %d fields past the flow set end: %w", templateId, fieldCount, ErrMalformed)
		}
		fields := make([]FieldDescriptor, fieldCount)
		for i := range fields {
			fields[i].Type, _ = utils.ReadU16(r.buf, cur)
			fields[i].Length, _ = utils.ReadU16(r.buf, cur+2)
			cur += 4
		}
		if _, err := r.decoder.templates.Update(r.key, templateId, fields); err != nil {
			r.templateErr = errors.Join(r.templateErr, err)
		}
		r.stats.Templates++
	}
	return nil
}
