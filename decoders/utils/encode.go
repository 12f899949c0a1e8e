package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

func WriteU8(buf *bytes.Buffer, v uint8) error {
	return buf.WriteByte(v)
}

func WriteU16(buf *bytes.Buffer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := buf.Write(b[:])
	return err
}

func WriteU32(buf *bytes.Buffer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := buf.Write(b[:])
	return err
}

func WriteU64(buf *bytes.Buffer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := buf.Write(b[:])
	return err
}

// WriteUint writes v as a big-endian integer of the given width (1, 2, 4 or 8).
func WriteUint(buf *bytes.Buffer, width int, v uint64) error {
	switch width {
	case 1:
		return WriteU8(buf, uint8(v))
	case 2:
		return WriteU16(buf, uint16(v))
	case 4:
		return WriteU32(buf, uint32(v))
	case 8:
		return WriteU64(buf, v)
	}
	return fmt.Errorf("unsupported integer width %d", width)
}
