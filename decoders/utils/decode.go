package utils

import (
	"encoding/binary"
)

// ReadU16 reads a big-endian uint16 at off. The second value is false when
// fewer than two bytes remain.
func ReadU16(b []byte, off int) (uint16, bool) {
	if off < 0 || off+2 > len(b) {
		return 0, false
	}
	return binary.BigEndian.Uint16(b[off:]), true
}

// ReadU32 reads a big-endian uint32 at off.
func ReadU32(b []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(b) {
		return 0, false
	}
	return binary.BigEndian.Uint32(b[off:]), true
}

// Uint decodes a 1, 2, 4 or 8 byte big-endian unsigned integer.
// Other lengths are folded byte by byte, which matches the fixed widths.
func Uint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	case 8:
		return binary.BigEndian.Uint64(b)
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
