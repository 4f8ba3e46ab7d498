// Package ctf implements the capture tensor format: a minimal
// single-tensor container used to feed raw operand data into the
// instrumented runner and to persist tensors for the golden harness.
// The payload is 64-byte aligned so readers can take aligned views
// straight out of an mmap.
package ctf

import (
	"encoding/binary"
	"errors"
)

const (
	Magic = "CTF\x00"

	// CurrentMajor changes only on breaking layout changes.
	CurrentMajor uint16 = 1
	CurrentMinor uint16 = 0

	headerSize   = 40
	payloadAlign = 64
)

var (
	ErrInvalidMagic     = errors.New("ctf: invalid magic")
	ErrUnsupportedMajor = errors.New("ctf: unsupported major version")
	ErrCorruptFile      = errors.New("ctf: corrupt file")
)

// DType identifies the element encoding of the payload. On-disk values
// are stable forever; add new values only.
type DType uint32

const (
	DTypeUnknown DType = iota
	DTypeF32
	DTypeI8
	DTypeI16
	DTypeI32
	DTypeI64

	// DTypeI4 is packed: two signed nibbles per byte, low nibble first.
	DTypeI4
)

// PayloadBytes returns the payload size in bytes for n elements.
func (d DType) PayloadBytes(n uint64) (uint64, bool) {
	switch d {
	case DTypeF32, DTypeI32:
		return n * 4, true
	case DTypeI8:
		return n, true
	case DTypeI16:
		return n * 2, true
	case DTypeI64:
		return n * 8, true
	case DTypeI4:
		return (n + 1) / 2, true
	default:
		return 0, false
	}
}

// Header is the fixed-size file prologue. Dims follow it immediately as
// rank little-endian uint64 values; the payload starts at PayloadOff.
type Header struct {
	Magic       [4]byte
	Major       uint16
	Minor       uint16
	DType       DType
	Rank        uint32
	PayloadOff  uint64
	PayloadSize uint64
	FileSize    uint64
}

func (h *Header) valid() bool {
	return string(h.Magic[:]) == Magic
}

func (h *Header) compatible() bool {
	return h.Major == CurrentMajor
}

func decodeHeader(b []byte) (Header, bool) {
	if len(b) < headerSize {
		return Header{}, false
	}
	var h Header
	copy(h.Magic[:], b[0:4])
	h.Major = binary.LittleEndian.Uint16(b[4:6])
	h.Minor = binary.LittleEndian.Uint16(b[6:8])
	h.DType = DType(binary.LittleEndian.Uint32(b[8:12]))
	h.Rank = binary.LittleEndian.Uint32(b[12:16])
	h.PayloadOff = binary.LittleEndian.Uint64(b[16:24])
	h.PayloadSize = binary.LittleEndian.Uint64(b[24:32])
	h.FileSize = binary.LittleEndian.Uint64(b[32:40])
	return h, true
}

func encodeHeader(h Header) []byte {
	b := make([]byte, headerSize)
	copy(b[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(b[4:6], h.Major)
	binary.LittleEndian.PutUint16(b[6:8], h.Minor)
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.DType))
	binary.LittleEndian.PutUint32(b[12:16], h.Rank)
	binary.LittleEndian.PutUint64(b[16:24], h.PayloadOff)
	binary.LittleEndian.PutUint64(b[24:32], h.PayloadSize)
	binary.LittleEndian.PutUint64(b[32:40], h.FileSize)
	return b
}

func alignUp(v uint64) uint64 {
	return (v + payloadAlign - 1) &^ uint64(payloadAlign-1)
}
