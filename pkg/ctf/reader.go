package ctf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// File is a parsed, possibly memory-mapped tensor file. Payload slices
// are views into Data and must not be retained after Close.
type File struct {
	Data    []byte
	Header  Header
	Dims    []uint64
	mmapped bool
}

// Open maps a tensor file read-only and validates its structure. When
// mmap is unavailable it falls back to ReadAt-based loading. The
// returned file must be closed to release any mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < 0 || size64 > int64(int(^uint(0)>>1)) {
		return nil, ErrCorruptFile
	}
	size := int(size64)
	if size < headerSize {
		return nil, ErrCorruptFile
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		tf, parseErr := parseFileData(data, true)
		if parseErr != nil {
			_ = unix.Munmap(data)
			return nil, parseErr
		}
		return tf, nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return parseFileData(data, false)
}

// OpenReaderAt loads and validates a tensor file from a random-access
// reader without mmap.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	if size < 0 || size > int64(int(^uint(0)>>1)) {
		return nil, ErrCorruptFile
	}
	data, err := readAllAt(r, int(size))
	if err != nil {
		return nil, err
	}
	return parseFileData(data, false)
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

func parseFileData(data []byte, mmapped bool) (*File, error) {
	hdr, ok := decodeHeader(data)
	if !ok {
		return nil, ErrCorruptFile
	}
	if !hdr.valid() {
		return nil, ErrInvalidMagic
	}
	if !hdr.compatible() {
		return nil, ErrUnsupportedMajor
	}
	if hdr.FileSize != uint64(len(data)) {
		return nil, ErrCorruptFile
	}

	dimsEnd := uint64(headerSize) + uint64(hdr.Rank)*8
	if dimsEnd > uint64(len(data)) {
		return nil, fmt.Errorf("%w: dims out of bounds", ErrCorruptFile)
	}
	dims := make([]uint64, hdr.Rank)
	elems := uint64(1)
	for i := range dims {
		dims[i] = binary.LittleEndian.Uint64(data[headerSize+i*8:])
		elems *= dims[i]
	}

	want, ok := hdr.DType.PayloadBytes(elems)
	if !ok {
		return nil, fmt.Errorf("%w: unknown dtype %d", ErrCorruptFile, hdr.DType)
	}
	if hdr.PayloadSize != want {
		return nil, fmt.Errorf("%w: payload is %d bytes, dims need %d", ErrCorruptFile, hdr.PayloadSize, want)
	}
	if hdr.PayloadOff < dimsEnd || hdr.PayloadOff%payloadAlign != 0 {
		return nil, fmt.Errorf("%w: misaligned payload offset", ErrCorruptFile)
	}
	end := hdr.PayloadOff + hdr.PayloadSize
	if end < hdr.PayloadOff || end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: payload out of bounds", ErrCorruptFile)
	}

	return &File{Data: data, Header: hdr, Dims: dims, mmapped: mmapped}, nil
}

// Payload returns a zero-copy view of the element data.
func (f *File) Payload() []byte {
	return f.Data[f.Header.PayloadOff : f.Header.PayloadOff+f.Header.PayloadSize]
}

// Elements returns the logical element count described by Dims.
func (f *File) Elements() int {
	n := uint64(1)
	for _, d := range f.Dims {
		n *= d
	}
	return int(n)
}

// Close releases file resources and any mmap backing.
func (f *File) Close() error {
	if f == nil || f.Data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.Data)
	}
	f.Data = nil
	f.Dims = nil
	f.mmapped = false
	return err
}
