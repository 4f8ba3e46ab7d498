package ctf

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Encode serializes one tensor into the container layout. The payload
// length must match what dt and dims require.
func Encode(dt DType, dims []uint64, payload []byte) ([]byte, error) {
	elems := uint64(1)
	for _, d := range dims {
		elems *= d
	}
	want, ok := dt.PayloadBytes(elems)
	if !ok {
		return nil, fmt.Errorf("ctf: cannot encode dtype %d", dt)
	}
	if uint64(len(payload)) != want {
		return nil, fmt.Errorf("ctf: payload is %d bytes, dims need %d", len(payload), want)
	}

	payloadOff := alignUp(uint64(headerSize) + uint64(len(dims))*8)
	h := Header{
		Major:       CurrentMajor,
		Minor:       CurrentMinor,
		DType:       dt,
		Rank:        uint32(len(dims)),
		PayloadOff:  payloadOff,
		PayloadSize: want,
		FileSize:    payloadOff + want,
	}
	copy(h.Magic[:], Magic)

	out := make([]byte, h.FileSize)
	copy(out, encodeHeader(h))
	for i, d := range dims {
		binary.LittleEndian.PutUint64(out[headerSize+i*8:], d)
	}
	copy(out[payloadOff:], payload)
	return out, nil
}

// WriteFile encodes and writes a tensor file.
func WriteFile(path string, dt DType, dims []uint64, payload []byte) error {
	data, err := Encode(dt, dims, payload)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
