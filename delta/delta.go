/*
Package delta implements the temporal and serial difference codings used by
the pipeline.

Image deltas XOR a frame against the previous reconstructed frame, so the
transform is its own inverse and the first frame of a stream passes through
unchanged. Serial deltas rewrite a byte or halfword stream as consecutive
differences, which groups small changes into long runs for the entropy
stages that follow.
*/
package delta

import (
	"encoding/binary"
	"errors"
)

// ErrOddLength is returned when halfword coding is applied to an odd-length
// payload.
var ErrOddLength = errors.New("delta: odd data length for halfword coding")

// Image XORs cur against prev into dst. All three slices must be the same
// length; dst may alias cur.
func Image(dst, cur, prev []byte) error {
	if len(cur) != len(prev) || len(dst) != len(cur) {
		return errors.New("delta: frame size mismatch")
	}
	for i := range cur {
		dst[i] = cur[i] ^ prev[i]
	}
	return nil
}

// Encode8 rewrites data as consecutive byte differences, in place. The
// first byte is kept verbatim.
func Encode8(data []byte) {
	prev := byte(0)
	for i, v := range data {
		data[i] = v - prev
		prev = v
	}
}

// Decode8 undoes Encode8, in place.
func Decode8(data []byte) {
	prev := byte(0)
	for i := range data {
		prev += data[i]
		data[i] = prev
	}
}

// Encode16 rewrites data as consecutive little-endian halfword differences,
// in place.
func Encode16(data []byte) error {
	if len(data)&1 != 0 {
		return ErrOddLength
	}
	prev := uint16(0)
	for i := 0; i < len(data); i += 2 {
		v := binary.LittleEndian.Uint16(data[i:])
		binary.LittleEndian.PutUint16(data[i:], v-prev)
		prev = v
	}
	return nil
}

// Decode16 undoes Encode16, in place.
func Decode16(data []byte) error {
	if len(data)&1 != 0 {
		return ErrOddLength
	}
	prev := uint16(0)
	for i := 0; i < len(data); i += 2 {
		prev += binary.LittleEndian.Uint16(data[i:])
		binary.LittleEndian.PutUint16(data[i:], prev)
	}
	return nil
}
