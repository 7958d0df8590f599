/*
Package rle implements the run-length scheme understood by the target's
BIOS decompressor.

The stream starts with a 4-byte header: a 0x30 type byte followed by the
decompressed length as a little-endian 24-bit value. After the header each
run is introduced by a flag byte; if the top bit is set the next byte is
repeated (flag&0x7f)+3 times, otherwise the next (flag&0x7f)+1 bytes are
copied verbatim.

In VRAM-safe mode every run length is forced even so a halfword-writing
decompressor never has to issue a single-byte store.
*/
package rle

import (
	"encoding/binary"
	"errors"
)

const (
	// Type identifies an RLE stream in the header type byte.
	Type = 0x30

	headerSize = 4
	maxRun     = 130 // (0x7f)+3
	maxLiteral = 128 // (0x7f)+1
	minRun     = 3
)

var (
	ErrBadHeader = errors.New("rle: bad stream header")
	ErrTruncated = errors.New("rle: truncated stream")
	ErrOddVRAM   = errors.New("rle: odd data length in vram mode")
	ErrTooLarge  = errors.New("rle: data exceeds 24-bit length")
)

func writeHeader(dst []byte, typ byte, n int) {
	binary.LittleEndian.PutUint32(dst, uint32(n)<<8|uint32(typ))
}

// runLength returns the number of leading bytes of b equal to b[0].
func runLength(b []byte, max int) int {
	n := 1
	for n < len(b) && n < max && b[n] == b[0] {
		n++
	}
	return n
}

// Compress run-length encodes data. In vram mode data must be of even
// length and every emitted run is even, keeping all decompressor writes
// halfword aligned.
func Compress(data []byte, vram bool) ([]byte, error) {
	if len(data) >= 1<<24 {
		return nil, ErrTooLarge
	}
	if vram && len(data)&1 != 0 {
		return nil, ErrOddVRAM
	}

	out := make([]byte, headerSize, headerSize+len(data)+len(data)/maxLiteral+1)
	writeHeader(out, Type, len(data))

	minUseful := minRun
	if vram {
		minUseful = 4
	}

	var lit []byte
	flushLiteral := func() {
		for len(lit) > 0 {
			n := len(lit)
			if n > maxLiteral {
				n = maxLiteral
			}
			out = append(out, byte(n-1))
			out = append(out, lit[:n]...)
			lit = lit[n:]
		}
	}

	for i := 0; i < len(data); {
		n := runLength(data[i:], maxRun)
		if vram {
			n &^= 1
		}
		if n >= minUseful {
			flushLiteral()
			out = append(out, 0x80|byte(n-minRun), data[i])
			i += n
			continue
		}
		step := 1
		if vram {
			step = 2
			lit = append(lit, data[i], data[i+1])
		} else {
			lit = append(lit, data[i])
		}
		i += step
	}
	flushLiteral()

	return out, nil
}

// Decompress expands an RLE stream into dst, which must be at least as
// large as the declared decompressed length. It returns the filled prefix
// of dst.
func Decompress(dst, src []byte) ([]byte, error) {
	if len(src) < headerSize || src[0] != Type {
		return nil, ErrBadHeader
	}
	total := int(binary.LittleEndian.Uint32(src) >> 8)
	if total > len(dst) {
		return nil, errors.New("rle: destination too small")
	}

	src = src[headerSize:]
	w := 0
	for w < total {
		if len(src) < 1 {
			return nil, ErrTruncated
		}
		flag := src[0]
		src = src[1:]
		if flag&0x80 != 0 {
			n := int(flag&0x7f) + minRun
			if len(src) < 1 || w+n > total {
				return nil, ErrTruncated
			}
			for j := 0; j < n; j++ {
				dst[w+j] = src[0]
			}
			src = src[1:]
			w += n
		} else {
			n := int(flag&0x7f) + 1
			if len(src) < n || w+n > total {
				return nil, ErrTruncated
			}
			copy(dst[w:], src[:n])
			src = src[n:]
			w += n
		}
	}
	return dst[:total], nil
}

// DecompressedSize reports the length declared in the stream header.
func DecompressedSize(src []byte) (int, error) {
	if len(src) < headerSize || src[0] != Type {
		return 0, ErrBadHeader
	}
	return int(binary.LittleEndian.Uint32(src) >> 8), nil
}
