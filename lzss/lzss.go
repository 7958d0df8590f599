/*
Package lzss implements the two sliding-window dictionary schemes understood
by the target's BIOS decompressor, commonly known as LZ10 and LZ11.

Both streams start with a 4-byte header: the type byte (0x10 or 0x11)
followed by the decompressed length as a little-endian 24-bit value. Tokens
are grouped eight to a flag byte, consumed from the most significant bit
down; a clear bit is a literal byte, a set bit a back-reference into the
previous 4096 bytes of output.

LZ10 back-references are two bytes: a length of 3-18 in the high nibble and
a 12-bit displacement. LZ11 keeps the two-byte form for lengths 3-16 and
adds three- and four-byte forms for lengths 17-272 and 273-65808.

In VRAM-safe mode the minimum displacement is 2, because a halfword-reading
decompressor cannot copy from the byte it has not written yet.
*/
package lzss

import (
	"encoding/binary"
	"errors"
)

const (
	// Type10 and Type11 identify the stream variant in the header.
	Type10 = 0x10
	Type11 = 0x11

	headerSize = 4
	windowSize = 4096
	minMatch   = 3

	maxMatch10 = 18    // 3 + 0xf
	maxMatch11 = 65808 // 0x111 + 0xffff
)

var (
	ErrBadHeader = errors.New("lzss: bad stream header")
	ErrTruncated = errors.New("lzss: truncated stream")
	ErrTooLarge  = errors.New("lzss: data exceeds 24-bit length")
)

// findMatch searches the window behind pos for the longest match of at
// least minDisp displacement, capped at maxLen.
func findMatch(data []byte, pos, maxLen, minDisp int) (length, disp int) {
	start := pos - windowSize
	if start < 0 {
		start = 0
	}
	if rest := len(data) - pos; maxLen > rest {
		maxLen = rest
	}
	for i := pos - minDisp; i >= start; i-- {
		n := 0
		for n < maxLen && data[i+n] == data[pos+n] {
			n++
		}
		if n > length {
			length, disp = n, pos-i
			if n == maxLen {
				break
			}
		}
	}
	return
}

type compressor struct {
	out     []byte
	flagPos int
	flagBit uint
}

func (c *compressor) token(set bool, b ...byte) {
	if c.flagBit == 0 {
		c.flagPos = len(c.out)
		c.out = append(c.out, 0)
		c.flagBit = 8
	}
	c.flagBit--
	if set {
		c.out[c.flagPos] |= 1 << c.flagBit
	}
	c.out = append(c.out, b...)
}

func compress(data []byte, typ byte, maxMatch int, vram bool) ([]byte, error) {
	if len(data) >= 1<<24 {
		return nil, ErrTooLarge
	}

	minDisp := 1
	if vram {
		minDisp = 2
	}

	c := &compressor{out: make([]byte, headerSize, headerSize+len(data)/2)}
	binary.LittleEndian.PutUint32(c.out, uint32(len(data))<<8|uint32(typ))

	for pos := 0; pos < len(data); {
		length, disp := findMatch(data, pos, maxMatch, minDisp)
		if length < minMatch {
			c.token(false, data[pos])
			pos++
			continue
		}
		d := disp - 1
		switch {
		case typ == Type10:
			c.token(true, byte(length-minMatch)<<4|byte(d>>8), byte(d))
		case length <= 16:
			c.token(true, byte(length-1)<<4|byte(d>>8), byte(d))
		case length <= 272:
			l := length - 0x11
			c.token(true, byte(l>>4), byte(l)<<4|byte(d>>8), byte(d))
		default:
			l := length - 0x111
			c.token(true, 0x10|byte(l>>12), byte(l>>4), byte(l)<<4|byte(d>>8), byte(d))
		}
		pos += length
	}

	return c.out, nil
}

// Compress10 encodes data in the LZ10 format.
func Compress10(data []byte, vram bool) ([]byte, error) {
	return compress(data, Type10, maxMatch10, vram)
}

// Compress11 encodes data in the LZ11 format.
func Compress11(data []byte, vram bool) ([]byte, error) {
	return compress(data, Type11, maxMatch11, vram)
}

// Decompress expands an LZ10 or LZ11 stream into dst, which must be at
// least as large as the declared decompressed length. It returns the filled
// prefix of dst.
func Decompress(dst, src []byte) ([]byte, error) {
	if len(src) < headerSize || (src[0] != Type10 && src[0] != Type11) {
		return nil, ErrBadHeader
	}
	typ := src[0]
	total := int(binary.LittleEndian.Uint32(src) >> 8)
	if total > len(dst) {
		return nil, errors.New("lzss: destination too small")
	}

	src = src[headerSize:]
	w := 0
	for w < total {
		if len(src) < 1 {
			return nil, ErrTruncated
		}
		flags := src[0]
		src = src[1:]
		for bit := 7; bit >= 0 && w < total; bit-- {
			if flags>>uint(bit)&1 == 0 {
				if len(src) < 1 {
					return nil, ErrTruncated
				}
				dst[w] = src[0]
				src = src[1:]
				w++
				continue
			}

			if len(src) < 2 {
				return nil, ErrTruncated
			}

			var length, disp int
			switch {
			case typ == Type10:
				length = int(src[0]>>4) + minMatch
				disp = int(src[0]&0xf)<<8 | int(src[1])
				src = src[2:]
			case src[0]>>4 > 1: // two-byte form
				length = int(src[0]>>4) + 1
				disp = int(src[0]&0xf)<<8 | int(src[1])
				src = src[2:]
			case src[0]>>4 == 0: // three-byte form
				if len(src) < 3 {
					return nil, ErrTruncated
				}
				length = int(src[0]&0xf)<<4 | int(src[1]>>4)
				length += 0x11
				disp = int(src[1]&0xf)<<8 | int(src[2])
				src = src[3:]
			default: // four-byte form
				if len(src) < 4 {
					return nil, ErrTruncated
				}
				length = int(src[0]&0xf)<<12 | int(src[1])<<4 | int(src[2]>>4)
				length += 0x111
				disp = int(src[2]&0xf)<<8 | int(src[3])
				src = src[4:]
			}
			disp++
			if disp > w || w+length > total {
				return nil, ErrTruncated
			}
			// Overlapping copies are legal and must run byte by byte.
			for j := 0; j < length; j++ {
				dst[w] = dst[w-disp]
				w++
			}
		}
	}
	return dst[:total], nil
}

// DecompressedSize reports the length declared in the stream header.
func DecompressedSize(src []byte) (int, error) {
	if len(src) < headerSize || (src[0] != Type10 && src[0] != Type11) {
		return 0, ErrBadHeader
	}
	return int(binary.LittleEndian.Uint32(src) >> 8), nil
}
