/*
Package dxt implements the fixed-rate 4x4 block compressor used for direct
color frames.

Each 4x4 pixel block becomes two 16-bit endpoint colors followed by 32 bits
of 2-bit indices, one byte per pixel row, for a fixed 4:1 ratio on 16-bit
input. The two intermediate palette entries are interpolated at 1/3 and 2/3
between the endpoints. Endpoints are chosen as the extreme pixels of the
block, which keeps single- and two-color blocks exact.
*/
package dxt

import (
	"encoding/binary"
	"errors"

	"github.com/bodgit/gbavid/frame"
)

// BlockSize is the pixel width and height of one compressed block.
const BlockSize = 4

const blockBytes = 8

var (
	ErrFormat   = errors.New("dxt: input must be 16-bit direct color")
	ErrGeometry = errors.New("dxt: dimensions not a multiple of the block size")
)

func split(f frame.ColorFormat, c uint16) (r, g, b int) {
	if f == frame.RGB565 {
		r = int(c&0x1f) << 3
		g = int(c >> 5 & 0x3f << 2)
		b = int(c >> 11 & 0x1f << 3)
		return r | r>>5, g | g>>6, b | b>>5
	}
	r8, g8, b8 := frame.FromRGB555(c)
	return int(r8), int(g8), int(b8)
}

func sqDiff(a, b int) int {
	d := a - b
	return d * d
}

func distance(r1, g1, b1, r2, g2, b2 int) int {
	return sqDiff(r1, r2) + sqDiff(g1, g2) + sqDiff(b1, b2)
}

// palette expands the four candidate colors of a block.
func palette(f frame.ColorFormat, c0, c1 uint16) [4][3]int {
	r0, g0, b0 := split(f, c0)
	r1, g1, b1 := split(f, c1)
	return [4][3]int{
		{r0, g0, b0},
		{r1, g1, b1},
		{(2*r0 + r1) / 3, (2*g0 + g1) / 3, (2*b0 + b1) / 3},
		{(r0 + 2*r1) / 3, (g0 + 2*g1) / 3, (b0 + 2*b1) / 3},
	}
}

func checkGeometry(f frame.ColorFormat, w, h int) error {
	if f != frame.RGB555 && f != frame.RGB565 {
		return ErrFormat
	}
	if w%BlockSize != 0 || h%BlockSize != 0 {
		return ErrGeometry
	}
	return nil
}

// Encode compresses 16-bit pixels of w by h into DXT1 blocks.
func Encode(pixels []byte, f frame.ColorFormat, w, h int) ([]byte, error) {
	if err := checkGeometry(f, w, h); err != nil {
		return nil, err
	}
	if len(pixels) != w*h*2 {
		return nil, errors.New("dxt: pixel data does not match dimensions")
	}

	out := make([]byte, 0, w*h/(BlockSize*BlockSize)*blockBytes)
	var block [16]uint16
	for by := 0; by < h; by += BlockSize {
		for bx := 0; bx < w; bx += BlockSize {
			for y := 0; y < BlockSize; y++ {
				for x := 0; x < BlockSize; x++ {
					block[y*BlockSize+x] = binary.LittleEndian.Uint16(pixels[((by+y)*w+bx+x)*2:])
				}
			}

			// Endpoints are the brightest and darkest pixels.
			c0, c1 := block[0], block[0]
			l0, l1 := frame.Luminance(c0), frame.Luminance(c1)
			for _, c := range block[1:] {
				if l := frame.Luminance(c); l > l0 {
					c0, l0 = c, l
				} else if l < l1 {
					c1, l1 = c, l
				}
			}

			pal := palette(f, c0, c1)
			out = binary.LittleEndian.AppendUint16(out, c0)
			out = binary.LittleEndian.AppendUint16(out, c1)
			for y := 0; y < BlockSize; y++ {
				var row byte
				for x := 0; x < BlockSize; x++ {
					r, g, b := split(f, block[y*BlockSize+x])
					best, bestDist := 0, int(^uint(0)>>1)
					for i, p := range pal {
						if d := distance(r, g, b, p[0], p[1], p[2]); d < bestDist {
							best, bestDist = i, d
						}
					}
					row |= byte(best) << (uint(x) * 2)
				}
				out = append(out, row)
			}
		}
	}
	return out, nil
}

// Decode expands DXT1 blocks into dst as 16-bit pixels of w by h. It
// returns the filled prefix of dst.
func Decode(dst, src []byte, f frame.ColorFormat, w, h int) ([]byte, error) {
	if err := checkGeometry(f, w, h); err != nil {
		return nil, err
	}
	blocks := w * h / BlockSize / BlockSize
	if len(src) < blocks*blockBytes {
		return nil, errors.New("dxt: truncated block data")
	}
	if len(dst) < w*h*2 {
		return nil, errors.New("dxt: destination too small")
	}

	for b := 0; b < blocks; b++ {
		bb := src[b*blockBytes:]
		c0 := binary.LittleEndian.Uint16(bb)
		c1 := binary.LittleEndian.Uint16(bb[2:])
		colors := [4]uint16{c0, c1, interpolate(f, c0, c1, 2), interpolate(f, c0, c1, 1)}

		bx := b % (w / BlockSize) * BlockSize
		by := b / (w / BlockSize) * BlockSize
		for y := 0; y < BlockSize; y++ {
			row := bb[4+y]
			for x := 0; x < BlockSize; x++ {
				c := colors[row>>(uint(x)*2)&3]
				binary.LittleEndian.PutUint16(dst[((by+y)*w+bx+x)*2:], c)
			}
		}
	}
	return dst[:w*h*2], nil
}

// interpolate mixes c0 and c1 at weight/3 toward c0, re-quantized to the
// frame format.
func interpolate(f frame.ColorFormat, c0, c1 uint16, weight int) uint16 {
	r0, g0, b0 := split(f, c0)
	r1, g1, b1 := split(f, c1)
	r := (weight*r0 + (3-weight)*r1) / 3
	g := (weight*g0 + (3-weight)*g1) / 3
	b := (weight*b0 + (3-weight)*b1) / 3
	if f == frame.RGB565 {
		return uint16(r>>3) | uint16(g>>2)<<5 | uint16(b>>3)<<11
	}
	return frame.ToRGB555(uint8(r), uint8(g), uint8(b))
}
